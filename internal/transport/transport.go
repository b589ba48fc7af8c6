// Package transport defines the chat platform boundary: the inbound events the
// bot reacts to and the outbound operations it performs.
package transport

import (
	"context"
	"io"
)

// EventKind identifies the shape of an inbound Event.
type EventKind int

const (
	EventText EventKind = iota + 1
	EventDocument
	EventSticker
	EventDice
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventDocument:
		return "document"
	case EventSticker:
		return "sticker"
	case EventDice:
		return "dice"
	case EventCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Document references an uploaded file.
type Document struct {
	FileID   string
	FileName string
}

// Reply is the message an inbound message quotes.
type Reply struct {
	MessageID    int64
	FromUsername string
	Text         string
	Document     *Document
}

// Callback is an inline button press.
type Callback struct {
	ID        string
	Data      string
	MessageID int64
}

// Event is one inbound platform event.
type Event struct {
	Kind         EventKind
	ChatID       int64
	MessageID    int64
	FromUsername string
	Text         string
	ReplyTo      *Reply
	Document     *Document
	StickerID    string
	DiceValue    int
	Callback     *Callback
}

// InlineButton is a button attached to a message.
type InlineButton struct {
	Text string
	Data string
}

// Message is an outbound text message.
type Message struct {
	ChatID         int64
	Text           string
	ReplyTo        int64
	ReplyKeyboard  [][]string
	RemoveKeyboard bool
	InlineButtons  [][]InlineButton
}

// Command is an entry of the platform command menu.
type Command struct {
	Command     string
	Description string
}

// Sender performs outbound operations against the chat platform.
type Sender interface {
	// SendText sends a message and returns the platform message id.
	SendText(ctx context.Context, msg Message) (int64, error)
	SendSticker(ctx context.Context, chatID int64, fileID string) error
	SendAudio(ctx context.Context, chatID int64, path, title string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	// AnswerCallback acknowledges a button press, optionally showing text.
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// OpenDocument streams a previously uploaded file.
	OpenDocument(ctx context.Context, fileID string) (io.ReadCloser, error)
	SetCommands(ctx context.Context, commands []Command) error
}

// Handler consumes inbound events.
type Handler func(ctx context.Context, ev Event)

// Source delivers inbound events until ctx is cancelled.
type Source interface {
	Poll(ctx context.Context, handle Handler) error
}
