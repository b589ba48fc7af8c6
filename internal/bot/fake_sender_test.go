package bot

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ashureev/manolo/internal/transport"
)

type sentAudio struct {
	chatID  int64
	path    string
	existed bool
}

// fakeSender records every outbound operation.
type fakeSender struct {
	mu        sync.Mutex
	nextID    int64
	messages  []transport.Message
	stickers  []string
	audios    []sentAudio
	deleted   []int64
	callbacks []string
	commands  []transport.Command
	documents map[string]string
	failAudio bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{nextID: 1000, documents: make(map[string]string)}
}

func (f *fakeSender) SendText(_ context.Context, msg transport.Message) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.messages = append(f.messages, msg)
	return f.nextID, nil
}

func (f *fakeSender) SendSticker(_ context.Context, _ int64, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stickers = append(f.stickers, fileID)
	return nil
}

func (f *fakeSender) SendAudio(_ context.Context, chatID int64, path, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := os.Stat(path)
	f.audios = append(f.audios, sentAudio{chatID: chatID, path: path, existed: err == nil})
	if f.failAudio {
		return errors.New("upload failed")
	}
	return nil
}

func (f *fakeSender) DeleteMessage(_ context.Context, _ int64, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSender) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, text)
	return nil
}

func (f *fakeSender) OpenDocument(_ context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.documents[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeSender) SetCommands(_ context.Context, commands []transport.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = commands
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeSender) last() transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return transport.Message{}
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) lastID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextID
}
