package feed

import (
	"context"

	"github.com/ashureev/manolo/internal/transport"
)

// Entry kinds.
const (
	KindText    = "text"
	KindSticker = "sticker"
	KindAudio   = "audio"
)

// MirrorSender publishes every successful outbound send to a Hub.
type MirrorSender struct {
	transport.Sender
	hub *Hub
}

// Mirror wraps next so its sends appear in hub.
func Mirror(next transport.Sender, hub *Hub) *MirrorSender {
	return &MirrorSender{Sender: next, hub: hub}
}

var _ transport.Sender = (*MirrorSender)(nil)

func (m *MirrorSender) SendText(ctx context.Context, msg transport.Message) (int64, error) {
	id, err := m.Sender.SendText(ctx, msg)
	if err == nil {
		m.hub.Publish(Entry{ChatID: msg.ChatID, Kind: KindText, Text: msg.Text})
	}
	return id, err
}

func (m *MirrorSender) SendSticker(ctx context.Context, chatID int64, fileID string) error {
	err := m.Sender.SendSticker(ctx, chatID, fileID)
	if err == nil {
		m.hub.Publish(Entry{ChatID: chatID, Kind: KindSticker, Text: fileID})
	}
	return err
}

func (m *MirrorSender) SendAudio(ctx context.Context, chatID int64, path, title string) error {
	err := m.Sender.SendAudio(ctx, chatID, path, title)
	if err == nil {
		m.hub.Publish(Entry{ChatID: chatID, Kind: KindAudio, Text: title})
	}
	return err
}
