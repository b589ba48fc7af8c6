package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/ashureev/manolo/internal/confirm"
	"github.com/ashureev/manolo/internal/domain"
	"github.com/ashureev/manolo/internal/ingest"
	"github.com/ashureev/manolo/internal/transport"
)

var errPromptNotSent = errors.New("confirmation prompt not sent")

// openPrompt registers a pending confirmation and sends its prompt. The
// confirmation is bound to the prompt's message id once it is delivered.
func (s *Service) openPrompt(ctx context.Context, kind domain.ConfirmationKind, chatID int64, doc *domain.DocumentRef, build func(token string) transport.Message) (string, error) {
	token := s.confirms.Open(kind, chatID, doc)
	id, ok := s.deliver(ctx, build(token))
	if !ok {
		s.confirms.Discard(token)
		return "", errPromptNotSent
	}
	s.confirms.Bind(token, id)
	return token, nil
}

func (s *Service) cmdDelete(ctx context.Context, ev transport.Event, _ string) {
	_, err := s.openPrompt(ctx, domain.ConfirmDeleteCorpus, ev.ChatID, nil, func(string) transport.Message {
		return transport.Message{
			ChatID:        ev.ChatID,
			Text:          s.msgs.DeletePrompt,
			ReplyTo:       ev.MessageID,
			ReplyKeyboard: [][]string{{confirm.Affirmative}, {confirm.Negative}},
		}
	})
	if err != nil {
		slog.Warn("Delete prompt failed", "chat_id", ev.ChatID, "error", err)
	}
}

// resolveDelete handles a reply to an open delete prompt. Replies that are
// neither yes nor no are swallowed and leave the prompt open.
func (s *Service) resolveDelete(ctx context.Context, ev transport.Event, pc domain.PendingConfirmation) {
	answer := confirm.ParseAnswer(ev.Text)
	if answer == confirm.AnswerNone {
		return
	}
	if _, ok := s.confirms.Consume(pc.Token); !ok {
		return
	}

	if answer == confirm.AnswerNo {
		s.deliver(ctx, transport.Message{ChatID: ev.ChatID, Text: s.msgs.DeleteCancelled, RemoveKeyboard: true})
		return
	}

	text := s.msgs.DeleteDone
	if err := s.deleteChat(ctx, ev.ChatID); err != nil {
		slog.Error("Failed to delete chat data", "chat_id", ev.ChatID, "error", err)
		text = s.msgs.TryAgain
	}
	s.deliver(ctx, transport.Message{ChatID: ev.ChatID, Text: text, RemoveKeyboard: true})
}

func (s *Service) deleteChat(ctx context.Context, chatID int64) error {
	return errors.Join(
		s.repo.DeleteMessages(ctx, chatID),
		s.repo.DeleteStickers(ctx, chatID),
	)
}

// askToLearn validates a document and asks the chat whether to learn it.
func (s *Service) askToLearn(ctx context.Context, chatID, documentMessageID int64, doc *transport.Document) {
	if doc == nil {
		return
	}
	if !ingest.IsTextDocument(doc.FileName) {
		s.send(ctx, chatID, 0, s.msgs.LearnWrongFormat)
		return
	}
	ref := &domain.DocumentRef{FileID: doc.FileID, FileName: doc.FileName}
	_, err := s.openPrompt(ctx, domain.ConfirmIngestDocument, chatID, ref, func(token string) transport.Message {
		return transport.Message{
			ChatID:  chatID,
			Text:    s.msgs.LearnPrompt,
			ReplyTo: documentMessageID,
			InlineButtons: [][]transport.InlineButton{
				{{Text: confirm.Affirmative, Data: confirm.CallbackData(token, confirm.AnswerYes)}},
				{{Text: confirm.Negative, Data: confirm.CallbackData(token, confirm.AnswerNo)}},
			},
		}
	})
	if err != nil {
		slog.Warn("Learn prompt failed", "chat_id", chatID, "error", err)
	}
}

// handleCallback resolves an inline button press on a learn prompt. A token
// is consumed once and only by its own chat; other presses only acknowledge
// the button.
func (s *Service) handleCallback(ctx context.Context, ev transport.Event) {
	cb := ev.Callback
	if cb == nil {
		return
	}
	token, answer, ok := confirm.ParseCallbackData(cb.Data)
	var pc domain.PendingConfirmation
	if ok {
		pc, ok = s.confirms.Peek(token)
	}
	if !ok || pc.ChatID != ev.ChatID || pc.Kind != domain.ConfirmIngestDocument || pc.Document == nil {
		s.answerCallback(ctx, cb.ID, s.msgs.LearnExpired)
		return
	}
	if _, ok := s.confirms.Consume(token); !ok {
		s.answerCallback(ctx, cb.ID, s.msgs.LearnExpired)
		return
	}
	s.answerCallback(ctx, cb.ID, "")
	if err := s.sender.DeleteMessage(ctx, ev.ChatID, cb.MessageID); err != nil {
		slog.Warn("Failed to delete prompt", "chat_id", ev.ChatID, "error", err)
	}

	if answer == confirm.AnswerNo {
		s.send(ctx, ev.ChatID, 0, s.msgs.LearnCancelled)
		return
	}

	s.send(ctx, ev.ChatID, 0, s.msgs.LearnStarted)
	fileID := pc.Document.FileID
	n, err := s.pipeline.Ingest(ctx, ev.ChatID, fileID, func(ctx context.Context) (io.ReadCloser, error) {
		return s.sender.OpenDocument(ctx, fileID)
	})
	if err != nil {
		slog.Error("Document ingestion failed", "chat_id", ev.ChatID, "file_id", fileID, "learned", n, "error", err)
		if n == 0 {
			s.send(ctx, ev.ChatID, 0, s.msgs.TryAgain)
			return
		}
	}
	slog.Info("Document learned", "chat_id", ev.ChatID, "file_id", fileID, "learned", n)
	s.send(ctx, ev.ChatID, 0, s.msgs.LearnDone)
}

func (s *Service) answerCallback(ctx context.Context, id, text string) {
	if err := s.sender.AnswerCallback(ctx, id, text); err != nil {
		slog.Debug("Failed to answer callback", "error", err)
	}
}
