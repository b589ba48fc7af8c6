package domain

import "time"

// ConfirmationKind identifies which workflow a pending confirmation belongs to.
type ConfirmationKind string

const (
	// ConfirmDeleteCorpus gates the deletion of every learned message and sticker of a chat.
	ConfirmDeleteCorpus ConfirmationKind = "delete-corpus"
	// ConfirmIngestDocument gates learning an uploaded text document.
	ConfirmIngestDocument ConfirmationKind = "ingest-document"
)

// DocumentRef points at a document held by the chat platform.
type DocumentRef struct {
	FileID   string
	FileName string
}

// PendingConfirmation is an outstanding yes/no prompt.
type PendingConfirmation struct {
	Token           string
	Kind            ConfirmationKind
	ChatID          int64
	PromptMessageID int64
	Document        *DocumentRef
	CreatedAt       time.Time
}

// Expired reports whether the confirmation is older than ttl.
func (p *PendingConfirmation) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.CreatedAt) > ttl
}
