package domain

// Sticker is a sticker observed in a chat together with how often it was seen.
type Sticker struct {
	ChatID int64
	FileID string
	Count  int
}
