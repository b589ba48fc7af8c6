package telegram

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message,omitempty"`
	CallbackQuery *callbackQuery `json:"callback_query,omitempty"`
}

type message struct {
	MessageID int64     `json:"message_id"`
	Chat      *chat     `json:"chat,omitempty"`
	From      *user     `json:"from,omitempty"`
	ReplyTo   *message  `json:"reply_to_message,omitempty"`
	Text      string    `json:"text,omitempty"`
	Document  *document `json:"document,omitempty"`
	Sticker   *sticker  `json:"sticker,omitempty"`
	Dice      *dice     `json:"dice,omitempty"`
}

type chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type user struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot,omitempty"`
	Username string `json:"username,omitempty"`
}

type document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type sticker struct {
	FileID string `json:"file_id"`
	Emoji  string `json:"emoji,omitempty"`
}

type dice struct {
	Emoji string `json:"emoji"`
	Value int    `json:"value"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    *user    `json:"from,omitempty"`
	Message *message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type file struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type response[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

type keyboardButton struct {
	Text string `json:"text"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	Keyboard        [][]keyboardButton       `json:"keyboard,omitempty"`
	OneTimeKeyboard bool                     `json:"one_time_keyboard,omitempty"`
	Selective       bool                     `json:"selective,omitempty"`
	RemoveKeyboard  bool                     `json:"remove_keyboard,omitempty"`
	InlineKeyboard  [][]inlineKeyboardButton `json:"inline_keyboard,omitempty"`
}

type sendMessageRequest struct {
	ChatID           int64        `json:"chat_id"`
	Text             string       `json:"text"`
	ReplyToMessageID int64        `json:"reply_to_message_id,omitempty"`
	ReplyMarkup      *replyMarkup `json:"reply_markup,omitempty"`
}

type sendStickerRequest struct {
	ChatID  int64  `json:"chat_id"`
	Sticker string `json:"sticker"`
}

type deleteMessageRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type botCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

type setMyCommandsRequest struct {
	Commands []botCommand `json:"commands"`
}
