package bot

import "context"

// Button is one inline keyboard button: either a callback payload or an
// external URL.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Update is an inbound chat event: free text or a button press.
type Update struct {
	ChatID       int64  `json:"chat_id"`
	Text         string `json:"text,omitempty"`
	CallbackID   string `json:"callback_id,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Transport delivers outbound payloads to a conversation and
// acknowledges button presses. The concrete wire format lives entirely
// behind this interface.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard [][]Button) error
	AnswerCallback(ctx context.Context, callbackID string) error
}
