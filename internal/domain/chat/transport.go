package chat

import "context"

// Button is an inline button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a list of button rows. A nil Keyboard removes or omits buttons.
type Keyboard [][]Button

// Column lays buttons out one per row.
func Column(buttons ...Button) Keyboard {
	kb := make(Keyboard, 0, len(buttons))
	for _, b := range buttons {
		kb = append(kb, []Button{b})
	}
	return kb
}

// Transport is the set of chat primitives the bot core relies on.
// Every call is a fallible, non-transactional remote call.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	SendImage(ctx context.Context, chatID int64, data []byte, caption string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
