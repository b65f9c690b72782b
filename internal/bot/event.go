package bot

import "strings"

// EventKind is the input alphabet of the conversation state machine.
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventText
	EventCancel
	EventHelp
	EventLogout
	EventButton
	// EventRecordChanged comes from the record store, not the user.
	EventRecordChanged
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventText:
		return "text"
	case EventCancel:
		return "cancel"
	case EventHelp:
		return "help"
	case EventLogout:
		return "logout"
	case EventButton:
		return "button"
	case EventRecordChanged:
		return "record_changed"
	default:
		return "unknown"
	}
}

// Button callback data.
const (
	ActionGetImages     = "get_images"
	ActionRefreshImages = "refresh_images"
	ActionLogout        = "logout"
)

// Event is one input to a chat's session.
type Event struct {
	Kind   EventKind
	ChatID int64
	// FirstName of the sender, used in the greeting.
	FirstName string
	// Text is the raw message text, or the changed access key for EventRecordChanged.
	Text string
	// Action is the callback data for EventButton.
	Action string
	// MessageID is the message carrying the pressed button, for EventButton.
	MessageID int
}

// ParseCommand maps a message text to an event kind. Unknown commands and
// plain text both yield EventText; ok is false for unknown commands.
func ParseCommand(text string) (kind EventKind, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return EventText, true
	}
	cmd := strings.Fields(trimmed)[0]
	// strip @botname suffix used in group chats
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch strings.ToLower(cmd) {
	case "/start":
		return EventStart, true
	case "/cancel":
		return EventCancel, true
	case "/help":
		return EventHelp, true
	case "/logout":
		return EventLogout, true
	default:
		return EventText, false
	}
}
