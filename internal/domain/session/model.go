package session

import (
	"sync"
	"time"

	"github.com/open-builders/image-delivery-bot/internal/domain/record"
)

// State is the authentication state of a chat.
type State int

const (
	Unauthenticated State = iota
	AwaitingKey
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingKey:
		return "awaiting_key"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the ephemeral per-chat authentication and delivery state.
// Callers hold the session lock for the duration of any operation on it.
type Session struct {
	mu sync.Mutex

	ChatID              int64
	State               State
	ActivationKey       string
	CachedRecord        *record.Record
	DeliveredMessageIDs []int
	LastUpdated         time.Time
}

// New returns an empty, unauthenticated session for chatID.
func New(chatID int64) *Session {
	return &Session{ChatID: chatID}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Authenticate stores a validated key and its record snapshot.
func (s *Session) Authenticate(key string, rec *record.Record, now time.Time) {
	s.State = Authenticated
	s.ActivationKey = key
	s.CachedRecord = rec
	s.DeliveredMessageIDs = []int{}
	s.LastUpdated = now
}

// IsAuthenticated reports whether the session holds a usable key.
func (s *Session) IsAuthenticated() bool {
	return s.State == Authenticated && s.ActivationKey != ""
}

// Reset clears every field back to the initial unauthenticated state.
func (s *Session) Reset() {
	s.State = Unauthenticated
	s.ActivationKey = ""
	s.CachedRecord = nil
	s.DeliveredMessageIDs = nil
	s.LastUpdated = time.Time{}
}
