package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/image-delivery-bot/internal/common/errors"
	"github.com/open-builders/image-delivery-bot/internal/domain/record"
	"github.com/open-builders/image-delivery-bot/internal/domain/session"
)

// OutcomeKind is the result class of a key validation.
type OutcomeKind int

const (
	RetryPrompt OutcomeKind = iota
	Welcome
)

// Outcome tells the conversation layer what to say after a key attempt.
type Outcome struct {
	Kind OutcomeKind
	// Name is the record's display name on Welcome.
	Name string
	// Reason matches apperrors.ErrInvalidKey on RetryPrompt.
	Reason error
}

// Validator turns raw chat input into an authenticated session.
type Validator struct {
	records record.Gateway
	now     func() time.Time
	log     zerolog.Logger
}

func NewValidator(records record.Gateway, log zerolog.Logger) *Validator {
	return &Validator{records: records, now: time.Now, log: log}
}

// WithClock overrides the time source used for LastUpdated.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate checks raw against the record store. Unknown keys leave the session
// untouched and yield RetryPrompt; a store failure is returned as an error.
func (v *Validator) Validate(ctx context.Context, s *session.Session, raw string) (Outcome, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return v.reject(s, apperrors.New(apperrors.ErrCodeInvalidKey, "Activation key is blank")), nil
	}

	rec, err := v.records.FindByKey(ctx, key)
	if errors.Is(err, record.ErrNotFound) {
		return v.reject(s, apperrors.Wrap(err, apperrors.ErrCodeInvalidKey, "Activation key not recognised")), nil
	}
	if err != nil {
		return Outcome{}, apperrors.NewStoreError("find_by_key", err)
	}

	s.Authenticate(key, rec, v.now())
	v.log.Info().Int64("chat_id", s.ChatID).Str("record_id", rec.ID).Msg("Activation key validated")
	return Outcome{Kind: Welcome, Name: rec.DisplayName()}, nil
}

func (v *Validator) reject(s *session.Session, reason *apperrors.AppError) Outcome {
	v.log.Info().
		Int64("chat_id", s.ChatID).
		Str("code", string(reason.Code)).
		Str("reason", reason.Message).
		Msg("Activation key rejected")
	return Outcome{Kind: RetryPrompt, Reason: reason}
}
