package bot

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/image-delivery-bot/internal/common/errors"
	"github.com/open-builders/image-delivery-bot/internal/domain/chat"
	"github.com/open-builders/image-delivery-bot/internal/domain/session"
	"github.com/open-builders/image-delivery-bot/internal/service/delivery"
	sessionsvc "github.com/open-builders/image-delivery-bot/internal/service/session"
)

// Machine is the conversation state machine:
// Unauthenticated -> AwaitingKey -> Authenticated, with logout and key
// revocation leading back to Unauthenticated.
type Machine struct {
	sessions  *sessionsvc.Store
	validator *delivery.Validator
	engine    *delivery.Engine
	transport chat.Transport
	log       zerolog.Logger
}

func NewMachine(sessions *sessionsvc.Store, validator *delivery.Validator, engine *delivery.Engine, transport chat.Transport, log zerolog.Logger) *Machine {
	return &Machine{
		sessions:  sessions,
		validator: validator,
		engine:    engine,
		transport: transport,
		log:       log,
	}
}

// Handle applies ev to its chat's session. Operations on one session are serialized.
// The returned error is a failure to reply; session state is already consistent.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	s := m.sessions.Get(ev.ChatID)
	s.Lock()
	defer s.Unlock()

	from := s.State
	err := m.apply(ctx, s, ev)
	if from != s.State {
		m.log.Info().
			Int64("chat_id", ev.ChatID).
			Str("event", ev.Kind.String()).
			Str("from", from.String()).
			Str("to", s.State.String()).
			Msg("Session transition")
	}
	return err
}

func (m *Machine) apply(ctx context.Context, s *session.Session, ev Event) error {
	switch ev.Kind {
	case EventStart:
		return m.start(ctx, s, ev)
	case EventText:
		return m.text(ctx, s, ev)
	case EventCancel:
		if s.State == session.AwaitingKey {
			s.State = session.Unauthenticated
		}
		return m.reply(ctx, s, msgCancelled, nil)
	case EventHelp:
		return m.reply(ctx, s, msgHelp, nil)
	case EventLogout:
		m.engine.Logout(ctx, s)
		return m.reply(ctx, s, msgLoggedOut, nil)
	case EventButton:
		return m.button(ctx, s, ev)
	case EventRecordChanged:
		return m.recordChanged(ctx, s, ev)
	default:
		m.log.Debug().Int64("chat_id", ev.ChatID).Int("kind", int(ev.Kind)).Msg("Ignoring unknown event")
		return nil
	}
}

func (m *Machine) start(ctx context.Context, s *session.Session, ev Event) error {
	if s.State == session.Authenticated || len(s.DeliveredMessageIDs) > 0 {
		m.engine.Logout(ctx, s)
	}
	s.State = session.AwaitingKey
	return m.reply(ctx, s, greeting(ev.FirstName), nil)
}

func (m *Machine) text(ctx context.Context, s *session.Session, ev Event) error {
	if s.State != session.AwaitingKey {
		return nil
	}
	out, err := m.validator.Validate(ctx, s, ev.Text)
	if err != nil {
		m.log.Error().Err(err).Int64("chat_id", s.ChatID).Msg("Key validation failed")
		return m.reply(ctx, s, msgStoreFailure, nil)
	}
	if out.Kind == delivery.RetryPrompt {
		return m.reply(ctx, s, msgInvalidKey, nil)
	}
	return m.reply(ctx, s, welcome(out.Name), welcomeKeyboard())
}

func (m *Machine) button(ctx context.Context, s *session.Session, ev Event) error {
	switch ev.Action {
	case ActionLogout:
		m.engine.Logout(ctx, s)
		return m.show(ctx, s, ev.MessageID, msgLoggedOut, nil)
	case ActionGetImages:
		if !s.IsAuthenticated() {
			return m.show(ctx, s, ev.MessageID, msgExpired, nil)
		}
		statusID := ev.MessageID
		report, err := m.engine.Deliver(ctx, s, m.progress(ctx, s, &statusID, ""))
		if err != nil {
			return m.failure(ctx, s, statusID, err)
		}
		return m.finish(ctx, s, statusID, report)
	case ActionRefreshImages:
		if !s.IsAuthenticated() {
			return m.show(ctx, s, ev.MessageID, msgExpired, nil)
		}
		statusID := ev.MessageID
		out, err := m.engine.Refresh(ctx, s, m.progress(ctx, s, &statusID, msgFoundUpdates))
		if err != nil {
			return m.failure(ctx, s, statusID, err)
		}
		if !out.Changed {
			return m.show(ctx, s, statusID, msgUpToDate, controlKeyboard())
		}
		return m.finish(ctx, s, statusID, out.Report)
	default:
		m.log.Debug().Int64("chat_id", s.ChatID).Str("action", ev.Action).Msg("Ignoring unknown button")
		return nil
	}
}

// recordChanged refreshes a session whose record was reported as modified.
// There is no pressed message, so the outcome is sent as a new one.
func (m *Machine) recordChanged(ctx context.Context, s *session.Session, ev Event) error {
	if !s.IsAuthenticated() || s.ActivationKey != ev.Text {
		return nil
	}
	out, err := m.engine.Refresh(ctx, s, nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyRevoked) {
			return m.failure(ctx, s, 0, err)
		}
		m.log.Error().Err(err).Int64("chat_id", s.ChatID).Msg("Background refresh failed")
		return nil
	}
	if !out.Changed {
		return nil
	}
	return m.finish(ctx, s, 0, out.Report)
}

// progress turns the pressed message into a status line for the batch.
// *statusID follows the message showing it, which differs from the pressed
// one when that could not be edited.
func (m *Machine) progress(ctx context.Context, s *session.Session, statusID *int, notice string) delivery.Progress {
	return func(total int) {
		pressed := *statusID
		if notice != "" {
			*statusID = m.status(ctx, s, *statusID, notice)
		}
		prev := *statusID
		*statusID = m.status(ctx, s, *statusID, sendingText(total))
		if prev != pressed && prev != *statusID {
			m.retire(ctx, s, prev)
		}
	}
}

func (m *Machine) status(ctx context.Context, s *session.Session, messageID int, text string) int {
	id, err := m.edit(ctx, s, messageID, text, nil)
	if err != nil {
		m.log.Warn().Err(err).Int64("chat_id", s.ChatID).Msg("Could not show delivery status")
		return messageID
	}
	return id
}

// finish replaces the status message with the outcome of a delivery.
// A completed batch moves the control message below the new images.
func (m *Machine) finish(ctx context.Context, s *session.Session, statusID int, report *delivery.Report) error {
	if report.Empty {
		return m.show(ctx, s, statusID, emptyText(report), refreshKeyboard())
	}
	if statusID != 0 {
		m.retire(ctx, s, statusID)
	}
	return m.reply(ctx, s, completionText(report), controlKeyboard())
}

func (m *Machine) retire(ctx context.Context, s *session.Session, statusID int) {
	if err := m.transport.DeleteMessage(ctx, s.ChatID, statusID); err != nil {
		m.log.Warn().Err(err).Int64("chat_id", s.ChatID).Int("message_id", statusID).Msg("Could not delete status message")
	}
}

func (m *Machine) failure(ctx context.Context, s *session.Session, messageID int, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrSessionExpired):
		return m.show(ctx, s, messageID, msgExpired, nil)
	case errors.Is(err, apperrors.ErrKeyRevoked):
		m.log.Info().Int64("chat_id", s.ChatID).Msg("Activation key revoked, clearing session")
		m.engine.Logout(ctx, s)
		return m.show(ctx, s, messageID, msgRevoked, nil)
	default:
		m.log.Error().Err(err).Int64("chat_id", s.ChatID).Msg("Delivery failed")
		return m.show(ctx, s, messageID, msgStoreFailure, controlKeyboard())
	}
}

func (m *Machine) reply(ctx context.Context, s *session.Session, text string, kb chat.Keyboard) error {
	_, err := m.send(ctx, s, text, kb)
	return err
}

func (m *Machine) send(ctx context.Context, s *session.Session, text string, kb chat.Keyboard) (int, error) {
	id, err := m.transport.SendText(ctx, s.ChatID, text, kb)
	if err != nil {
		return 0, apperrors.NewTransportError("send_text", err)
	}
	return id, nil
}

// show rewrites a button message, falling back to a new message.
func (m *Machine) show(ctx context.Context, s *session.Session, messageID int, text string, kb chat.Keyboard) error {
	_, err := m.edit(ctx, s, messageID, text, kb)
	return err
}

// edit rewrites a button message; when that message is gone it sends a new one.
// It returns the id of the message now showing text.
func (m *Machine) edit(ctx context.Context, s *session.Session, messageID int, text string, kb chat.Keyboard) (int, error) {
	if messageID == 0 {
		return m.send(ctx, s, text, kb)
	}
	err := m.transport.EditText(ctx, s.ChatID, messageID, text, kb)
	if err == nil {
		return messageID, nil
	}
	m.log.Debug().Err(err).Int64("chat_id", s.ChatID).Int("message_id", messageID).Msg("Edit failed, sending instead")
	return m.send(ctx, s, text, kb)
}
