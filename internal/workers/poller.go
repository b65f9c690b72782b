package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/image-delivery-bot/internal/bot"
	"github.com/open-builders/image-delivery-bot/internal/service/telegram"
)

// UpdateSource is the long-polling side of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]telegram.Update, error)
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// Poller pulls updates from Telegram and hands them to a Dispatcher.
type Poller struct {
	source     UpdateSource
	dispatcher *Dispatcher
	timeout    time.Duration
	backoff    time.Duration
	log        zerolog.Logger
	offset     int
}

func NewPoller(source UpdateSource, dispatcher *Dispatcher, timeout time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		source:     source,
		dispatcher: dispatcher,
		timeout:    timeout,
		backoff:    time.Second,
		log:        log,
	}
}

// Start polls until ctx is cancelled. Events already dispatched may still be
// running when it returns; the dispatcher is shared, so draining it is left
// to the caller once every producer has stopped.
func (p *Poller) Start(ctx context.Context) {
	p.log.Info().Msg("Starting update poller...")

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Stopping update poller...")
			return
		default:
		}

		updates, err := p.source.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.log.Error().Err(err).Msg("Error fetching updates")
			select {
			case <-time.After(p.backoff):
			case <-ctx.Done():
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			p.process(ctx, u)
		}
	}
}

func (p *Poller) process(ctx context.Context, u telegram.Update) {
	if cq := u.CallbackQuery; cq != nil {
		if err := p.source.AnswerCallbackQuery(ctx, cq.ID); err != nil {
			p.log.Warn().Err(err).Str("callback_id", cq.ID).Msg("Could not answer callback query")
		}
	}
	ev, ok := ToEvent(u)
	if !ok {
		p.log.Debug().Int("update_id", u.UpdateID).Msg("Skipping update")
		return
	}
	p.dispatcher.Dispatch(ctx, ev)
}

// ToEvent converts a Bot API update into a state machine event.
func ToEvent(u telegram.Update) (bot.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.Message == nil {
			return bot.Event{}, false
		}
		return bot.Event{
			Kind:      bot.EventButton,
			ChatID:    cq.Message.Chat.ID,
			FirstName: cq.From.FirstName,
			Action:    cq.Data,
			MessageID: cq.Message.MessageID,
		}, true
	}

	msg := u.Message
	if msg == nil || msg.Text == "" {
		return bot.Event{}, false
	}
	kind, known := bot.ParseCommand(msg.Text)
	if !known {
		return bot.Event{}, false
	}
	ev := bot.Event{Kind: kind, ChatID: msg.Chat.ID, Text: msg.Text}
	if msg.From != nil {
		ev.FirstName = msg.From.FirstName
	}
	return ev, true
}
