package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/image-delivery-bot/internal/common/errors"
	"github.com/open-builders/image-delivery-bot/internal/domain/chat"
	"github.com/open-builders/image-delivery-bot/internal/domain/record"
	"github.com/open-builders/image-delivery-bot/internal/domain/session"
)

const (
	defaultConcurrency  = 4
	defaultFetchTimeout = 30 * time.Second
)

// Report summarises one delivery batch.
type Report struct {
	BatchID string
	Total   int
	Sent    int
	Errors  int
	// Empty is set when today's image set had nothing to deliver.
	Empty bool
	// NoImages is set when the record has no image entries at all.
	NoImages bool
}

// RefreshOutcome is the result of comparing a fresh record with the cached one.
type RefreshOutcome struct {
	Changed bool
	// Report is non-nil when Changed.
	Report *Report
}

// Progress is told the size of a batch once it is known, before any chat
// message is deleted or sent.
type Progress func(total int)

// Engine sends a session's images and retires previously delivered messages.
type Engine struct {
	records      record.Gateway
	transport    chat.Transport
	fetcher      Fetcher
	log          zerolog.Logger
	now          func() time.Time
	concurrency  int
	fetchTimeout time.Duration
}

type Option func(*Engine)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithConcurrency bounds the number of parallel downloads in a batch.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithFetchTimeout bounds each download; zero disables the per-item bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) { e.fetchTimeout = d }
}

func NewEngine(records record.Gateway, transport chat.Transport, fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		records:      records,
		transport:    transport,
		fetcher:      fetcher,
		log:          zerolog.Nop(),
		now:          time.Now,
		concurrency:  defaultConcurrency,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deliver re-fetches the session's record and sends today's images, replacing
// whatever the previous batch left in the chat. progress may be nil.
func (e *Engine) Deliver(ctx context.Context, s *session.Session, progress Progress) (*Report, error) {
	rec, err := e.fetchRecord(ctx, s)
	if err != nil {
		return nil, err
	}

	urls := ResolveToday(rec, e.now())
	if len(urls) == 0 {
		return &Report{Empty: true, NoImages: !rec.HasImages()}, nil
	}
	if progress != nil {
		progress(len(urls))
	}
	return e.publish(ctx, s, rec, urls), nil
}

// Refresh redelivers only when the record's image sequence differs from the
// cached snapshot. Unchanged refreshes make no transport calls.
// progress sees only changed, non-empty batches and may be nil.
func (e *Engine) Refresh(ctx context.Context, s *session.Session, progress Progress) (*RefreshOutcome, error) {
	rec, err := e.fetchRecord(ctx, s)
	if err != nil {
		return nil, err
	}

	if record.EqualLinks(rec.Links(), s.CachedRecord.Links()) {
		return &RefreshOutcome{Changed: false}, nil
	}

	s.CachedRecord = rec
	urls := ResolveToday(rec, e.now())
	if progress != nil && len(urls) > 0 {
		progress(len(urls))
	}
	report := e.publish(ctx, s, rec, urls)
	if len(urls) == 0 {
		report.Empty = true
		report.NoImages = !rec.HasImages()
	}
	return &RefreshOutcome{Changed: true, Report: report}, nil
}

// Logout retires delivered messages and resets the session. A second call is a no-op.
func (e *Engine) Logout(ctx context.Context, s *session.Session) {
	e.cleanup(ctx, s, e.log.With().Int64("chat_id", s.ChatID).Logger())
	s.Reset()
}

func (e *Engine) fetchRecord(ctx context.Context, s *session.Session) (*record.Record, error) {
	if !s.IsAuthenticated() {
		return nil, apperrors.New(apperrors.ErrCodeSessionExpired, "Session has no active key")
	}
	rec, err := e.records.FindByKey(ctx, s.ActivationKey)
	if errors.Is(err, record.ErrNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeKeyRevoked, "Activation key no longer valid").
			WithDetail("chat_id", s.ChatID)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("find_by_key", err)
	}
	return rec, nil
}

// cleanup deletes every tracked message, best-effort, and clears the list.
func (e *Engine) cleanup(ctx context.Context, s *session.Session, log zerolog.Logger) {
	if len(s.DeliveredMessageIDs) == 0 {
		s.DeliveredMessageIDs = nil
		return
	}
	failed := 0
	for _, id := range s.DeliveredMessageIDs {
		if err := e.transport.DeleteMessage(ctx, s.ChatID, id); err != nil {
			failed++
			log.Warn().Err(err).Int("message_id", id).Msg("Could not delete message")
		}
	}
	log.Debug().
		Int("deleted", len(s.DeliveredMessageIDs)-failed).
		Int("failed", failed).
		Msg("Cleanup pass finished")
	s.DeliveredMessageIDs = nil
}

type fetchResult struct {
	data []byte
	err  error
}

// publish runs cleanup, then sends urls in order while downloads proceed in parallel.
func (e *Engine) publish(ctx context.Context, s *session.Session, rec *record.Record, urls []string) *Report {
	report := &Report{BatchID: uuid.NewString(), Total: len(urls)}
	log := e.log.With().
		Int64("chat_id", s.ChatID).
		Str("batch_id", report.BatchID).
		Logger()

	e.cleanup(ctx, s, log)

	results := e.fetchAll(ctx, urls)
	pending := make([]int, 0, len(urls))
	for i, url := range urls {
		n := i + 1
		res := <-results[i]

		var itemErr error
		if res.err != nil {
			itemErr = apperrors.NewFetchError(url, res.err)
		} else {
			caption := fmt.Sprintf("Image %d/%d", n, report.Total)
			id, err := e.transport.SendImage(ctx, s.ChatID, res.data, caption)
			if err == nil {
				pending = append(pending, id)
				report.Sent++
				continue
			}
			itemErr = apperrors.NewTransportError("send_image", err)
		}

		report.Errors++
		log.Error().Err(itemErr).
			Str("stage", failureStage(itemErr)).
			Str("url", url).
			Int("index", n).
			Msg("Error sending image")

		text := fmt.Sprintf("Failed to retrieve image %d: %s", n, failureReason(itemErr))
		id, err := e.transport.SendText(ctx, s.ChatID, text, nil)
		if err != nil {
			log.Warn().Err(err).Int("index", n).Msg("Could not report image failure")
			continue
		}
		pending = append(pending, id)
	}

	s.DeliveredMessageIDs = pending
	s.CachedRecord = rec
	s.LastUpdated = e.now()

	log.Info().
		Int("total", report.Total).
		Int("sent", report.Sent).
		Int("errors", report.Errors).
		Msg("Delivery batch finished")
	return report
}

// fetchAll starts bounded parallel downloads. Channel i yields the result for urls[i].
func (e *Engine) fetchAll(ctx context.Context, urls []string) []chan fetchResult {
	results := make([]chan fetchResult, len(urls))
	for i := range results {
		results[i] = make(chan fetchResult, 1)
	}

	sem := make(chan struct{}, e.concurrency)
	go func() {
		for i, url := range urls {
			sem <- struct{}{}
			go func(i int, url string) {
				defer func() { <-sem }()
				results[i] <- e.fetchOne(ctx, url)
			}(i, url)
		}
	}()
	return results
}

func (e *Engine) fetchOne(ctx context.Context, url string) fetchResult {
	if e.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
	}
	data, err := e.fetcher.Fetch(ctx, url)
	return fetchResult{data: data, err: err}
}

// failureReason is the text shown to the user for a failed item.
// failureStage names the step of an item that failed.
func failureStage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrFetchFailed):
		return "fetch"
	case errors.Is(err, apperrors.ErrTransport):
		return "send"
	default:
		return "unknown"
	}
}

func failureReason(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return err.Error()
}
