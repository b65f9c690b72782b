package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/image-delivery-bot/internal/bot"
	"github.com/open-builders/image-delivery-bot/internal/service/telegram"
)

type scriptedSource struct {
	mu       sync.Mutex
	batches  [][]telegram.Update
	failures int
	offsets  []int
	answered []string
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int, _ time.Duration) ([]telegram.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return nil, errors.New("bad gateway")
	}
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedSource) AnswerCallbackQuery(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answered = append(s.answered, id)
	return nil
}

func (s *scriptedSource) seenOffsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.offsets...)
}

func textUpdate(id int, chat int64, text string) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{
		MessageID: id,
		From:      &telegram.User{ID: chat, FirstName: "Ann"},
		Chat:      telegram.Chat{ID: chat},
		Text:      text,
	}}
}

func TestPollerTracksOffsetAndDispatches(t *testing.T) {
	source := &scriptedSource{
		failures: 1,
		batches: [][]telegram.Update{
			{textUpdate(10, 1, "/start"), textUpdate(11, 1, "K1")},
			{{UpdateID: 12, CallbackQuery: &telegram.CallbackQuery{
				ID:      "cb1",
				From:    telegram.User{ID: 1, FirstName: "Ann"},
				Message: &telegram.Message{MessageID: 99, Chat: telegram.Chat{ID: 1}},
				Data:    bot.ActionGetImages,
			}}},
		},
	}
	var log eventLog
	d := NewDispatcher(func(_ context.Context, ev bot.Event) { log.add(ev) })
	p := NewPoller(source, d, time.Second, zerolog.Nop())
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(log.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	d.Wait()

	events := log.snapshot()
	assert.Equal(t, bot.EventStart, events[0].Kind)
	assert.Equal(t, bot.EventText, events[1].Kind)
	assert.Equal(t, "K1", events[1].Text)
	assert.Equal(t, bot.EventButton, events[2].Kind)
	assert.Equal(t, 99, events[2].MessageID)

	offsets := source.seenOffsets()
	require.GreaterOrEqual(t, len(offsets), 3)
	assert.Equal(t, []int{0, 0, 12}, offsets[:3])
	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, []string{"cb1"}, source.answered)
}

func TestToEvent(t *testing.T) {
	ev, ok := ToEvent(textUpdate(1, 5, "/help@image_bot"))
	require.True(t, ok)
	assert.Equal(t, bot.EventHelp, ev.Kind)
	assert.Equal(t, int64(5), ev.ChatID)
	assert.Equal(t, "Ann", ev.FirstName)

	_, ok = ToEvent(textUpdate(2, 5, "/unknown"))
	assert.False(t, ok)

	_, ok = ToEvent(textUpdate(3, 5, ""))
	assert.False(t, ok)

	_, ok = ToEvent(telegram.Update{UpdateID: 4, CallbackQuery: &telegram.CallbackQuery{ID: "x", Data: "logout"}})
	assert.False(t, ok)

	_, ok = ToEvent(telegram.Update{UpdateID: 5})
	assert.False(t, ok)
}

func TestPollerReturnsWithoutDrainingDispatcher(t *testing.T) {
	source := &scriptedSource{batches: [][]telegram.Update{{textUpdate(1, 1, "/start")}}}
	started := make(chan struct{})
	release := make(chan struct{})
	d := NewDispatcher(func(_ context.Context, _ bot.Event) {
		close(started)
		<-release
	})
	p := NewPoller(source, d, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	<-started
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller blocked on a running handler")
	}

	drained := make(chan struct{})
	go func() {
		d.Wait()
		close(drained)
	}()
	close(release)
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not drain")
	}
}
