package workers

import (
	"context"
	"sync"

	"github.com/open-builders/image-delivery-bot/internal/bot"
)

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, ev bot.Event)

// Dispatcher runs events of different chats in parallel and events of the
// same chat one at a time, in arrival order.
type Dispatcher struct {
	handle HandlerFunc

	mu     sync.Mutex
	queues map[int64][]bot.Event
	wg     sync.WaitGroup
}

func NewDispatcher(handle HandlerFunc) *Dispatcher {
	return &Dispatcher{handle: handle, queues: make(map[int64][]bot.Event)}
}

// Dispatch enqueues ev. A drain goroutine exists per chat while it has pending events.
func (d *Dispatcher) Dispatch(ctx context.Context, ev bot.Event) {
	d.mu.Lock()
	q, active := d.queues[ev.ChatID]
	d.queues[ev.ChatID] = append(q, ev)
	d.mu.Unlock()
	if active {
		return
	}
	d.wg.Add(1)
	go d.drain(ctx, ev.ChatID)
}

func (d *Dispatcher) drain(ctx context.Context, chatID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[chatID]
		if len(q) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		ev := q[0]
		d.queues[chatID] = q[1:]
		d.mu.Unlock()

		d.handle(ctx, ev)
	}
}

// Wait blocks until every queued event has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
