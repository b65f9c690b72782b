package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/open-builders/image-delivery-bot/internal/domain/chat"
	"github.com/open-builders/image-delivery-bot/internal/domain/record"
)

type fakeGateway struct {
	mu      sync.Mutex
	records map[string]*record.Record
	err     error
	calls   int
}

func newFakeGateway(recs ...*record.Record) *fakeGateway {
	g := &fakeGateway{records: make(map[string]*record.Record)}
	for _, r := range recs {
		g.records[r.AccessKey] = r
	}
	return g
}

func (g *fakeGateway) FindByKey(_ context.Context, key string) (*record.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	rec, ok := g.records[key]
	if !ok {
		return nil, record.ErrNotFound
	}
	cp := *rec
	cp.ImageLinks = append([]record.ImageEntry(nil), rec.ImageLinks...)
	return &cp, nil
}

func (g *fakeGateway) put(rec *record.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[rec.AccessKey] = rec
}

func (g *fakeGateway) remove(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, key)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type sentMessage struct {
	ID      int
	Kind    string
	Text    string
	Caption string
	Data    []byte
}

type fakeTransport struct {
	mu         sync.Mutex
	nextID     int
	sent       []sentMessage
	deleted    []int
	edits      int
	failDelete map[int]bool
	failImage  map[string]bool
	failText   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 100, failDelete: map[int]bool{}, failImage: map[string]bool{}}
}

func (f *fakeTransport) SendText(_ context.Context, _ int64, text string, _ chat.Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText {
		return 0, errors.New("send text failed")
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ID: f.nextID, Kind: "text", Text: text})
	return f.nextID, nil
}

func (f *fakeTransport) EditText(_ context.Context, _ int64, _ int, _ string, _ chat.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	return nil
}

func (f *fakeTransport) SendImage(_ context.Context, _ int64, data []byte, caption string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failImage[string(data)] {
		return 0, errors.New("photo rejected")
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ID: f.nextID, Kind: "image", Caption: caption, Data: data})
	return f.nextID, nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, _ int64, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.failDelete[id] {
		return fmt.Errorf("message %d can't be deleted", id)
	}
	return nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent) + len(f.deleted) + f.edits
}

func (f *fakeTransport) sentIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.sent))
	for _, m := range f.sent {
		ids = append(ids, m.ID)
	}
	return ids
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// fakeFetcher serves the URL itself as image content.
type fakeFetcher struct {
	mu     sync.Mutex
	errs   map[string]error
	delays map[string]time.Duration
	urls   []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{errs: map[string]error{}, delays: map[string]time.Duration{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	err := f.errs[url]
	delay := f.delays[url]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(url), nil
}
