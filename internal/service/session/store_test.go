package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/image-delivery-bot/internal/domain/record"
	domain "github.com/open-builders/image-delivery-bot/internal/domain/session"
)

func TestGetCreatesUnauthenticatedSession(t *testing.T) {
	store := NewStore()

	_, ok := store.Peek(42)
	assert.False(t, ok)

	sess := store.Get(42)
	require.NotNil(t, sess)
	assert.Equal(t, int64(42), sess.ChatID)
	assert.Equal(t, domain.Unauthenticated, sess.State)
	assert.Same(t, sess, store.Get(42))

	peeked, ok := store.Peek(42)
	assert.True(t, ok)
	assert.Same(t, sess, peeked)
}

func TestSessionsAreIndependent(t *testing.T) {
	store := NewStore()

	a := store.Get(1)
	b := store.Get(2)
	a.Authenticate("K1", &record.Record{AccessKey: "K1"}, time.Now())

	assert.Equal(t, domain.Authenticated, a.State)
	assert.Equal(t, domain.Unauthenticated, b.State)
	assert.Equal(t, 2, store.Len())
}

func TestConcurrentGetReturnsSameSession(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	got := make([]*domain.Session, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = store.Get(7)
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, store.Len())
}

func TestResetClearsEverything(t *testing.T) {
	sess := domain.New(5)
	sess.Authenticate("K1", &record.Record{AccessKey: "K1"}, time.Now())
	sess.DeliveredMessageIDs = []int{1, 2}

	sess.Reset()

	assert.Equal(t, domain.Unauthenticated, sess.State)
	assert.Empty(t, sess.ActivationKey)
	assert.Nil(t, sess.CachedRecord)
	assert.Empty(t, sess.DeliveredMessageIDs)
	assert.True(t, sess.LastUpdated.IsZero())
	assert.Equal(t, int64(5), sess.ChatID)
	assert.False(t, sess.IsAuthenticated())
}

func TestChatIDsListsKnownChats(t *testing.T) {
	store := NewStore()
	assert.Empty(t, store.ChatIDs())

	store.Get(1)
	store.Get(2)
	store.Get(1)

	assert.ElementsMatch(t, []int64{1, 2}, store.ChatIDs())
}
