package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/image-delivery-bot/internal/domain/record"
	rplatform "github.com/open-builders/image-delivery-bot/internal/platform/redis"
)

func newRepo(t *testing.T) (*RecordRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := rplatform.Open(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRecordRepository(client, "record:"), mr
}

func TestFindByKey(t *testing.T) {
	repo, mr := newRepo(t)
	require.NoError(t, mr.Set("record:access_key:K1",
		`{"access_key":"K1","name":"Ann","image_links":["http://a/1.png",{"url":"http://a/2.png","date":"2024-01-01"},42]}`))

	rec, err := repo.FindByKey(context.Background(), "K1")
	require.NoError(t, err)

	assert.Equal(t, "Ann", rec.Name)
	require.Len(t, rec.ImageLinks, 3)
	assert.Equal(t, record.Bare("http://a/1.png"), rec.ImageLinks[0])
	assert.Equal(t, record.Dated("http://a/2.png", "2024-01-01"), rec.ImageLinks[1])
	assert.Equal(t, record.EntryUnknown, rec.ImageLinks[2].Kind)
}

func TestFindByKeyMissing(t *testing.T) {
	repo, mr := newRepo(t)
	require.NoError(t, mr.Set("record:access_key:K1", `{"access_key":"K1"}`))

	_, err := repo.FindByKey(context.Background(), "k1")
	assert.ErrorIs(t, err, record.ErrNotFound)

	_, err = repo.FindByKey(context.Background(), "K1 ")
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestFindByKeyMismatchedPayload(t *testing.T) {
	repo, mr := newRepo(t)
	require.NoError(t, mr.Set("record:access_key:K1", `{"access_key":"K2"}`))

	_, err := repo.FindByKey(context.Background(), "K1")
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestFindByKeyCorruptPayload(t *testing.T) {
	repo, mr := newRepo(t)
	require.NoError(t, mr.Set("record:access_key:K1", `not json`))

	_, err := repo.FindByKey(context.Background(), "K1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, record.ErrNotFound)
}

func TestPing(t *testing.T) {
	repo, mr := newRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))

	mr.Close()
	assert.Error(t, repo.Ping(context.Background()))
}
