package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	go_redis "github.com/redis/go-redis/v9"

	"github.com/open-builders/image-delivery-bot/internal/domain/record"
	rplatform "github.com/open-builders/image-delivery-bot/internal/platform/redis"
)

// RecordRepository reads records stored as JSON strings under
// <prefix>access_key:<key>.
type RecordRepository struct {
	client *rplatform.Client
	prefix string
}

var (
	_ record.Gateway = (*RecordRepository)(nil)
	_ record.Pinger  = (*RecordRepository)(nil)
)

func NewRecordRepository(client *rplatform.Client, prefix string) *RecordRepository {
	return &RecordRepository{client: client, prefix: prefix}
}

func (r *RecordRepository) keyByAccessKey(key string) string {
	return r.prefix + "access_key:" + key
}

func (r *RecordRepository) FindByKey(ctx context.Context, key string) (*record.Record, error) {
	v, err := r.client.Get(ctx, r.keyByAccessKey(key)).Bytes()
	if errors.Is(err, go_redis.Nil) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec record.Record
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", key, err)
	}
	// keys are matched exactly; a payload for another key is treated as absent
	if rec.AccessKey != "" && rec.AccessKey != key {
		return nil, record.ErrNotFound
	}
	rec.AccessKey = key
	return &rec, nil
}

func (r *RecordRepository) Ping(ctx context.Context) error {
	return r.client.Healthy(ctx)
}
