package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/open-builders/image-delivery-bot/internal/bot"
	"github.com/open-builders/image-delivery-bot/internal/platform/redis"
)

const (
	streamKey     = "records:events"
	consumerGroup = "image_bot_consumers"
	consumerName  = "image_bot_worker_1"
)

// ChatLister enumerates chats that currently have a session.
type ChatLister interface {
	ChatIDs() []int64
}

// RecordEventsWorker listens for record changes published by whoever writes
// the record store and nudges the affected chats to refresh.
//
// Entries look like {type: record_updated|record_deleted, access_key: K}.
type RecordEventsWorker struct {
	rdb        *redis.Client
	chats      ChatLister
	dispatcher *Dispatcher
	block      time.Duration
	log        zerolog.Logger
}

func NewRecordEventsWorker(rdb *redis.Client, chats ChatLister, dispatcher *Dispatcher, log zerolog.Logger) *RecordEventsWorker {
	return &RecordEventsWorker{rdb: rdb, chats: chats, dispatcher: dispatcher, block: 5 * time.Second, log: log}
}

// Start consumes the stream until ctx is cancelled.
func (w *RecordEventsWorker) Start(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		w.log.Error().Err(err).Msg("Error creating consumer group")
	}

	w.log.Info().Str("stream", streamKey).Msg("Starting record events worker...")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping record events worker...")
			return
		default:
			entries, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
				Group:    consumerGroup,
				Consumer: consumerName,
				Streams:  []string{streamKey, ">"},
				Count:    10,
				Block:    w.block,
			}).Result()
			if err != nil {
				if !errors.Is(err, go_redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Error reading from stream")
					time.Sleep(1 * time.Second)
				}
				continue
			}

			for _, stream := range entries {
				for _, msg := range stream.Messages {
					w.processMessage(ctx, msg.Values)
					if err := w.rdb.XAck(ctx, streamKey, consumerGroup, msg.ID).Err(); err != nil {
						w.log.Warn().Err(err).Str("id", msg.ID).Msg("Error acknowledging entry")
					}
				}
			}
		}
	}
}

func (w *RecordEventsWorker) processMessage(ctx context.Context, values map[string]interface{}) {
	key, ok := parseRecordEvent(values)
	if !ok {
		w.log.Debug().Interface("values", values).Msg("Ignoring stream entry")
		return
	}
	chats := w.chats.ChatIDs()
	w.log.Info().Int("sessions", len(chats)).Msg("Record changed, notifying sessions")
	for _, id := range chats {
		w.dispatcher.Dispatch(ctx, bot.Event{Kind: bot.EventRecordChanged, ChatID: id, Text: key})
	}
}

func parseRecordEvent(values map[string]interface{}) (string, bool) {
	eventType, _ := values["type"].(string)
	if eventType != "record_updated" && eventType != "record_deleted" {
		return "", false
	}
	key, _ := values["access_key"].(string)
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}
	return key, true
}
