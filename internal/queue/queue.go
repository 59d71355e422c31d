// Package queue publishes action events for downstream consumers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/config"
	"github.com/prn-tf/contentstore/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmpty is returned by Next when no event arrived before the timeout.
var ErrEmpty = errors.New("queue is empty")

// Publisher delivers action events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.ActionEvent) error
}

// ListClient is the subset of the Redis client the queue uses.
// *redis.Client satisfies it.
type ListClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})
}

// RedisQueue is a FIFO of JSON encoded action events in a Redis list.
// Events are pushed on the left and taken from the right.
type RedisQueue struct {
	client ListClient
	key    string
	logger zerolog.Logger
}

// NewRedisQueue creates a queue on the given list key.
func NewRedisQueue(client ListClient, key string, logger zerolog.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "queue").Str("key", key).Logger(),
	}
}

// Publish appends the event to the queue.
func (q *RedisQueue) Publish(ctx context.Context, event *domain.ActionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode action event: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		q.logger.Error().Err(err).Str("did", event.DID.String()).Msg("failed to publish action event")
		return fmt.Errorf("publish action event: %w", err)
	}

	q.logger.Debug().
		Str("did", event.DID.String()).
		Str("action", event.ActionName).
		Str("type", string(event.Type)).
		Msg("action event published")
	return nil
}

// Next takes the oldest event, waiting up to timeout for one to arrive.
// Returns ErrEmpty when the wait expires.
func (q *RedisQueue) Next(ctx context.Context, timeout time.Duration) (*domain.ActionEvent, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("take action event: %w", err)
	}
	// BRPOP replies with the key followed by the value
	if len(result) != 2 {
		return nil, fmt.Errorf("take action event: unexpected reply of %d elements", len(result))
	}

	var event domain.ActionEvent
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		return nil, fmt.Errorf("decode action event: %w", err)
	}
	return &event, nil
}

// Len returns the number of queued events.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// LogPublisher logs events instead of delivering them. It is used when no
// queue is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "queue").Logger()}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event *domain.ActionEvent) error {
	p.logger.Info().
		Str("did", event.DID.String()).
		Str("action", event.ActionName).
		Str("type", string(event.Type)).
		Int("content", len(event.Content)).
		Int("saved_content", len(event.SavedContent)).
		Msg("action event")
	return nil
}

var (
	_ Publisher = (*RedisQueue)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
