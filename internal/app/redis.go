package app

import (
	"context"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"transitdemand/internal/config"
)

// NewRedisClient connects the Redis client that backs the geo index, spawn
// locks, config cache and event bus. When New Relic is enabled every command
// is traced as a datastore segment.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if nrApp != nil {
		client.AddHook(redisTracingHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// redisTracingHook reports each Redis command as a New Relic datastore
// segment. It only instruments; commands pass through untouched, and calls
// outside a transaction are not traced.
type redisTracingHook struct{}

func (redisTracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (redisTracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		defer traceRedisOp(ctx, cmd.Name()).End()
		return next(ctx, cmd)
	}
}

func (redisTracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		defer traceRedisOp(ctx, "pipeline").End()
		return next(ctx, cmds)
	}
}

// traceRedisOp opens a datastore segment for one command, or a zero segment
// when no transaction is in the context. Ending a zero segment is a no-op.
func traceRedisOp(ctx context.Context, operation string) *newrelic.DatastoreSegment {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return &newrelic.DatastoreSegment{}
	}
	return &newrelic.DatastoreSegment{
		StartTime: txn.StartSegmentNow(),
		Product:   newrelic.DatastoreRedis,
		Operation: operation,
	}
}
