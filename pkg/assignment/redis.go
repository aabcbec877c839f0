package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/redis/go-redis/v9"
)

// RedisRecorder keeps assignments in Redis so that every worker sees the
// same owner. OnlyUnassigned requests are a single SETNX.
type RedisRecorder struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisRecorder connects to the Redis server at url (redis://host:port/db).
func NewRedisRecorder(ctx context.Context, url string, logger *slog.Logger) (*RedisRecorder, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisRecorderWithClient(client, logger), nil
}

func NewRedisRecorderWithClient(client redis.UniversalClient, logger *slog.Logger) *RedisRecorder {
	return &RedisRecorder{client: client, logger: logger.With("module", "redis_assignment")}
}

func (r *RedisRecorder) Assign(ctx context.Context, req Request) (string, bool, error) {
	key := Key(req.TargetType, req.RecordID)

	if !req.OnlyUnassigned {
		if err := r.client.Set(ctx, key, req.UserID, 0).Err(); err != nil {
			return "", false, fmt.Errorf("failed to record assignment: %w", err)
		}

		return req.UserID, true, nil
	}

	set, err := r.client.SetNX(ctx, key, req.UserID, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to record assignment: %w", err)
	}

	if set {
		return req.UserID, true, nil
	}

	owner, err := r.Owner(ctx, req.TargetType, req.RecordID)
	if err != nil {
		return "", false, err
	}

	r.logger.DebugContext(ctx, "Record already assigned", "key", key, "owner", owner)

	return owner, false, nil
}

func (r *RedisRecorder) Owner(ctx context.Context, target models.TargetType, recordID string) (string, error) {
	owner, err := r.client.Get(ctx, Key(target, recordID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to read assignment: %w", err)
	}

	return owner, nil
}

func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
