package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/shopsync/pkg/database"
	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/services/storefront/internal/repository"
)

// Store implements repository.Store on Redis. Keys live under
// "<namespace>:" and every write is announced on "<namespace>:changes" so
// other instances sharing the namespace can watch them.
type Store struct {
	client    *redis.Client
	namespace string
	origin    string
	tracer    database.QueryTracer
	logger    *slog.Logger
}

// NewStore creates a Redis-backed store.
func NewStore(client *redis.Client, namespace string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		namespace: namespace,
		origin:    uuid.NewString(),
		tracer:    database.QueryTracer{System: database.SystemRedis},
		logger:    logger,
	}
}

func (s *Store) key(k string) string {
	return s.namespace + ":" + k
}

func (s *Store) channel() string {
	return s.namespace + ":changes"
}

// Origin identifies this store in published changes.
func (s *Store) Origin() string {
	return s.origin
}

// Get implements repository.Store.
func (s *Store) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, end := s.tracer.Start(ctx, "get", s.key(key))
	defer func() { end(err) }()

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("storage key", key)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set implements repository.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, end := s.tracer.Start(ctx, "set", s.key(key))
	defer func() { end(err) }()

	msg, err := json.Marshal(repository.Change{Key: key, Value: value, Origin: s.origin})
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(key), value, 0)
		pipe.Publish(ctx, s.channel(), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete implements repository.Store.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	ctx, end := s.tracer.Start(ctx, "del", s.key(key))
	defer func() { end(err) }()

	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return nil
	}

	msg, err := json.Marshal(repository.Change{Key: key, Deleted: true, Origin: s.origin})
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel(), msg).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// Ping implements repository.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Watch implements repository.Watcher using Redis pub/sub. Malformed
// messages are logged and skipped.
func (s *Store) Watch(ctx context.Context, fn func(repository.Change)) error {
	sub := s.client.Subscribe(ctx, s.channel())
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel(), err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var c repository.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				s.logger.WarnContext(ctx, "dropping malformed storage change",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			if c.Origin == s.origin {
				continue
			}
			fn(c)
		}
	}
}
