// Package redisarchive keeps a capped copy of the outcome log in a Redis list.
package redisarchive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
)

const (
	DefaultKey      = "payfacade:outcomes"
	DefaultCapacity = 1000
)

var ErrInvalidLimit = errors.New("redisarchive: limit must be positive")

// Archive stores entries newest-first under one key and trims it to Capacity.
type Archive struct {
	client   redis.Cmdable
	key      string
	capacity int64
}

var _ outcome.Archive = (*Archive)(nil)

func New(client redis.Cmdable, key string, capacity int64) *Archive {
	if key == "" {
		key = DefaultKey
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Archive{client: client, key: key, capacity: capacity}
}

func (a *Archive) Append(ctx context.Context, e outcome.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redisarchive: encode entry %d: %w", e.Seq, err)
	}
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, a.key, payload)
		pipe.LTrim(ctx, a.key, 0, a.capacity-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisarchive: append: %w", err)
	}
	return nil
}

// Recent returns up to n archived entries, oldest first.
func (a *Archive) Recent(ctx context.Context, n int) ([]outcome.Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	raw, err := a.client.LRange(ctx, a.key, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisarchive: read: %w", err)
	}
	out := make([]outcome.Entry, len(raw))
	for i, item := range raw {
		var e outcome.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("redisarchive: decode: %w", err)
		}
		out[len(raw)-1-i] = e
	}
	return out, nil
}

// Len reports how many entries are currently retained.
func (a *Archive) Len(ctx context.Context) (int64, error) {
	return a.client.LLen(ctx, a.key).Result()
}
