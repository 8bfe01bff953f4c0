package redisarchive_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/redisarchive"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func entry(seq uint64, level outcome.Level, msg string) outcome.Entry {
	return outcome.Entry{
		Seq:     seq,
		Level:   level,
		Message: msg,
		At:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestAppendAndRecentOldestFirst(t *testing.T) {
	_, client := newClient(t)
	archive := redisarchive.New(client, "test:outcomes", 10)
	ctx := context.Background()

	require.NoError(t, archive.Append(ctx, entry(1, outcome.LevelInfo, "Payment successful: tx-1")))
	require.NoError(t, archive.Append(ctx, entry(2, outcome.LevelError, "Payment failed: declined")))
	require.NoError(t, archive.Append(ctx, entry(3, outcome.LevelInfo, "Refund successful: rf-1")))

	got, err := archive.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entry(2, outcome.LevelError, "Payment failed: declined"), got[0])
	assert.Equal(t, uint64(3), got[1].Seq)

	all, err := archive.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAppendTrimsToCapacity(t *testing.T) {
	mr, client := newClient(t)
	archive := redisarchive.New(client, "test:outcomes", 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, archive.Append(ctx, entry(uint64(i), outcome.LevelInfo, fmt.Sprintf("Payment successful: %d", i))))
	}

	n, err := archive.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := archive.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Equal(t, uint64(5), got[2].Seq)

	items, err := mr.List("test:outcomes")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestRecentRejectsNonPositiveLimit(t *testing.T) {
	_, client := newClient(t)
	archive := redisarchive.New(client, "", 0)

	_, err := archive.Recent(context.Background(), 0)
	require.ErrorIs(t, err, redisarchive.ErrInvalidLimit)
}

func TestRecentOnEmptyKey(t *testing.T) {
	_, client := newClient(t)
	archive := redisarchive.New(client, "", 0)

	got, err := archive.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendSurfacesConnectionErrors(t *testing.T) {
	mr, client := newClient(t)
	archive := redisarchive.New(client, "", 0)
	mr.Close()

	err := archive.Append(context.Background(), entry(1, outcome.LevelInfo, "x"))
	require.Error(t, err)
}
