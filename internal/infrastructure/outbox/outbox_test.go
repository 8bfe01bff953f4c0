package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Zhima-Mochi/payfacade/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/outbox"
)

type numbered struct{ n int }

func (numbered) EventName() string { return "test.numbered" }

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := outbox.NewBus(nil)

	var mu sync.Mutex
	var got []int
	bus.Subscribe("test.numbered", func(_ context.Context, e domoutbox.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(numbered).n)
		return nil
	})
	bus.Start(context.Background())

	for i := 1; i <= 50; i++ {
		require.NoError(t, bus.Publish(context.Background(), numbered{n: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, n := range got {
		assert.Equal(t, i+1, n)
	}
}

func TestBusSurvivesHandlerPanicAndError(t *testing.T) {
	bus := outbox.NewBus(nil)
	delivered := make(chan struct{}, 1)

	bus.Subscribe("test.numbered", func(context.Context, domoutbox.Event) error {
		panic("boom")
	})
	bus.Subscribe("test.numbered", func(context.Context, domoutbox.Event) error {
		return errors.New("handler failed")
	})
	bus.Subscribe("test.numbered", func(context.Context, domoutbox.Event) error {
		delivered <- struct{}{}
		return nil
	})
	bus.Start(context.Background())
	t.Cleanup(func() { bus.Stop(context.Background()) })

	require.NoError(t, bus.Publish(context.Background(), numbered{n: 1}))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy handler did not receive the event")
	}
}

func TestPublishAfterStopIsRejected(t *testing.T) {
	bus := outbox.NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	err := bus.Publish(context.Background(), numbered{n: 1})
	require.ErrorIs(t, err, domoutbox.ErrClosed)
}

func TestStopWithoutStart(t *testing.T) {
	bus := outbox.NewBus(nil)
	assert.NotPanics(t, func() { bus.Stop(context.Background()) })
	require.ErrorIs(t, bus.Publish(context.Background(), numbered{n: 1}), domoutbox.ErrClosed)
}

func TestPublishHonoursContextWhenQueueIsFull(t *testing.T) {
	bus := outbox.NewBus(nil, outbox.WithQueueSize(1))
	require.NoError(t, bus.Publish(context.Background(), numbered{n: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.Publish(ctx, numbered{n: 2})
	require.ErrorIs(t, err, context.Canceled)

	bus.Stop(context.Background())
}
