package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Zhima-Mochi/payfacade/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/memory"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func TestJournalKeepsAppendOrder(t *testing.T) {
	j := memory.NewOutcomeJournal()

	j.Info("Payment successful: tx-1")
	j.Error("Refund failed: Transaction not found.")
	j.Info("Refund successful: tx-2")

	require.Equal(t, 3, j.Len())
	last := j.Last(10)
	require.Len(t, last, 3)
	assert.Equal(t, "Payment successful: tx-1", last[0].Message)
	assert.Equal(t, outcome.LevelError, last[1].Level)
	assert.Equal(t, uint64(3), last[2].Seq)

	tail := j.Last(1)
	require.Len(t, tail, 1)
	assert.Equal(t, "Refund successful: tx-2", tail[0].Message)

	assert.Nil(t, j.Last(0))
}

func TestJournalLastErrorAndInfo(t *testing.T) {
	j := memory.NewOutcomeJournal()

	_, ok := j.LastError()
	assert.False(t, ok)

	j.Error("Payment processing error: No cash.")
	j.Info("Payment successful: tx-1")
	j.Error("Error getting payment status: Network status failed.")

	e, ok := j.LastError()
	require.True(t, ok)
	assert.Equal(t, "Error getting payment status: Network status failed.", e.Message)

	i, ok := j.LastInfo()
	require.True(t, ok)
	assert.Equal(t, "Payment successful: tx-1", i.Message)

	assert.Len(t, j.Entries(outcome.LevelError), 2)
	assert.Len(t, j.Entries(outcome.LevelInfo), 1)
}

func TestJournalLastReturnsCopy(t *testing.T) {
	j := memory.NewOutcomeJournal()
	j.Info("Payment successful: tx-1")

	got := j.Last(1)
	got[0].Message = "tampered"

	assert.Equal(t, "Payment successful: tx-1", j.Last(1)[0].Message)
}

func TestJournalConcurrentAppends(t *testing.T) {
	j := memory.NewOutcomeJournal()

	const writers, perWriter = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if i%2 == 0 {
					j.Info(fmt.Sprintf("Payment successful: %d-%d", w, i))
				} else {
					j.Error(fmt.Sprintf("Payment failed: %d-%d", w, i))
				}
			}
		}(w)
	}
	wg.Wait()

	all := j.Last(writers * perWriter)
	require.Len(t, all, writers*perWriter)
	for i, e := range all {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestJournalPublishesRecordedEvents(t *testing.T) {
	pub := &capturingPublisher{}
	j := memory.NewOutcomeJournal(memory.WithPublisher(pub))

	j.Info("Payment successful: tx-1")
	j.Error("Payment failed: declined")

	require.Len(t, pub.events, 2)
	first, ok := pub.events[0].(outcome.RecordedEvent)
	require.True(t, ok)
	assert.Equal(t, outcome.RecordedEventName, first.EventName())
	assert.Equal(t, uint64(1), first.Entry.Seq)
	assert.Equal(t, "Payment failed: declined", pub.events[1].(outcome.RecordedEvent).Entry.Message)
}

func TestJournalAppendsEvenWhenPublishFails(t *testing.T) {
	pub := &capturingPublisher{err: domoutbox.ErrClosed}
	j := memory.NewOutcomeJournal(memory.WithPublisher(pub))

	j.Error("Refund processing error: Network refund failed.")

	assert.Equal(t, 1, j.Len())
}

// gatedPublisher blocks every Publish until release is closed.
type gatedPublisher struct {
	capturingPublisher
	entered chan struct{}
	release chan struct{}
}

func (p *gatedPublisher) Publish(ctx context.Context, e domoutbox.Event) error {
	p.entered <- struct{}{}
	<-p.release
	return p.capturingPublisher.Publish(ctx, e)
}

func (p *gatedPublisher) seqs() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint64, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.(outcome.RecordedEvent).Entry.Seq)
	}
	return out
}

func TestJournalReadsAndAppendsDoNotWaitOnPublisher(t *testing.T) {
	pub := &gatedPublisher{entered: make(chan struct{}, 8), release: make(chan struct{})}
	j := memory.NewOutcomeJournal(memory.WithPublisher(pub))

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		j.Info("Payment successful: tx-1")
	}()
	<-pub.entered

	appended := make(chan struct{})
	go func() {
		defer close(appended)
		j.Error("Payment failed: declined")
		j.Info("Refund successful: tx-2")
	}()
	select {
	case <-appended:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("append waited on a blocked publisher")
	}

	last, ok := j.LastError()
	require.True(t, ok)
	assert.Equal(t, "Payment failed: declined", last.Message)
	assert.Equal(t, 3, j.Len())

	close(pub.release)
	<-firstDone
	assert.Equal(t, []uint64{1, 2, 3}, pub.seqs())
}
