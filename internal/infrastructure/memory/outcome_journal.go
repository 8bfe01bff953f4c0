package memory

import (
	"context"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/payfacade/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
)

const publishTimeout = time.Second

// OutcomeJournal is the in-process outcome log. Entries are append-only and kept in order.
// When a publisher is attached every entry is also published as outcome.RecordedEvent in
// journal order. Publishing happens outside mu: one appender at a time drains the pending
// queue, the others enqueue and return.
type OutcomeJournal struct {
	mu       sync.Mutex
	entries  []outcome.Entry
	seq      uint64
	pending  []outcome.Entry
	draining bool

	pub domoutbox.Publisher
	log observability.Logger
	now func() time.Time
}

type JournalOption func(*OutcomeJournal)

func WithPublisher(p domoutbox.Publisher) JournalOption {
	return func(j *OutcomeJournal) { j.pub = p }
}

func WithJournalLogger(l observability.Logger) JournalOption {
	return func(j *OutcomeJournal) {
		if l != nil {
			j.log = l
		}
	}
}

func WithClock(now func() time.Time) JournalOption {
	return func(j *OutcomeJournal) {
		if now != nil {
			j.now = now
		}
	}
}

func NewOutcomeJournal(opts ...JournalOption) *OutcomeJournal {
	j := &OutcomeJournal{
		log: observability.NopLogger(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(j)
	}
	j.log = j.log.With(observability.F("component", "outcome_journal"))
	return j
}

func (j *OutcomeJournal) Info(message string)  { j.append(outcome.LevelInfo, message) }
func (j *OutcomeJournal) Error(message string) { j.append(outcome.LevelError, message) }

func (j *OutcomeJournal) append(level outcome.Level, message string) {
	j.mu.Lock()
	j.seq++
	e := outcome.Entry{Seq: j.seq, Level: level, Message: message, At: j.now()}
	j.entries = append(j.entries, e)

	if j.pub == nil {
		j.mu.Unlock()
		return
	}
	j.pending = append(j.pending, e)
	if j.draining {
		j.mu.Unlock()
		return
	}
	j.draining = true
	j.mu.Unlock()

	j.drain()
}

// drain publishes pending entries in order until the queue is empty.
func (j *OutcomeJournal) drain() {
	for {
		j.mu.Lock()
		if len(j.pending) == 0 {
			j.draining = false
			j.mu.Unlock()
			return
		}
		batch := j.pending
		j.pending = nil
		j.mu.Unlock()

		for _, e := range batch {
			j.publish(e)
		}
	}
}

func (j *OutcomeJournal) publish(e outcome.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := j.pub.Publish(ctx, outcome.RecordedEvent{Entry: e}); err != nil {
		j.log.Warn("outcome_publish_failed",
			observability.F("seq", e.Seq),
			observability.F("error", err),
		)
	}
}

// Last returns up to n most recent entries, oldest first.
func (j *OutcomeJournal) Last(n int) []outcome.Entry {
	if n <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if n > len(j.entries) {
		n = len(j.entries)
	}
	out := make([]outcome.Entry, n)
	copy(out, j.entries[len(j.entries)-n:])
	return out
}

// LastError returns the most recent ERROR entry.
func (j *OutcomeJournal) LastError() (outcome.Entry, bool) {
	return j.lastOf(outcome.LevelError)
}

// LastInfo returns the most recent INFO entry.
func (j *OutcomeJournal) LastInfo() (outcome.Entry, bool) {
	return j.lastOf(outcome.LevelInfo)
}

func (j *OutcomeJournal) lastOf(level outcome.Level) (outcome.Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].Level == level {
			return j.entries[i], true
		}
	}
	return outcome.Entry{}, false
}

// Entries returns every entry of the given level in append order.
func (j *OutcomeJournal) Entries(level outcome.Level) []outcome.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []outcome.Entry
	for _, e := range j.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (j *OutcomeJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
