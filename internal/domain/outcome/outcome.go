package outcome

import (
	"context"
	"strconv"
	"time"
)

// Level is the severity of an outcome entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Entry is one line of the outcome log. Seq is assigned on append and starts at 1.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Logger receives exactly one line per classified payment attempt.
type Logger interface {
	Info(message string)
	Error(message string)
}

// Reader exposes the recorded lines, oldest first.
type Reader interface {
	Last(n int) []Entry
	LastError() (Entry, bool)
	Len() int
}

// Archive is durable storage that outlives the in-process log.
type Archive interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
}

// RecordedEvent is published after an entry is appended.
type RecordedEvent struct {
	Entry Entry
}

const RecordedEventName = "outcome.recorded"

func (RecordedEvent) EventName() string { return RecordedEventName }

func (e RecordedEvent) EventID() string { return "outcome-" + strconv.FormatUint(e.Entry.Seq, 10) }

type discard struct{}

func (discard) Info(string)  {}
func (discard) Error(string) {}

// Discard returns a Logger that drops every line.
func Discard() Logger { return discard{} }
