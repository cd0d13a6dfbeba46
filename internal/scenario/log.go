package scenario

import (
	"sync"

	"github.com/SAM-Research/test-client/internal/data"
)

// messageLog is the mutex-guarded, append-only, totally-ordered log the
// scenario accumulates. Appenders hold the lock only for the append
// (spec.md §5).
type messageLog struct {
	mu      sync.Mutex
	entries []data.MessageLog
}

func (l *messageLog) append(entry data.MessageLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// snapshot returns a copy of the log. Must only be called after every
// appender has finished (spec.md §5: "all appends strictly precede the
// final snapshot").
func (l *messageLog) snapshot() []data.MessageLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]data.MessageLog, len(l.entries))
	copy(out, l.entries)
	return out
}
