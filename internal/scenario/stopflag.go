package scenario

import "sync"

// stopFlag is a mutex-guarded boolean, set once by the send loop when the
// timer reaches its terminal tick, observed by the recv loggers.
type stopFlag struct {
	mu  sync.Mutex
	set bool
}

func (f *stopFlag) isSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

func (f *stopFlag) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = true
}
