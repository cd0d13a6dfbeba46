package scenario

import (
	"math/rand"
	"sync"

	"github.com/SAM-Research/test-client/internal/data"
	"github.com/SAM-Research/test-client/internal/sampling"
)

// reservoir is the bounded, mutable list of recently received messages
// eligible for reply. The reply action must hold the lock across prune,
// pick, and remove (spec.md §5: "must be atomic").
type reservoir struct {
	mu    sync.Mutex
	items []data.IncomingMessage
}

func (r *reservoir) push(msg data.IncomingMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, msg)
}

func (r *reservoir) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// pickReply applies the staleness prune, weighted pick, and removal in one
// atomic step, per spec.md §4.6.
//
// The prune predicate is ported literally from the source implementation:
// it retains entries where currentTick - entry.tick > staleTicks, i.e. it
// keeps STALE entries and discards FRESH ones. Read literally, replies only
// ever fire against aged messages. This is almost certainly inverted from
// the intended behavior, but spec.md §9 calls for preserving the observed
// behavior in a first port rather than silently "fixing" it; flagged here
// and in DESIGN.md rather than changed.
func (r *reservoir) pickReply(rng *rand.Rand, currentTick, staleTicks uint32, friends map[string]data.Friend) (data.IncomingMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0:0]
	for _, item := range r.items {
		age := int64(currentTick) - int64(item.Tick)
		if age > int64(staleTicks) {
			kept = append(kept, item)
		}
	}
	r.items = kept

	if len(r.items) == 0 {
		return data.IncomingMessage{}, false
	}

	weights := make([]float64, len(r.items))
	for i, item := range r.items {
		if f, ok := friends[item.From]; ok {
			weights[i] = f.Frequency
		}
	}

	chosen, ok := sampling.WeightedPick(rng, r.items, weights)
	if !ok {
		return data.IncomingMessage{}, false
	}

	for i, item := range r.items {
		if item == chosen {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}

	return chosen, true
}
