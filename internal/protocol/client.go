// Package protocol adapts the two concrete messaging-service protocol
// variants (plain and deniable) behind one capability surface, so the
// scenario runner never has to branch on which wire format is in use.
package protocol

import "context"

// Envelope is a decrypted inbound message, as delivered by either
// reception channel.
type Envelope struct {
	SourceAccountID     string
	ContentBytes        []byte
	TimestampUnixMillis int64
}

// Client is the uniform surface the scenario runner drives. Implementations
// must be safe to call from a single goroutine at a time; the runner
// serializes every send and ProcessInbox call behind one mutex (spec.md §5).
// IsDeniable is called without that mutex.
type Client interface {
	AccountID() string
	IsDeniable() bool

	// SubscribeRegular returns a lossy, buffered channel of inbound regular
	// envelopes. Must be called exactly once, before any producer goroutine
	// is started.
	SubscribeRegular() <-chan Envelope

	// SubscribeDeniable returns a lossy, buffered channel of inbound covert
	// envelopes, and false if this variant has no covert channel (plain).
	SubscribeDeniable() (<-chan Envelope, bool)

	SendRegular(ctx context.Context, accountID string, payload []byte) error

	// SendCovert transmits over the covert channel. On the plain variant
	// this is equivalent to SendRegular.
	SendCovert(ctx context.Context, accountID string, payload []byte) error

	// ProcessInbox drives any adapter-internal bookkeeping (keepalives,
	// buffered-frame draining) that must happen between ticks.
	ProcessInbox(ctx context.Context) error

	Disconnect() error
}
