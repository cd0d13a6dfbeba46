package scenario

import (
	"time"

	"go.uber.org/zap"

	"github.com/SAM-Research/test-client/internal/data"
	"github.com/SAM-Research/test-client/internal/metrics"
	"github.com/SAM-Research/test-client/internal/protocol"
)

const recvPollTimeout = 500 * time.Millisecond

// recvLoggerParams bundles the per-instance configuration spec.md §4.4
// lists for a recv logger task. Two instances run concurrently, one per
// reception kind, sharing the reservoir and the log via mutual exclusion.
type recvLoggerParams struct {
	channel         <-chan protocol.Envelope
	log             *messageLog
	reservoir       *reservoir
	username        string
	accountToUser   map[string]string
	kind            data.MessageKind
	startTimeMillis int64
	tickMillis      uint32
	stop            *stopFlag
	logger          *zap.Logger
	metrics         *metrics.Registry
}

// runRecvLogger implements spec.md §4.4's loop. It returns once the stop
// flag is observed set at a 500ms poll boundary.
func runRecvLogger(p recvLoggerParams) {
	for !p.stop.isSet() {
		select {
		case env, ok := <-p.channel:
			if !ok {
				// Channel closed (adapter disconnected): nothing left to
				// read. Keep polling the stop flag rather than busy-loop.
				time.Sleep(recvPollTimeout)
				continue
			}
			handleEnvelope(p, env)
		case <-time.After(recvPollTimeout):
			continue
		}
	}
}

func handleEnvelope(p recvLoggerParams, env protocol.Envelope) {
	recvTick := int64(0)
	if env.TimestampUnixMillis > p.startTimeMillis {
		recvTick = (env.TimestampUnixMillis - p.startTimeMillis) / int64(p.tickMillis)
	}

	fromUser, ok := p.accountToUser[env.SourceAccountID]
	if !ok {
		p.logger.Error("unknown sender account id", zap.String("accountId", env.SourceAccountID))
		if p.metrics != nil {
			p.metrics.ReceiveErrors.Inc()
		}
		return
	}

	tick := uint32(recvTick)

	p.reservoir.push(data.IncomingMessage{From: fromUser, Tick: tick, Kind: p.kind})
	if p.metrics != nil {
		p.metrics.ReservoirDepth.Set(float64(p.reservoir.len()))
		p.metrics.ReceivedTotal.Inc()
	}

	p.logger.Info("received message", zap.String("from", fromUser), zap.Stringer("kind", kindStringer(p.kind)))

	p.log.append(data.MessageLog{
		Kind: p.kind,
		From: fromUser,
		To:   p.username,
		Size: uint32(len(env.ContentBytes)),
		Tick: tick,
	})
}

type kindStringer data.MessageKind

func (k kindStringer) String() string { return data.MessageKind(k).String() }
