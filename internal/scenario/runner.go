// Package scenario is the scenario runner: the concurrent, tick-quantized
// state machine described in spec.md §1 and §4.7. It is the only component
// this specification holds to detailed behavioral invariants.
package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SAM-Research/test-client/internal/data"
	"github.com/SAM-Research/test-client/internal/metrics"
	"github.com/SAM-Research/test-client/internal/protocol"
	"github.com/SAM-Research/test-client/internal/sampling"
	"github.com/SAM-Research/test-client/internal/timer"
)

// Runner owns the scenario parameters, start time, logs, stop flag, and
// task set, and composes every other scenario.* component into a single
// Start call (spec.md §4.7).
type Runner struct {
	params data.ScenarioParams
	client protocol.Client
	start  data.StartInfo

	logger  *zap.Logger
	metrics *metrics.Registry
}

// New validates the scenario parameters and builds a Runner. An unknown
// client variant is a fatal error per spec.md §3.
func New(params data.ScenarioParams, client protocol.Client, start data.StartInfo, logger *zap.Logger, metricsRegistry *metrics.Registry) (*Runner, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario parameters: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		params:  params,
		client:  client,
		start:   start,
		logger:  logger,
		metrics: metricsRegistry,
	}, nil
}

// Start consumes the runner and returns the final report. It never returns
// an error: runtime failures are logged through the injected logger and
// swallowed (spec.md §7); they add no entry to the report's message log,
// and the scenario always produces a report.
func (r *Runner) Start(ctx context.Context) data.ClientReport {
	startTimeMillis := time.Now().UnixMilli()

	regularFriends, covertFriends := sampling.PartitionFriends(r.params.Friends, r.client.IsDeniable())
	accountToUser := sampling.InverseAccountIDs(r.start.Friends)

	log := &messageLog{}
	resv := &reservoir{}
	stop := &stopFlag{}

	regularCh := r.client.SubscribeRegular()
	covertCh, hasCovert := r.client.SubscribeDeniable()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRecvLogger(recvLoggerParams{
			channel:         regularCh,
			log:             log,
			reservoir:       resv,
			username:        r.params.Username,
			accountToUser:   accountToUser,
			kind:            data.MessageKindRegular,
			startTimeMillis: startTimeMillis,
			tickMillis:      r.params.TickMillis,
			stop:            stop,
			logger:          r.logger,
			metrics:         r.metrics,
		})
	}()

	if hasCovert {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runRecvLogger(recvLoggerParams{
				channel:         covertCh,
				log:             log,
				reservoir:       resv,
				username:        r.params.Username,
				accountToUser:   accountToUser,
				kind:            data.MessageKindCovert,
				startTimeMillis: startTimeMillis,
				tickMillis:      r.params.TickMillis,
				stop:            stop,
				logger:          r.logger,
				metrics:         r.metrics,
			})
		}()
	}

	state := &actionState{
		client:         r.client,
		clientMu:       &sync.Mutex{},
		regularFriends: regularFriends,
		covertFriends:  covertFriends,
		accountIDs:     r.start.Friends,
		log:            log,
		reservoir:      resv,
		username:       r.params.Username,
		params:         r.params,
		logger:         r.logger,
		metrics:        r.metrics,
	}

	var actions sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.sendLoop(ctx, state, stop, &actions)
	}()

	wg.Wait()
	actions.Wait()

	if err := r.client.Disconnect(); err != nil {
		r.logger.Error("disconnect failed", zap.Error(err))
	}

	return data.ClientReport{
		StartTimeUnixMillis: uint64(startTimeMillis),
		Messages:            log.snapshot(),
	}
}

// sendLoop is spec.md §4.7's send loop body: an eager first send, then
// per-tick inbox processing, reply, and send actions, each spawned as an
// independent task so a slow adapter call never delays the next tick.
func (r *Runner) sendLoop(ctx context.Context, state *actionState, stop *stopFlag, actions *sync.WaitGroup) {
	t := timer.New(time.Duration(r.params.TickMillis)*time.Millisecond, r.params.DurationTicks)

	spawn(actions, func() {
		state.sendAction(ctx, t.CurrentTick(), rand.New(rand.NewSource(time.Now().UnixNano())))
	})

	for t.Next(ctx) {
		spawn(actions, func() {
			state.processInbox(ctx)
		})

		if t.DoAction(r.params.ReplyRate) {
			tick := t.CurrentTick()
			spawn(actions, func() {
				state.replyAction(ctx, tick, rand.New(rand.NewSource(time.Now().UnixNano())))
			})
		}

		if t.DoAction(r.params.SendRate) {
			tick := t.CurrentTick()
			spawn(actions, func() {
				state.sendAction(ctx, tick, rand.New(rand.NewSource(time.Now().UnixNano())))
			})
		}
	}

	stop.signal()
}

func spawn(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}
