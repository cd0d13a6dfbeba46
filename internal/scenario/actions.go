package scenario

import (
	"context"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/SAM-Research/test-client/internal/data"
	"github.com/SAM-Research/test-client/internal/metrics"
	"github.com/SAM-Research/test-client/internal/protocol"
	"github.com/SAM-Research/test-client/internal/sampling"
)

// actionState is the shared, mutex-guarded context every send/reply/inbox
// action closes over. clientMu serializes every send and ProcessInbox call,
// because the underlying protocol client is not reentrant (spec.md §5).
// IsDeniable is read without it.
type actionState struct {
	client   protocol.Client
	clientMu *sync.Mutex

	regularFriends map[string]data.Friend
	covertFriends  map[string]data.Friend
	accountIDs     map[string]string // username -> account id

	log       *messageLog
	reservoir *reservoir

	username string
	params   data.ScenarioParams

	logger  *zap.Logger
	metrics *metrics.Registry
}

// processInbox drives spec.md §4.7's per-tick "process inbox" task.
func (s *actionState) processInbox(ctx context.Context) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if err := s.client.ProcessInbox(ctx); err != nil {
		s.logger.Error("process inbox failed", zap.Error(err))
	}
}

// sendAction implements spec.md §4.5.
func (s *actionState) sendAction(ctx context.Context, currentTick uint32, rng *rand.Rand) {
	min, max := s.params.MessageSizeRange.Min, s.params.MessageSizeRange.Max
	payload := sampling.RandomPayload(rng, min, max)

	useCovert := sampling.Bernoulli(rng, s.params.CovertProbability) && s.client.IsDeniable() && len(s.covertFriends) > 0

	set := s.regularFriends
	if useCovert {
		set = s.covertFriends
	}

	friend, ok := pickFriend(rng, set)
	if !ok {
		s.logger.Warn("send action: weighted pick yielded no friend")
		return
	}

	accountID, ok := s.accountIDs[friend.Username]
	if !ok {
		s.logger.Error("send action: friend has no account id", zap.String("friend", friend.Username))
		return
	}

	kind := data.MessageKindRegular
	s.clientMu.Lock()
	var err error
	if useCovert {
		kind = data.MessageKindCovert
		err = s.client.SendCovert(ctx, accountID, payload)
	} else {
		err = s.client.SendRegular(ctx, accountID, payload)
	}
	s.clientMu.Unlock()

	if err != nil {
		s.logger.Error("send action: adapter error", zap.Error(err))
		if s.metrics != nil {
			s.metrics.SendFailures.Inc()
		}
		return
	}

	s.logger.Info("sent message", zap.String("to", friend.Username), zap.Stringer("kind", kindStringer(kind)))
	if s.metrics != nil {
		if kind == data.MessageKindCovert {
			s.metrics.SendsCovert.Inc()
		} else {
			s.metrics.SendsRegular.Inc()
		}
	}

	s.log.append(data.MessageLog{
		Kind: kind,
		From: s.username,
		To:   friend.Username,
		Size: uint32(len(payload)),
		Tick: currentTick,
	})
}

// replyAction implements spec.md §4.6.
func (s *actionState) replyAction(ctx context.Context, currentTick uint32, rng *rand.Rand) {
	chosen, ok := s.reservoir.pickReply(rng, currentTick, s.params.StaleReplyTicks, s.allFriends())
	if s.metrics != nil {
		s.metrics.ReservoirDepth.Set(float64(s.reservoir.len()))
	}
	if !ok {
		return
	}

	if !sampling.Bernoulli(rng, s.params.ReplyProbability) {
		if s.metrics != nil {
			s.metrics.ReplySkips.Inc()
		}
		return
	}

	accountID, ok := s.accountIDs[chosen.From]
	if !ok {
		s.logger.Error("reply action: friend has no account id", zap.String("friend", chosen.From))
		return
	}

	min, max := s.params.MessageSizeRange.Min, s.params.MessageSizeRange.Max
	payload := sampling.RandomPayload(rng, min, max)

	s.clientMu.Lock()
	var err error
	if chosen.Kind == data.MessageKindCovert {
		err = s.client.SendCovert(ctx, accountID, payload)
	} else {
		err = s.client.SendRegular(ctx, accountID, payload)
	}
	s.clientMu.Unlock()

	if err != nil {
		s.logger.Error("reply action: adapter error", zap.Error(err))
		if s.metrics != nil {
			s.metrics.SendFailures.Inc()
		}
		return
	}

	s.logger.Info("sent reply", zap.String("to", chosen.From), zap.Stringer("kind", kindStringer(chosen.Kind)))
	if s.metrics != nil {
		s.metrics.RepliesSent.Inc()
	}

	s.log.append(data.MessageLog{
		Kind: chosen.Kind,
		From: s.username,
		To:   chosen.From,
		Size: uint32(len(payload)),
		Tick: currentTick,
	})
}

// allFriends merges regular and covert friends for reply-weight lookups:
// a reply's weight is the peer's frequency regardless of which channel
// they were received on (spec.md §4.6 step 4).
func (s *actionState) allFriends() map[string]data.Friend {
	out := make(map[string]data.Friend, len(s.regularFriends)+len(s.covertFriends))
	for k, v := range s.regularFriends {
		out[k] = v
	}
	for k, v := range s.covertFriends {
		out[k] = v
	}
	return out
}

func pickFriend(rng *rand.Rand, set map[string]data.Friend) (data.Friend, bool) {
	items := make([]data.Friend, 0, len(set))
	weights := make([]float64, 0, len(set))
	for _, f := range set {
		items = append(items, f)
		weights = append(weights, f.Frequency)
	}
	return sampling.WeightedPick(rng, items, weights)
}
