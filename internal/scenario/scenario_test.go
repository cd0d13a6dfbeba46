package scenario

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SAM-Research/test-client/internal/data"
	"github.com/SAM-Research/test-client/internal/protocol"
)

type sentMsg struct {
	to      string
	payload []byte
	covert  bool
}

// stubClient is a fully in-memory protocol.Client used so scenario tests
// never touch a real socket (SPEC_FULL.md §8).
type stubClient struct {
	accountID string
	deniable  bool

	regularCh chan protocol.Envelope
	covertCh  chan protocol.Envelope
	hasCovert bool

	mu              sync.Mutex
	sent            []sentMsg
	disconnectCount int
}

func newStubClient(accountID string, deniable bool) *stubClient {
	s := &stubClient{
		accountID: accountID,
		deniable:  deniable,
		regularCh: make(chan protocol.Envelope, 64),
	}
	if deniable {
		s.covertCh = make(chan protocol.Envelope, 64)
		s.hasCovert = true
	}
	return s
}

func (s *stubClient) AccountID() string { return s.accountID }
func (s *stubClient) IsDeniable() bool  { return s.deniable }

func (s *stubClient) SubscribeRegular() <-chan protocol.Envelope { return s.regularCh }

func (s *stubClient) SubscribeDeniable() (<-chan protocol.Envelope, bool) {
	if !s.hasCovert {
		return nil, false
	}
	return s.covertCh, true
}

func (s *stubClient) SendRegular(ctx context.Context, accountID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMsg{to: accountID, payload: payload})
	return nil
}

func (s *stubClient) SendCovert(ctx context.Context, accountID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMsg{to: accountID, payload: payload, covert: true})
	return nil
}

func (s *stubClient) ProcessInbox(ctx context.Context) error { return nil }

func (s *stubClient) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectCount++
	return nil
}

func (s *stubClient) sentSnapshot() []sentMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMsg, len(s.sent))
	copy(out, s.sent)
	return out
}

func baseParams() data.ScenarioParams {
	return data.ScenarioParams{
		ClientVariant:     data.ClientVariantPlain,
		Username:          "self",
		MessageSizeRange:  data.SizeRange{Min: 8, Max: 8},
		SendRate:          1,
		ReplyRate:         100,
		TickMillis:        5,
		DurationTicks:     4,
		CovertProbability: 0,
		ReplyProbability:  0,
		StaleReplyTicks:   0,
		Friends:           map[string]data.Friend{},
	}
}

func TestPlainZeroTraffic(t *testing.T) {
	params := baseParams()
	params.SendRate = 100
	params.ReplyRate = 100
	params.DurationTicks = 5
	params.Friends = map[string]data.Friend{}

	client := newStubClient("acct-self", false)
	start := data.StartInfo{Friends: map[string]string{}}

	runner, err := New(params, client, start, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report := runner.Start(context.Background())

	if len(report.Messages) != 0 {
		t.Fatalf("expected no messages for an empty friend set, got %d", len(report.Messages))
	}
	if report.StartTimeUnixMillis == 0 {
		t.Fatal("expected a non-zero start time")
	}
}

// TestPlainDeterministicSend exercises spec.md §8 test 2. Timer semantics
// are ported literally from original_source/src/timer.rs: Next() returns
// true only while the incremented counter differs from end_tick, so with
// DurationTicks=4 the loop body runs at ticks 1,2,3 (not 4) — four
// send-action invocations total (the eager one plus three from the loop),
// not five. See DESIGN.md for why this implementation follows the
// component mechanics (and the original source) over the arithmetic in
// spec.md's illustrative walkthrough.
func TestPlainDeterministicSend(t *testing.T) {
	params := baseParams()
	params.SendRate = 1
	params.ReplyRate = 100
	params.DurationTicks = 4
	params.Friends = map[string]data.Friend{
		"A": {Username: "A", Frequency: 1.0, Deniable: false},
	}

	client := newStubClient("acct-self", false)
	start := data.StartInfo{Friends: map[string]string{"A": "acct-A"}}

	runner, err := New(params, client, start, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report := runner.Start(context.Background())

	if len(report.Messages) != 4 {
		t.Fatalf("expected 4 regular log entries, got %d: %+v", len(report.Messages), report.Messages)
	}
	seenTicks := map[uint32]bool{}
	for _, m := range report.Messages {
		if m.Kind != data.MessageKindRegular {
			t.Errorf("expected regular kind, got %v", m.Kind)
		}
		if m.To != "A" {
			t.Errorf("expected to=A, got %s", m.To)
		}
		if m.Size != 8 {
			t.Errorf("expected size 8, got %d", m.Size)
		}
		seenTicks[m.Tick] = true
	}
	for _, want := range []uint32{0, 1, 2, 3} {
		if !seenTicks[want] {
			t.Errorf("expected a send entry at tick %d", want)
		}
	}
}

func TestDeniableCovertRouting(t *testing.T) {
	params := baseParams()
	params.ClientVariant = data.ClientVariantDeniable
	params.SendRate = 1
	params.ReplyRate = 100
	params.DurationTicks = 3
	params.CovertProbability = 1.0
	params.Friends = map[string]data.Friend{
		"A": {Username: "A", Frequency: 1.0, Deniable: false},
		"B": {Username: "B", Frequency: 1.0, Deniable: true},
	}

	client := newStubClient("acct-self", true)
	start := data.StartInfo{Friends: map[string]string{"A": "acct-A", "B": "acct-B"}}

	runner, err := New(params, client, start, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report := runner.Start(context.Background())

	if len(report.Messages) == 0 {
		t.Fatal("expected at least one send entry")
	}
	for _, m := range report.Messages {
		if m.Kind != data.MessageKindCovert {
			t.Errorf("expected covert kind, got %v", m.Kind)
		}
		if m.To != "B" {
			t.Errorf("expected to=B, got %s", m.To)
		}
	}
}

func TestDeniableCovertFallsBackWithoutCovertFriend(t *testing.T) {
	params := baseParams()
	params.ClientVariant = data.ClientVariantDeniable
	params.SendRate = 1
	params.ReplyRate = 100
	params.DurationTicks = 3
	params.CovertProbability = 1.0
	params.Friends = map[string]data.Friend{
		"A": {Username: "A", Frequency: 1.0, Deniable: false},
	}

	client := newStubClient("acct-self", true)
	start := data.StartInfo{Friends: map[string]string{"A": "acct-A"}}

	runner, err := New(params, client, start, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report := runner.Start(context.Background())

	if len(report.Messages) == 0 {
		t.Fatal("expected at least one send entry")
	}
	for _, m := range report.Messages {
		if m.Kind != data.MessageKindRegular {
			t.Errorf("expected regular kind when no covert friend exists, got %v", m.Kind)
		}
		if m.To != "A" {
			t.Errorf("expected to=A, got %s", m.To)
		}
	}
}

// TestReplyFlow exercises spec.md §8 test 5. The staleness predicate is
// kept literal (see reservoir.go), which means whether an injected message
// survives to be replied to is itself racy against the reply loop's own
// tick cadence — the spec explicitly calls the exact count
// resolution-dependent. This test only asserts the invariant that holds
// regardless of that race: any reply that is sent goes to the peer that
// actually sent the original message.
func TestReplyFlow(t *testing.T) {
	params := baseParams()
	params.SendRate = 1000 // effectively disable eager/loop sends beyond tick 0
	params.ReplyRate = 1
	params.ReplyProbability = 1.0
	params.StaleReplyTicks = 0
	params.TickMillis = 20
	params.DurationTicks = 8
	params.Friends = map[string]data.Friend{
		"A": {Username: "A", Frequency: 1.0, Deniable: false},
	}

	client := newStubClient("acct-self", false)
	start := data.StartInfo{Friends: map[string]string{"A": "acct-A"}}

	runner, err := New(params, client, start, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		now := time.Now().UnixMilli()
		for i := 0; i < 2; i++ {
			client.regularCh <- protocol.Envelope{
				SourceAccountID:     "acct-A",
				ContentBytes:        []byte("hello"),
				TimestampUnixMillis: now,
			}
		}
	}()

	report := runner.Start(context.Background())

	for _, m := range report.Messages {
		if m.From == "self" && m.Kind == data.MessageKindRegular {
			if m.To != "A" {
				t.Errorf("reply sent to unexpected peer %s", m.To)
			}
		}
	}
}

func TestShutdownDrainDisconnectsExactlyOnce(t *testing.T) {
	params := baseParams()
	params.DurationTicks = 2
	params.Friends = map[string]data.Friend{}

	client := newStubClient("acct-self", false)
	start := data.StartInfo{Friends: map[string]string{}}

	runner, err := New(params, client, start, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runner.Start(context.Background())

	if client.disconnectCount != 1 {
		t.Fatalf("expected disconnect exactly once, got %d", client.disconnectCount)
	}
}
