package sampling

import (
	"math/rand"
	"testing"

	"github.com/SAM-Research/test-client/internal/data"
)

func TestWeightedPickEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, ok := WeightedPick(rng, []string{}, []float64{})
	if ok {
		t.Fatal("expected no pick from empty set")
	}
}

func TestWeightedPickZeroWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, ok := WeightedPick(rng, []string{"a", "b"}, []float64{0, 0})
	if ok {
		t.Fatal("expected no pick when all weights are zero")
	}
}

func TestWeightedPickSingleItem(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	got, ok := WeightedPick(rng, []string{"only"}, []float64{1})
	if !ok || got != "only" {
		t.Fatalf("expected 'only', got %q ok=%v", got, ok)
	}
}

func TestWeightedPickConvergesToWeightShare(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	items := []string{"a", "b", "c"}
	weights := []float64{1, 2, 7}

	const trials = 50000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		got, ok := WeightedPick(rng, items, weights)
		if !ok {
			t.Fatal("unexpected pick failure")
		}
		counts[got]++
	}

	expect := map[string]float64{"a": 0.1, "b": 0.2, "c": 0.7}
	for item, want := range expect {
		got := float64(counts[item]) / trials
		if diff := got - want; diff > 0.02 || diff < -0.02 {
			t.Errorf("item %q: empirical frequency %.4f, want ~%.4f", item, got, want)
		}
	}
}

func TestBernoulliZeroNeverFires(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		if Bernoulli(rng, 0) {
			t.Fatal("bernoulli(0) fired")
		}
	}
}

func TestBernoulliOneAlwaysFires(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		if !Bernoulli(rng, 1) {
			t.Fatal("bernoulli(1) did not fire")
		}
	}
}

func TestBernoulliClampsOutOfRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if !Bernoulli(rng, 1.5) {
			t.Fatal("bernoulli(1.5) should clamp to always-fire")
		}
		if Bernoulli(rng, -0.5) {
			t.Fatal("bernoulli(-0.5) should clamp to never-fire")
		}
	}
}

func TestRandomPayloadLengthInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		payload := RandomPayload(rng, 4, 10)
		if len(payload) < 4 || len(payload) > 10 {
			t.Fatalf("payload length %d out of [4,10]", len(payload))
		}
	}
}

func TestRandomPayloadFixedSize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	payload := RandomPayload(rng, 8, 8)
	if len(payload) != 8 {
		t.Fatalf("expected fixed length 8, got %d", len(payload))
	}
}

func TestPartitionFriendsPlainCollapsesCovert(t *testing.T) {
	friends := map[string]data.Friend{
		"a": {Username: "a", Frequency: 1, Deniable: false},
		"b": {Username: "b", Frequency: 1, Deniable: true},
	}
	regular, covert := PartitionFriends(friends, false)
	if len(regular) != 2 || len(covert) != 0 {
		t.Fatalf("plain variant should put all friends in regular set, got regular=%d covert=%d", len(regular), len(covert))
	}
}

func TestPartitionFriendsDeniableSplits(t *testing.T) {
	friends := map[string]data.Friend{
		"a": {Username: "a", Frequency: 1, Deniable: false},
		"b": {Username: "b", Frequency: 1, Deniable: true},
	}
	regular, covert := PartitionFriends(friends, true)
	if len(regular) != 1 || len(covert) != 1 {
		t.Fatalf("expected 1 regular, 1 covert, got regular=%d covert=%d", len(regular), len(covert))
	}
	if _, ok := covert["b"]; !ok {
		t.Fatal("expected friend b in covert set")
	}
}

func TestInverseAccountIDs(t *testing.T) {
	friends := map[string]string{"alice": "acct-1", "bob": "acct-2"}
	inverse := InverseAccountIDs(friends)
	if inverse["acct-1"] != "alice" || inverse["acct-2"] != "bob" {
		t.Fatalf("unexpected inverse map: %#v", inverse)
	}
}
