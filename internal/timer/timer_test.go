package timer

import (
	"context"
	"testing"
	"time"
)

func TestNextCountsUpToEndTick(t *testing.T) {
	tm := New(time.Millisecond, 3)
	ctx := context.Background()

	if !tm.Next(ctx) {
		t.Fatal("expected Next to return true at tick 1")
	}
	if tm.CurrentTick() != 1 {
		t.Fatalf("expected tick 1, got %d", tm.CurrentTick())
	}
	if !tm.Next(ctx) {
		t.Fatal("expected Next to return true at tick 2")
	}
	if tm.Next(ctx) {
		t.Fatal("expected Next to return false at terminal tick 3")
	}
	if tm.CurrentTick() != 3 {
		t.Fatalf("expected terminal tick 3, got %d", tm.CurrentTick())
	}
}

func TestDoActionFiresAtZeroAndMultiples(t *testing.T) {
	tm := New(time.Millisecond, 10)
	ctx := context.Background()

	if !tm.DoAction(2) {
		t.Fatal("expected DoAction(2) to fire at tick 0")
	}

	tm.Next(ctx) // tick 1
	if tm.DoAction(2) {
		t.Fatal("did not expect DoAction(2) to fire at tick 1")
	}

	tm.Next(ctx) // tick 2
	if !tm.DoAction(2) {
		t.Fatal("expected DoAction(2) to fire at tick 2")
	}
}

func TestDoActionRateOneFiresEveryTick(t *testing.T) {
	tm := New(time.Millisecond, 5)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if !tm.DoAction(1) {
			t.Fatalf("expected DoAction(1) to fire at tick %d", tm.CurrentTick())
		}
		tm.Next(ctx)
	}
}

func TestNextStopsOnContextCancel(t *testing.T) {
	tm := New(time.Second, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if tm.Next(ctx) {
		t.Fatal("expected Next to return false once context is cancelled")
	}
}
