package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rgupta/feedbridge/internal/model"
)

func TestSchedulerPublishesSignals(t *testing.T) {
	cfg := Config{Interval: 10 * time.Millisecond, Buffer: 16}
	s := New(cfg, func(ctx context.Context) (model.Signal, error) {
		return model.Signal{Action: "BUY", Target: 100, StopLoss: 95}, nil
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case sig := <-s.Signals():
		if sig.Action != "BUY" {
			t.Errorf("Action = %q, want BUY", sig.Action)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no signal published")
	}
}

func TestSchedulerSurvivesFailingTick(t *testing.T) {
	var calls atomic.Int64
	cfg := Config{Interval: 10 * time.Millisecond, Buffer: 16}
	s := New(cfg, func(ctx context.Context) (model.Signal, error) {
		n := calls.Add(1)
		if n == 1 {
			return model.Signal{}, errors.New("indicator blew up")
		}
		return model.Signal{Action: "HOLD"}, nil
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(context.Background())

	// The first tick fails; the loop must still deliver a later signal.
	select {
	case <-s.Signals():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not continue after failed tick")
	}
	if calls.Load() < 2 {
		t.Errorf("tick calls = %d, want >= 2", calls.Load())
	}
}

func TestSchedulerSurvivesPanickingTick(t *testing.T) {
	var calls atomic.Int64
	cfg := Config{Interval: 10 * time.Millisecond, Buffer: 16}
	s := New(cfg, func(ctx context.Context) (model.Signal, error) {
		if calls.Add(1) == 1 {
			panic("placeholder gone wrong")
		}
		return model.Signal{Action: "HOLD"}, nil
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case <-s.Signals():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not continue after panicking tick")
	}
}

func TestSchedulerStop(t *testing.T) {
	cfg := Config{Interval: 5 * time.Millisecond, Buffer: 16}
	s := New(cfg, nil, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// Channel closes after Stop; drain whatever was buffered.
	for range s.Signals() {
	}
}

func TestPlaceholder(t *testing.T) {
	sig, err := Placeholder(context.Background())
	if err != nil {
		t.Fatalf("Placeholder() error = %v", err)
	}
	if sig.Action != "HOLD" {
		t.Errorf("Action = %q, want HOLD", sig.Action)
	}
}
