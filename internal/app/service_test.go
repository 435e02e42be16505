package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/referral-rewards/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	block    bool

	mu      sync.Mutex
	stopped bool
	order   *[]string
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.order != nil {
		*s.order = append(*s.order, s.name)
	}
	return nil
}

func (s *fakeService) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllOnServiceFailure(t *testing.T) {
	boom := errors.New("boom")
	failing := &fakeService{name: "failing", startErr: boom}
	blocking := &fakeService{name: "blocking", block: true}

	err := NewRunner(failing, blocking).Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !failing.isStopped() || !blocking.isStopped() {
		t.Fatalf("all services must be stopped")
	}
}

func TestRunnerCancelReturnsNil(t *testing.T) {
	blocking := &fakeService{name: "blocking", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewRunner(blocking).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled run should return nil, got %v", err)
	}
}

func TestRunnerStopsInReverseOrder(t *testing.T) {
	var order []string
	sweeper := &fakeService{name: "sweeper", block: true, order: &order}
	worker := &fakeService{name: "worker", startErr: errors.New("redis gone"), order: &order}

	if err := NewRunner(sweeper, worker).Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected worker failure to surface")
	}
	if len(order) != 2 || order[0] != "worker" || order[1] != "sweeper" {
		t.Fatalf("unexpected stop order: %v", order)
	}
}

func TestRunnerRejectsNilService(t *testing.T) {
	if err := NewRunner(&fakeService{name: "worker"}, nil).Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("nil service must fail")
	}
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("empty runner must fail")
	}
}

func TestBuildRunnerValidation(t *testing.T) {
	if _, _, err := BuildRunner(nil, nil, ModeAll); err == nil {
		t.Fatalf("nil config must fail")
	}
	if _, _, err := BuildRunner(&config.Config{}, nil, ModeAll); err == nil {
		t.Fatalf("nil db must fail")
	}
	if err := Run(Options{}); err == nil {
		t.Fatalf("run without config must fail")
	}
}
