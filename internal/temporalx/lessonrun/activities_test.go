package lessonrun

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

type slowHandler struct {
	d   time.Duration
	err error
}

func (h *slowHandler) Type() string { return "slow" }

func (h *slowHandler) Run(ctx context.Context, payload json.RawMessage) error {
	time.Sleep(h.d)
	return h.err
}

func TestRunHeartbeatsWhileHandlerExecutes(t *testing.T) {
	reg := runtime.NewRegistry()
	if err := reg.Register(&slowHandler{d: 80 * time.Millisecond}); err != nil {
		t.Fatalf("register: %v", err)
	}

	var beats atomic.Int64
	a := &Activities{
		Log:             logger.NewNop(),
		Registry:        reg,
		recordHeartbeat: func(context.Context) { beats.Add(1) },
		heartbeatEvery:  5 * time.Millisecond,
	}

	if err := a.Run(context.Background(), Input{JobType: "slow", Payload: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if beats.Load() == 0 {
		t.Fatal("no heartbeats recorded while the handler was executing")
	}

	// The loop must stop with the activity.
	settled := beats.Load()
	time.Sleep(40 * time.Millisecond)
	if beats.Load() != settled {
		t.Errorf("heartbeat loop kept running after the activity returned")
	}
}

func TestRunStopsHeartbeatOnHandlerFailure(t *testing.T) {
	reg := runtime.NewRegistry()
	wantErr := errors.New("generation failed")
	if err := reg.Register(&slowHandler{d: 30 * time.Millisecond, err: wantErr}); err != nil {
		t.Fatalf("register: %v", err)
	}

	var beats atomic.Int64
	a := &Activities{
		Log:             logger.NewNop(),
		Registry:        reg,
		recordHeartbeat: func(context.Context) { beats.Add(1) },
		heartbeatEvery:  5 * time.Millisecond,
	}

	if err := a.Run(context.Background(), Input{JobType: "slow", Payload: json.RawMessage(`{}`)}); !errors.Is(err, wantErr) {
		t.Fatalf("run error = %v, want %v", err, wantErr)
	}
	settled := beats.Load()
	time.Sleep(40 * time.Millisecond)
	if beats.Load() != settled {
		t.Errorf("heartbeat loop outlived the failed activity")
	}
}
