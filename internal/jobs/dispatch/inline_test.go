package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

type countingHandler struct {
	name string
	runs atomic.Int64
	err  error
}

func (h *countingHandler) Type() string { return h.name }

func (h *countingHandler) Run(ctx context.Context, payload json.RawMessage) error {
	h.runs.Add(1)
	return h.err
}

func TestInlineDispatcherRunsAllJobs(t *testing.T) {
	reg := runtime.NewRegistry()
	h := &countingHandler{name: "job.test"}
	if err := reg.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewInline(logger.NewNop(), reg, 2)
	for i := 0; i < 10; i++ {
		if err := d.Submit(context.Background(), "job.test", json.RawMessage(`{}`)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	d.Wait()

	if got := h.runs.Load(); got != 10 {
		t.Errorf("runs = %d, want 10", got)
	}
}

func TestInlineDispatcherSurvivesJobFailure(t *testing.T) {
	reg := runtime.NewRegistry()
	failing := &countingHandler{name: "job.fail", err: errors.New("boom")}
	ok := &countingHandler{name: "job.ok"}
	_ = reg.Register(failing)
	_ = reg.Register(ok)

	d := NewInline(logger.NewNop(), reg, 2)
	_ = d.Submit(context.Background(), "job.fail", json.RawMessage(`{}`))
	_ = d.Submit(context.Background(), "job.ok", json.RawMessage(`{}`))
	d.Wait()

	if ok.runs.Load() != 1 {
		t.Error("a failing job prevented a sibling job from running")
	}
}

func TestInlineDispatcherOutlivesRequestContext(t *testing.T) {
	reg := runtime.NewRegistry()
	ctxSeen := make(chan error, 1)
	_ = reg.Register(&ctxReporter{ch: ctxSeen})

	d := NewInline(logger.NewNop(), reg, 1)
	ctx, cancel := context.WithCancel(context.Background())
	_ = d.Submit(ctx, "job.ctx", json.RawMessage(`{}`))
	cancel()
	d.Wait()

	if err := <-ctxSeen; err != nil {
		t.Errorf("job context was cancelled with the request: %v", err)
	}
}

type ctxReporter struct {
	ch chan error
}

func (r *ctxReporter) Type() string { return "job.ctx" }

func (r *ctxReporter) Run(ctx context.Context, payload json.RawMessage) error {
	r.ch <- ctx.Err()
	return nil
}
