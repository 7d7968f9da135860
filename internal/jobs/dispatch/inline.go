package dispatch

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// InlineDispatcher runs jobs on goroutines in the API process with bounded
// concurrency. Used for local development and tests; production runs use
// the Temporal dispatcher.
type InlineDispatcher struct {
	log      *logger.Logger
	registry *runtime.Registry
	group    *errgroup.Group
}

func NewInline(log *logger.Logger, registry *runtime.Registry, maxConcurrency int) *InlineDispatcher {
	if maxConcurrency < 1 {
		maxConcurrency = 4
	}
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrency)
	return &InlineDispatcher{
		log:      log.With("dispatcher", "inline"),
		registry: registry,
		group:    g,
	}
}

func (d *InlineDispatcher) Submit(ctx context.Context, jobType string, payload json.RawMessage) error {
	// The job must outlive the request that submitted it.
	jobCtx := context.WithoutCancel(ctx)
	d.group.Go(func() error {
		if err := d.registry.Run(jobCtx, jobType, payload); err != nil {
			d.log.Error("Inline job failed", "job_type", jobType, "error", err.Error())
		}
		// Job failures are handled by the job itself; never tear the group down.
		return nil
	})
	return nil
}

// Wait blocks until every submitted job has finished. Test helper.
func (d *InlineDispatcher) Wait() {
	_ = d.group.Wait()
}
