package lessonrun

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// heartbeatInterval must stay well under the workflow's HeartbeatTimeout so
// a slow generation (provider backoff, long tool loops) is never mistaken
// for a dead worker.
const heartbeatInterval = 10 * time.Second

type Activities struct {
	Log      *logger.Logger
	Registry *runtime.Registry

	// Test hooks; zero values select the production behavior.
	recordHeartbeat func(ctx context.Context)
	heartbeatEvery  time.Duration
}

// Run routes the job through the handler registry, heartbeating for the
// duration. Rollback on failure is the handler's responsibility; this
// activity only reports the outcome.
func (a *Activities) Run(ctx context.Context, in Input) error {
	stop := a.startHeartbeat(ctx)
	defer stop()

	err := a.Registry.Run(ctx, in.JobType, in.Payload)
	if err != nil {
		a.Log.Error("Lesson job failed", "job_type", in.JobType, "error", err.Error())
	}
	return err
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	record := a.recordHeartbeat
	if record == nil {
		record = func(ctx context.Context) { activity.RecordHeartbeat(ctx) }
	}
	every := a.heartbeatEvery
	if every <= 0 {
		every = heartbeatInterval
	}

	done := make(chan struct{})
	go func() {
		tick := time.NewTicker(every)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-tick.C:
				record(ctx)
			}
		}
	}()
	return func() { close(done) }
}
