package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/temporalx"
	"github.com/courseforge/courseforge-backend/internal/temporalx/lessonrun"
	"github.com/courseforge/courseforge-backend/internal/utils"
)

// Runner polls the lesson task queue and executes lesson workflows.
type Runner struct {
	log      *logger.Logger
	tc       temporalsdkclient.Client
	cfg      *config.Config
	registry *runtime.Registry
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg *config.Config, registry *runtime.Registry) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if cfg == nil || registry == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{log: log, tc: tc, cfg: cfg, registry: registry}, nil
}

// Start brings the worker up, retrying with backoff while the server or
// namespace is still coming online. The worker stops when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker",
		"namespace", r.cfg.Temporal.Namespace,
		"task_queue", r.cfg.Temporal.TaskQueue,
	)

	if utils.GetEnvAsBool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false, r.log) {
		if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "error", err)
		}
	}

	backoff := 250 * time.Millisecond
	deadline := time.Now().Add(60 * time.Second)

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.Temporal.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		if time.Now().After(deadline) {
			var nfe *serviceerror.NamespaceNotFound
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Temporal.Namespace, startErr)
			}
			return startErr
		}

		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		sleep := backoff
		for i := 1; i < attempt; i++ {
			sleep *= 2
			if sleep > 5*time.Second {
				sleep = 5 * time.Second
				break
			}
		}
		time.Sleep(sleep)
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, r.log)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, r.cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &lessonrun.Activities{Log: r.log, Registry: r.registry}
	w.RegisterWorkflowWithOptions(lessonrun.Workflow, workflow.RegisterOptions{Name: lessonrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Run, activity.RegisterOptions{Name: lessonrun.ActivityName})
	return w
}
