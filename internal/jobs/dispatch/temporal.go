package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/temporalx/lessonrun"
)

// temporalDispatcher starts one workflow per submitted job on the lesson
// task queue. Workers pick the jobs up wherever they run.
type temporalDispatcher struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewTemporal(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string) (Dispatcher, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if taskQueue == "" {
		return nil, fmt.Errorf("missing task queue")
	}
	return &temporalDispatcher{
		log:       log.With("dispatcher", "temporal"),
		tc:        tc,
		taskQueue: taskQueue,
	}, nil
}

func (d *temporalDispatcher) Submit(ctx context.Context, jobType string, payload json.RawMessage) error {
	workflowID := jobType + "-" + uuid.New().String()
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: d.taskQueue,
	}
	in := lessonrun.Input{JobType: jobType, Payload: payload}

	run, err := d.tc.ExecuteWorkflow(ctx, opts, lessonrun.WorkflowName, in)
	if err != nil {
		return fmt.Errorf("start workflow %s: %w", workflowID, err)
	}
	d.log.Debug("Submitted lesson job", "job_type", jobType, "workflow_id", workflowID, "run_id", run.GetRunID())
	return nil
}
