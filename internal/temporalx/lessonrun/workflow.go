package lessonrun

import (
	"encoding/json"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	WorkflowName = "lesson.generate"
	ActivityName = "lesson.generate.run"
)

// Input is the unit of work for one lesson generation workflow.
type Input struct {
	JobType string          `json:"job_type"`
	Payload json.RawMessage `json:"payload"`
}

// Workflow runs a single lesson job as one activity execution.
// MaximumAttempts is pinned to 1: strategies carry their own bounded
// retries, and a framework-level retry would re-increment the shared
// generatedLessons counter for a lesson that already landed.
func Workflow(ctx workflow.Context, in Input) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	return workflow.ExecuteActivity(ctx, ActivityName, in).Get(ctx, nil)
}
