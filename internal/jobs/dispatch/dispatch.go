package dispatch

import (
	"context"
	"encoding/json"
)

// Dispatcher submits a job for asynchronous execution. Submit returns once
// the job is accepted; it never waits for completion.
type Dispatcher interface {
	Submit(ctx context.Context, jobType string, payload json.RawMessage) error
}
