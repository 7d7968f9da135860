package lessongen

import (
	"context"
	"time"

	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

const (
	providerAttempts    = 2
	providerBackoffBase = 20 * time.Second
)

// withProviderRetry re-runs fn once after a long pause when the model
// provider is rate limiting or failing transiently. Anything else fails
// immediately; the execution framework does not retry lesson jobs.
func withProviderRetry(ctx context.Context, log *logger.Logger, fn func() error) error {
	var err error
	backoff := providerBackoffBase
	for attempt := 1; attempt <= providerAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt == providerAttempts || !openai.IsRateLimited(err) {
			return err
		}
		log.Warn("Provider rate limited; backing off",
			"attempt", attempt,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}
