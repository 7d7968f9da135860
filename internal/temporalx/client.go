package temporalx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/utils"
)

// NewClient dials Temporal using the address from config, retrying with
// backoff until the dial deadline passes. Returns (nil, nil) when no
// address is configured so callers can fall back to the inline dispatcher.
func NewClient(cfg *config.Config, log *logger.Logger) (temporalsdkclient.Client, error) {
	address := strings.TrimSpace(cfg.Temporal.Address)
	if address == "" {
		log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    log,
	}

	dialTimeout := 5 * time.Second
	maxWait := 60 * time.Second
	backoff := 250 * time.Millisecond

	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		c, err := temporalsdkclient.DialContext(ctx, opts)
		cancel()
		if err == nil {
			if attempt > 1 {
				log.Info("Connected to Temporal", "address", address, "namespace", cfg.Temporal.Namespace, "attempts", attempt)
			}
			if utils.GetEnvAsBool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false, log) {
				if err := EnsureNamespace(context.Background(), cfg, log); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", address, cfg.Temporal.Namespace, err)
		}
		log.Warn("Temporal not reachable; retrying", "address", address, "attempt", attempt, "error", err)
		time.Sleep(clampBackoff(backoff, 5*time.Second, attempt))
	}
}

// EnsureNamespace creates the configured namespace when it does not exist.
// Intended for local/self-hosted Temporal; cloud namespaces should be
// pre-provisioned.
func EnsureNamespace(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	namespace := strings.TrimSpace(cfg.Temporal.Namespace)
	if namespace == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The NamespaceClient carries no implicit namespace header, so it can
	// create the namespace before it exists.
	nsClient, err := temporalsdkclient.NewNamespaceClient(temporalsdkclient.Options{
		HostPort: cfg.Temporal.Address,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	backoff := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", namespace, ctx.Err())
		}

		_, err := nsClient.Describe(ctx, namespace)
		if err == nil {
			return nil
		}

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			regErr := nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        namespace,
				Description:                      "courseforge auto-registered namespace",
				WorkflowExecutionRetentionPeriod: durationpb.New(7 * 24 * time.Hour),
			})
			if regErr == nil {
				log.Info("Registered Temporal namespace", "namespace", namespace)
				return nil
			}
			var already *serviceerror.NamespaceAlreadyExists
			if errors.As(regErr, &already) {
				return nil
			}
			if isRetryableRPC(regErr) {
				time.Sleep(clampBackoff(backoff, 5*time.Second, attempt))
				continue
			}
			return fmt.Errorf("temporal namespace ensure: register namespace: %w", regErr)
		}

		if isRetryableRPC(err) {
			log.Warn("Temporal namespace describe retrying", "namespace", namespace, "attempt", attempt, "error", err)
			time.Sleep(clampBackoff(backoff, 5*time.Second, attempt))
			continue
		}
		return fmt.Errorf("temporal namespace ensure: describe namespace: %w", err)
	}
}

func clampBackoff(base time.Duration, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if sleep >= max {
			return max
		}
	}
	if sleep > max {
		return max
	}
	return sleep
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
