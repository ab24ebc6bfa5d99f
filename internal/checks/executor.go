package checks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
	"github.com/statusops/idc-monitor/internal/statuserr"
)

type attemptOutcome struct {
	result models.StatusResult
	err    error
}

// RunWithRetry executes the checker under the shared retry policy: up to
// RetryAttempts+1 attempts, each bounded by TimeoutSeconds, with a fixed
// RetryDelaySeconds sleep between attempts. It never returns an error; when
// every attempt fails it synthesizes a result describing the exhaustion.
// This is the only place checker errors are absorbed.
func RunWithRetry(ctx context.Context, c Checker, cfg config.StatusCheckConfig) models.StatusResult {
	result, attemptErrs := runAttempts(ctx, c, cfg)
	if result != nil {
		return result
	}
	return exhaustedResult(c.Name(), cfg, attemptErrs)
}

// TryRunWithRetry is RunWithRetry for callers that need to know a component
// failed, like the orchestrator's per-component failure tracking. On
// exhaustion it returns the last classified attempt error instead of a
// synthesized result.
func TryRunWithRetry(ctx context.Context, c Checker, cfg config.StatusCheckConfig) (models.StatusResult, error) {
	result, attemptErrs := runAttempts(ctx, c, cfg)
	if result != nil {
		return result, nil
	}
	return nil, attemptErrs[len(attemptErrs)-1]
}

func runAttempts(ctx context.Context, c Checker, cfg config.StatusCheckConfig) (models.StatusResult, []error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	delay := time.Duration(cfg.RetryDelaySeconds * float64(time.Second))
	attempts := cfg.RetryAttempts + 1

	var attemptErrs []error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying status check",
				"component", c.Name(),
				"attempt", attempt+1,
				"max_attempts", attempts,
			)
			select {
			case <-ctx.Done():
				return nil, append(attemptErrs, statuserr.Classify(c.Name(), ctx.Err()))
			case <-time.After(delay):
			}
		}

		result, err := runAttempt(ctx, c, timeout)
		if err == nil {
			return result, nil
		}
		attemptErrs = append(attemptErrs, statuserr.Classify(c.Name(), err))
		slog.Error("status check attempt failed",
			"component", c.Name(),
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, attemptErrs
}

// runAttempt bounds one check invocation by the attempt deadline. The check
// runs in its own goroutine so a hung capability call can be abandoned; the
// attempt context is cancelled either way, and each attempt builds a fresh
// result so no partially-applied state survives a timeout.
func runAttempt(ctx context.Context, c Checker, timeout time.Duration) (models.StatusResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptOutcome{err: fmt.Errorf("checker %s panicked: %v", c.Name(), r)}
			}
		}()
		result, err := c.CheckStatus(attemptCtx)
		done <- attemptOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		if out.result == nil {
			return nil, fmt.Errorf("checker %s returned nil result", c.Name())
		}
		return out.result, nil
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, statuserr.NewTimeout(c.Name(),
				fmt.Sprintf("attempt exceeded %s deadline", timeout), attemptCtx.Err())
		}
		return nil, attemptCtx.Err()
	}
}

// exhaustedResult synthesizes the failure result after every attempt failed.
// Connectivity- and permission-class causes surface as CONNECTION_FAILED,
// everything else as CRITICAL.
func exhaustedResult(component string, cfg config.StatusCheckConfig, attemptErrs []error) models.StatusResult {
	level := models.StatusCritical
	if len(attemptErrs) > 0 {
		last := attemptErrs[len(attemptErrs)-1]
		if statuserr.IsConnection(last) || statuserr.IsPermission(last) {
			level = models.StatusConnectionFailed
		}
	}

	result := models.NewBaseStatusResult(level,
		fmt.Sprintf("%s check failed: %d attempts exhausted", component, cfg.RetryAttempts+1))
	result.AddDetail("component", component)
	result.AddDetail("retry_attempts", cfg.RetryAttempts)

	if cfg.IncludeDetailedErrors {
		for i, err := range attemptErrs {
			result.AddError(fmt.Sprintf("attempt %d: %v", i+1, err))
		}
	} else if len(attemptErrs) > 0 {
		result.AddError(attemptErrs[len(attemptErrs)-1].Error())
	}
	return &result
}
