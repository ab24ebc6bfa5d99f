package checks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusops/idc-monitor/internal/models"
	"github.com/statusops/idc-monitor/internal/statuserr"
)

// scriptedChecker counts invocations and delegates to fn.
type scriptedChecker struct {
	name string
	fn   func(ctx context.Context, call int) (models.StatusResult, error)

	mu    sync.Mutex
	calls int
}

func (c *scriptedChecker) Name() string { return c.name }

func (c *scriptedChecker) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()
	return c.fn(ctx, call)
}

func (c *scriptedChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func healthyResult(msg string) models.StatusResult {
	r := models.NewBaseStatusResult(models.StatusHealthy, msg)
	return &r
}

func TestRunWithRetrySucceedsFirstAttempt(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			return healthyResult("ok"), nil
		},
	}

	result := RunWithRetry(context.Background(), checker, fastConfig())

	require.NotNil(t, result)
	assert.Equal(t, models.StatusHealthy, result.Base().Status)
	assert.Equal(t, 1, checker.callCount())
}

func TestRunWithRetryRecoversAfterFailure(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(_ context.Context, call int) (models.StatusResult, error) {
			if call == 1 {
				return nil, errors.New("transient failure")
			}
			return healthyResult("recovered"), nil
		},
	}

	cfg := fastConfig()
	cfg.RetryAttempts = 2

	result := RunWithRetry(context.Background(), checker, cfg)

	assert.Equal(t, models.StatusHealthy, result.Base().Status)
	assert.Equal(t, 2, checker.callCount())
}

func TestRunWithRetryExhaustionAttemptCount(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			return nil, errors.New("persistent failure")
		},
	}

	cfg := fastConfig()
	cfg.RetryAttempts = 2

	result := RunWithRetry(context.Background(), checker, cfg)

	// RetryAttempts=2 means 3 attempts total.
	assert.Equal(t, 3, checker.callCount())
	base := result.Base()
	assert.Equal(t, models.StatusCritical, base.Status)
	assert.Contains(t, base.Message, "3 attempts exhausted")
	assert.Len(t, base.Errors, 3)
	assert.Equal(t, "probe", base.Details["component"])
}

func TestRunWithRetryDelaysBetweenAttempts(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			return nil, errors.New("persistent failure")
		},
	}

	cfg := fastConfig()
	cfg.RetryAttempts = 2
	cfg.RetryDelaySeconds = 0.05

	start := time.Now()
	RunWithRetry(context.Background(), checker, cfg)

	// Two inter-attempt delays of 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestRunWithRetryConnectionFailureLevel(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			return nil, errors.New("dial tcp 10.0.0.1:443: connection refused")
		},
	}

	result := RunWithRetry(context.Background(), checker, fastConfig())

	assert.Equal(t, models.StatusConnectionFailed, result.Base().Status)
}

func TestRunWithRetrySummarizedErrorsWhenNotDetailed(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			return nil, errors.New("persistent failure")
		},
	}

	cfg := fastConfig()
	cfg.RetryAttempts = 2
	cfg.IncludeDetailedErrors = false

	result := RunWithRetry(context.Background(), checker, cfg)

	assert.Len(t, result.Base().Errors, 1)
}

func TestTryRunWithRetryReturnsClassifiedError(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}

	result, err := TryRunWithRetry(context.Background(), checker, fastConfig())

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, statuserr.IsConnection(err))
}

func TestRunWithRetryTimesOutHungChecker(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(ctx context.Context, _ int) (models.StatusResult, error) {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return nil, ctx.Err()
		},
	}

	cfg := fastConfig()
	cfg.TimeoutSeconds = 1

	start := time.Now()
	result := RunWithRetry(context.Background(), checker, cfg)

	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, models.StatusCritical, result.Base().Status)
}

func TestRunWithRetryRecoversFromPanic(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			panic("checker exploded")
		},
	}

	result := RunWithRetry(context.Background(), checker, fastConfig())

	base := result.Base()
	assert.Equal(t, models.StatusCritical, base.Status)
	require.Len(t, base.Errors, 1)
	assert.Contains(t, base.Errors[0], "panicked")
}

func TestRunWithRetryRejectsNilResult(t *testing.T) {
	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			return nil, nil
		},
	}

	result := RunWithRetry(context.Background(), checker, fastConfig())

	assert.Equal(t, models.StatusCritical, result.Base().Status)
}

func TestRunWithRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	checker := &scriptedChecker{
		name: "probe",
		fn: func(context.Context, int) (models.StatusResult, error) {
			cancel()
			return nil, errors.New("failure before cancel")
		},
	}

	cfg := fastConfig()
	cfg.RetryAttempts = 5
	cfg.RetryDelaySeconds = 0.01

	result := RunWithRetry(ctx, checker, cfg)

	assert.Equal(t, 1, checker.callCount())
	assert.NotEqual(t, models.StatusHealthy, result.Base().Status)
}
