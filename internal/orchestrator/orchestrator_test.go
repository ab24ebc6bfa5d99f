package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusops/idc-monitor/internal/checks"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
)

func testConfig() config.StatusCheckConfig {
	return config.StatusCheckConfig{
		TimeoutSeconds:        5,
		RetryAttempts:         0,
		RetryDelaySeconds:     0,
		EnableParallelChecks:  true,
		MaxConcurrentChecks:   4,
		IncludeDetailedErrors: true,
	}
}

// stubChecker is a scriptable checker for orchestration tests.
type stubChecker struct {
	name string
	fn   func(ctx context.Context) (models.StatusResult, error)
}

func (s *stubChecker) Name() string { return s.name }

func (s *stubChecker) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	return s.fn(ctx)
}

func healthyRegistry() map[string]checks.Checker {
	return map[string]checks.Checker{
		"health": &stubChecker{name: "health", fn: func(context.Context) (models.StatusResult, error) {
			return &models.HealthStatus{
				BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "all good"),
				ServiceAvailable: true,
			}, nil
		}},
		"provisioning": &stubChecker{name: "provisioning", fn: func(context.Context) (models.StatusResult, error) {
			return &models.ProvisioningStatus{
				BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "no provisioning operations"),
			}, nil
		}},
		"orphaned": &stubChecker{name: "orphaned", fn: func(context.Context) (models.StatusResult, error) {
			return &models.OrphanedAssignmentStatus{
				BaseStatusResult:    models.NewBaseStatusResult(models.StatusHealthy, "no orphaned assignments found"),
				OrphanedAssignments: []models.OrphanedAssignment{},
			}, nil
		}},
		"sync": &stubChecker{name: "sync", fn: func(context.Context) (models.StatusResult, error) {
			return &models.SyncStatus{
				BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "directory responding"),
			}, nil
		}},
		"summary": &stubChecker{name: "summary", fn: func(context.Context) (models.StatusResult, error) {
			return &models.SummaryStatus{
				BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "statistics collected"),
			}, nil
		}},
	}
}

func TestComprehensiveStatusAllHealthy(t *testing.T) {
	orch, err := New(testConfig(), healthyRegistry())
	require.NoError(t, err)

	report := orch.GetComprehensiveStatus(context.Background())

	require.NotNil(t, report.OverallHealth)
	require.NotNil(t, report.ProvisioningStatus)
	require.NotNil(t, report.OrphanedAssignmentStatus)
	require.NotNil(t, report.SyncStatus)
	require.NotNil(t, report.SummaryStatistics)

	assert.Equal(t, models.StatusHealthy, report.OverallHealth.Status)
	assert.Equal(t, "all good", report.OverallHealth.Message)
	assert.GreaterOrEqual(t, report.CheckDurationSeconds, 0.0)

	assert.Equal(t, 5, report.OverallHealth.Details["component_count"])
	assert.Equal(t, false, report.OverallHealth.Details["degraded_mode"])
	assert.NotContains(t, report.OverallHealth.Details, "component_failures")
}

func TestComprehensiveStatusDegradedComponent(t *testing.T) {
	registry := healthyRegistry()
	registry["orphaned"] = &stubChecker{name: "orphaned", fn: func(context.Context) (models.StatusResult, error) {
		return nil, errors.New("InternalServerException: listing blew up")
	}}

	orch, err := New(testConfig(), registry)
	require.NoError(t, err)

	report := orch.GetComprehensiveStatus(context.Background())

	// The failed component degrades, the siblings keep their results.
	assert.Equal(t, models.StatusCritical, report.OrphanedAssignmentStatus.Status)
	assert.Contains(t, report.OrphanedAssignmentStatus.Message, "orphaned check failed")
	assert.Equal(t, true, report.OrphanedAssignmentStatus.Details["component_failure"])
	assert.NotEmpty(t, report.OrphanedAssignmentStatus.Errors)

	assert.Equal(t, models.StatusHealthy, report.OverallHealth.Status)
	assert.Equal(t, models.StatusHealthy, report.SyncStatus.Status)

	assert.Equal(t, true, report.OverallHealth.Details["degraded_mode"])
	failures, ok := report.OverallHealth.Details["component_failures"].(map[string][]string)
	require.True(t, ok)
	assert.Contains(t, failures, "orphaned")
}

func TestComprehensiveStatusSurvivesEveryCheckerFailing(t *testing.T) {
	registry := map[string]checks.Checker{}
	for _, name := range []string{"health", "provisioning", "orphaned", "sync", "summary"} {
		name := name
		registry[name] = &stubChecker{name: name, fn: func(context.Context) (models.StatusResult, error) {
			panic("checker crashed")
		}}
	}

	orch, err := New(testConfig(), registry)
	require.NoError(t, err)

	report := orch.GetComprehensiveStatus(context.Background())

	require.NotNil(t, report.OverallHealth)
	require.NotNil(t, report.ProvisioningStatus)
	require.NotNil(t, report.OrphanedAssignmentStatus)
	require.NotNil(t, report.SyncStatus)
	require.NotNil(t, report.SummaryStatistics)

	assert.Equal(t, models.StatusCritical, report.OverallHealth.Status)
	assert.Equal(t, models.StatusCritical, report.SummaryStatistics.Status)
	assert.Equal(t, true, report.OverallHealth.Details["degraded_mode"])
}

func TestComprehensiveStatusMissingChecker(t *testing.T) {
	registry := healthyRegistry()
	delete(registry, "sync")

	orch, err := New(testConfig(), registry)
	require.NoError(t, err)

	report := orch.GetComprehensiveStatus(context.Background())

	assert.Equal(t, models.StatusCritical, report.SyncStatus.Status)
	require.NotEmpty(t, report.SyncStatus.Errors)
	assert.Contains(t, report.SyncStatus.Errors[0], "not registered")
}

func TestComprehensiveStatusSequentialOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	registry := map[string]checks.Checker{}
	for name, checker := range healthyRegistry() {
		name, inner := name, checker
		registry[name] = &stubChecker{name: name, fn: func(ctx context.Context) (models.StatusResult, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return inner.CheckStatus(ctx)
		}}
	}

	cfg := testConfig()
	cfg.EnableParallelChecks = false

	orch, err := New(cfg, registry)
	require.NoError(t, err)
	orch.GetComprehensiveStatus(context.Background())

	assert.Equal(t, []string{"health", "provisioning", "orphaned", "sync", "summary"}, order)
}

func TestComprehensiveStatusRespectsConcurrencyLimit(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	registry := map[string]checks.Checker{}
	for name, checker := range healthyRegistry() {
		name, inner := name, checker
		registry[name] = &stubChecker{name: name, fn: func(ctx context.Context) (models.StatusResult, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return inner.CheckStatus(ctx)
		}}
	}

	cfg := testConfig()
	cfg.MaxConcurrentChecks = 2

	orch, err := New(cfg, registry)
	require.NoError(t, err)
	orch.GetComprehensiveStatus(context.Background())

	assert.LessOrEqual(t, peak, 2)
	assert.Greater(t, peak, 0)
}

func TestGetSpecificStatusKnownChecker(t *testing.T) {
	orch, err := New(testConfig(), healthyRegistry())
	require.NoError(t, err)

	result := orch.GetSpecificStatus(context.Background(), "health")

	status, ok := result.(*models.HealthStatus)
	require.True(t, ok)
	assert.Equal(t, models.StatusHealthy, status.Status)
}

func TestGetSpecificStatusUnknownChecker(t *testing.T) {
	orch, err := New(testConfig(), healthyRegistry())
	require.NoError(t, err)

	result := orch.GetSpecificStatus(context.Background(), "bogus")

	base := result.Base()
	assert.Equal(t, models.StatusCritical, base.Status)
	assert.Contains(t, base.Message, `unknown status check "bogus"`)
	// The message names every registered check.
	for _, name := range []string{"health", "provisioning", "orphaned", "sync", "summary"} {
		assert.Contains(t, base.Message, name)
	}
}

func TestGetSpecificStatusRetriesFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	registry := map[string]checks.Checker{
		"flaky": &stubChecker{name: "flaky", fn: func(context.Context) (models.StatusResult, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				return nil, errors.New("transient failure")
			}
			r := models.NewBaseStatusResult(models.StatusHealthy, "recovered")
			return &r, nil
		}},
	}

	cfg := testConfig()
	cfg.RetryAttempts = 1

	orch, err := New(cfg, registry)
	require.NoError(t, err)

	result := orch.GetSpecificStatus(context.Background(), "flaky")

	assert.Equal(t, models.StatusHealthy, result.Base().Status)
	assert.Equal(t, 2, calls)
}

func TestCheckerNamesSorted(t *testing.T) {
	orch, err := New(testConfig(), healthyRegistry())
	require.NoError(t, err)

	assert.Equal(t, []string{"health", "orphaned", "provisioning", "summary", "sync"}, orch.CheckerNames())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentChecks = 0

	_, err := New(cfg, healthyRegistry())
	assert.Error(t, err)
}
