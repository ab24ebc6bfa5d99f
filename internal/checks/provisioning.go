package checks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
)

// Provisioning cache heuristics.
const (
	// In-progress operations older than this are conservatively resolved.
	operationResolveAge = 10 * time.Minute
	// Completed operations are reported for this long after finishing.
	completedWindow = 24 * time.Hour
	// Cache entries older than this are purged on every update.
	operationPurgeAge = 7 * 24 * time.Hour
	// Active operations older than this trigger a long-running warning.
	longRunningAge = 30 * time.Minute
	// Mean-duration fallback when no completed history exists yet.
	fallbackMeanDuration = 5 * time.Minute
)

// ProvisioningMonitor tracks asynchronous permission-set provisioning
// operations in an in-process cache. The cache is the monitor's only state
// and is guarded for concurrent access.
type ProvisioningMonitor struct {
	cfg config.StatusCheckConfig
	now func() time.Time

	mu         sync.Mutex
	operations map[string]models.ProvisioningOperation
}

// NewProvisioningMonitor creates a monitor with an empty operation cache.
func NewProvisioningMonitor(cfg config.StatusCheckConfig) (*ProvisioningMonitor, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("provisioning monitor: %w", err)
	}
	return &ProvisioningMonitor{
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		operations: map[string]models.ProvisioningOperation{},
	}, nil
}

// Name implements Checker.
func (m *ProvisioningMonitor) Name() string { return "provisioning" }

// RecordOperation feeds a submitted provisioning request into the cache.
// This is the integration point for whatever subsystem submits assignment
// provisioning requests; the monitor itself cannot discover request IDs.
func (m *ProvisioningMonitor) RecordOperation(op models.ProvisioningOperation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[op.OperationID] = op
}

// CheckStatus refreshes the cache and reports on active, failed and
// recently completed operations.
func (m *ProvisioningMonitor) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	discovered, err := m.discoverActiveOperations(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	for _, op := range discovered {
		m.operations[op.OperationID] = op
	}
	m.resolveAgedLocked()
	m.purgeLocked()
	active, failed, completed := m.partitionLocked()
	m.mu.Unlock()

	result := &models.ProvisioningStatus{
		BaseStatusResult:    models.NewBaseStatusResult(models.StatusHealthy, "no provisioning operations"),
		ActiveOperations:    active,
		FailedOperations:    failed,
		CompletedOperations: completed,
		PendingCount:        len(active),
	}
	result.AddDetail("active_count", len(active))
	result.AddDetail("failed_count", len(failed))
	result.AddDetail("completed_count", len(completed))

	result.Status, result.Message = m.severity(active, failed, completed)
	if len(active) > 0 {
		est := m.estimateCompletion(active)
		result.EstimatedCompletion = &est
	}

	slog.Info("provisioning check completed",
		"active", len(active),
		"failed", len(failed),
		"completed", len(completed),
		"status", result.Status,
	)
	return result, nil
}

// discoverActiveOperations probes for newly submitted operations. This is a
// deliberate stub contract: the monitor has no way to learn request IDs on
// its own, so it returns nothing until the surrounding system records
// submitted operations via RecordOperation.
func (m *ProvisioningMonitor) discoverActiveOperations(_ context.Context) ([]models.ProvisioningOperation, error) {
	return nil, nil
}

// resolveAgedLocked conservatively completes in-progress operations older
// than the resolution age: FAILED when a failure reason was already
// attached, SUCCEEDED otherwise. Terminal statuses are never rewritten.
func (m *ProvisioningMonitor) resolveAgedLocked() {
	now := m.now()
	for id, op := range m.operations {
		if op.Status != models.OperationInProgress {
			continue
		}
		if now.Sub(op.CreatedDate) <= operationResolveAge {
			continue
		}
		if op.FailureReason != "" {
			op.Status = models.OperationFailed
		} else {
			op.Status = models.OperationSucceeded
		}
		completed := now
		op.CompletedDate = &completed
		m.operations[id] = op
		slog.Info("aged provisioning operation resolved",
			"operation_id", id,
			"status", op.Status,
		)
	}
}

// purgeLocked evicts cache entries older than the purge age.
func (m *ProvisioningMonitor) purgeLocked() {
	now := m.now()
	for id, op := range m.operations {
		if now.Sub(op.CreatedDate) > operationPurgeAge {
			delete(m.operations, id)
		}
	}
}

// partitionLocked splits the cache into active operations and terminal
// operations that finished within the completed window.
func (m *ProvisioningMonitor) partitionLocked() (active, failed, completed []models.ProvisioningOperation) {
	now := m.now()
	for _, op := range m.operations {
		switch op.Status {
		case models.OperationInProgress:
			active = append(active, op)
		case models.OperationFailed:
			if op.CompletedDate != nil && now.Sub(*op.CompletedDate) <= completedWindow {
				failed = append(failed, op)
			}
		case models.OperationSucceeded:
			if op.CompletedDate != nil && now.Sub(*op.CompletedDate) <= completedWindow {
				completed = append(completed, op)
			}
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedDate.Before(active[j].CreatedDate) })
	return active, failed, completed
}

func (m *ProvisioningMonitor) severity(active, failed, completed []models.ProvisioningOperation) (models.StatusLevel, string) {
	total := len(active) + len(failed) + len(completed)
	if total > 0 {
		failurePct := float64(len(failed)) / float64(total) * 100
		if failurePct > 50 {
			return models.StatusCritical, fmt.Sprintf("%.0f%% of provisioning operations failed", failurePct)
		}
		if failurePct > 20 {
			return models.StatusWarning, fmt.Sprintf("%.0f%% of provisioning operations failed", failurePct)
		}
	}

	now := m.now()
	for _, op := range active {
		if now.Sub(op.CreatedDate) > longRunningAge {
			return models.StatusWarning, fmt.Sprintf("long-running provisioning operation %s active for %s",
				op.OperationID, now.Sub(op.CreatedDate).Round(time.Minute))
		}
	}

	if len(active) > 0 {
		return models.StatusHealthy, fmt.Sprintf("%d provisioning operations in progress", len(active))
	}
	if total > 0 {
		return models.StatusHealthy, "all provisioning operations completed"
	}
	return models.StatusHealthy, "no provisioning operations"
}

// estimateCompletion predicts when the oldest active operation will finish:
// mean historical duration minus its elapsed time, clamped at zero.
func (m *ProvisioningMonitor) estimateCompletion(active []models.ProvisioningOperation) time.Time {
	now := m.now()
	mean := m.meanCompletedDuration()

	oldest := active[0]
	for _, op := range active[1:] {
		if op.CreatedDate.Before(oldest.CreatedDate) {
			oldest = op
		}
	}
	elapsed := now.Sub(oldest.CreatedDate)

	remaining := mean - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return now.Add(remaining)
}

func (m *ProvisioningMonitor) meanCompletedDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total time.Duration
	var count int
	for _, op := range m.operations {
		if !op.IsTerminal() || op.CompletedDate == nil {
			continue
		}
		total += op.CompletedDate.Sub(op.CreatedDate)
		count++
	}
	if count == 0 {
		return fallbackMeanDuration
	}
	return total / time.Duration(count)
}

// OperationCount returns the current cache size.
func (m *ProvisioningMonitor) OperationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.operations)
}

// Operation returns a cached operation by ID.
func (m *ProvisioningMonitor) Operation(id string) (models.ProvisioningOperation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operations[id]
	return op, ok
}
