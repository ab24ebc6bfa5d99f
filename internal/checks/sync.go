package checks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
	"github.com/statusops/idc-monitor/internal/statuserr"
)

// SyncChecker verifies the directory backing Identity Center responds to
// user and group queries. A provider that stops answering is the usual first
// symptom of a broken external-IdP sync.
type SyncChecker struct {
	store awsapi.IdentityStore
	cfg   config.StatusCheckConfig
}

// NewSyncChecker creates a sync checker.
func NewSyncChecker(store awsapi.IdentityStore, cfg config.StatusCheckConfig) (*SyncChecker, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("sync checker: %w", err)
	}
	return &SyncChecker{store: store, cfg: cfg}, nil
}

// Name implements Checker.
func (s *SyncChecker) Name() string { return "sync" }

// CheckStatus probes the user and group directories independently. One probe
// failing is a WARNING, both failing is CRITICAL, and connectivity-class
// failures on both surface as CONNECTION_FAILED.
func (s *SyncChecker) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	result := &models.SyncStatus{
		BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "identity store directory is responding"),
	}

	users, userErr := s.store.ListUsers(ctx)
	if userErr != nil {
		result.AddError(fmt.Sprintf("list users: %v", userErr))
	} else {
		result.UsersReachable = true
		result.AddDetail("user_count", len(users))
	}

	groups, groupErr := s.store.ListGroups(ctx)
	if groupErr != nil {
		result.AddError(fmt.Sprintf("list groups: %v", groupErr))
	} else {
		result.GroupsReachable = true
		result.AddDetail("group_count", len(groups))
	}

	switch {
	case userErr != nil && groupErr != nil:
		if statuserr.IsConnection(userErr) || statuserr.IsPermission(userErr) {
			result.Status = models.StatusConnectionFailed
			result.Message = "cannot reach the identity store directory"
		} else {
			result.Status = models.StatusCritical
			result.Message = "identity store directory is not responding"
		}
	case userErr != nil || groupErr != nil:
		result.Status = models.StatusWarning
		result.Message = "identity store directory is partially responding"
	}

	slog.Info("sync check completed",
		"status", result.Status,
		"users_reachable", result.UsersReachable,
		"groups_reachable", result.GroupsReachable,
	)
	return result, nil
}
