package checks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
)

// ResourceChecker enumerates the three core resource inventories: Identity
// Center instances, permission sets, and organization accounts. It is
// reachable by name through the orchestrator but not part of the
// comprehensive report.
type ResourceChecker struct {
	admin       awsapi.IdentityCenterAdmin
	orgs        awsapi.OrgDirectory
	instanceARN string
	cfg         config.StatusCheckConfig
}

// NewResourceChecker creates a resource checker. orgs may be nil; the
// account inventory is then skipped.
func NewResourceChecker(admin awsapi.IdentityCenterAdmin, orgs awsapi.OrgDirectory, instanceARN string, cfg config.StatusCheckConfig) (*ResourceChecker, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("resource checker: %w", err)
	}
	return &ResourceChecker{admin: admin, orgs: orgs, instanceARN: instanceARN, cfg: cfg}, nil
}

// Name implements Checker.
func (r *ResourceChecker) Name() string { return "resource" }

// CheckStatus counts each inventory. Any inventory call failing degrades the
// result to WARNING; all of them failing is CRITICAL.
func (r *ResourceChecker) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	result := &models.ResourceStatus{
		BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "core resource inventories are reachable"),
	}

	attempted, failed := 0, 0

	attempted++
	if instances, err := r.admin.ListInstances(ctx); err != nil {
		failed++
		result.AddError(fmt.Sprintf("list instances: %v", err))
	} else {
		result.InstanceCount = len(instances)
	}

	attempted++
	if arns, err := r.admin.ListPermissionSets(ctx, r.instanceARN); err != nil {
		failed++
		result.AddError(fmt.Sprintf("list permission sets: %v", err))
	} else {
		result.PermissionSetCount = len(arns)
	}

	if r.orgs != nil {
		attempted++
		if accounts, err := r.orgs.ListAccounts(ctx); err != nil {
			failed++
			result.AddError(fmt.Sprintf("list accounts: %v", err))
		} else {
			result.AccountCount = len(accounts)
		}
	}

	switch {
	case failed == attempted:
		result.Status = models.StatusCritical
		result.Message = "no resource inventory could be enumerated"
	case failed > 0:
		result.Status = models.StatusWarning
		result.Message = fmt.Sprintf("%d of %d resource inventories failed", failed, attempted)
	}
	result.AddDetail("inventories_checked", attempted)
	result.AddDetail("inventories_failed", failed)

	slog.Info("resource check completed",
		"status", result.Status,
		"instances", result.InstanceCount,
		"permission_sets", result.PermissionSetCount,
		"accounts", result.AccountCount,
	)
	return result, nil
}
