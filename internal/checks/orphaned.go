package checks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
	"github.com/statusops/idc-monitor/internal/statuserr"
)

// Orphan severity thresholds.
const (
	orphanCriticalCount    = 50
	orphanCriticalOldCount = 10
	orphanOldAge           = 30 * 24 * time.Hour
)

// CleanupHistoryStore persists cleanup outcomes so detection runs can report
// the recent cleanup history. A nil store disables history hydration.
type CleanupHistoryStore interface {
	RecordCleanup(ctx context.Context, result models.CleanupResult) error
	RecentCleanups(ctx context.Context, limit int) ([]models.CleanupResult, error)
}

// OrphanedAssignmentDetector finds account assignments whose principal no
// longer exists in the Identity Store, and can clean them up.
type OrphanedAssignmentDetector struct {
	admin       awsapi.IdentityCenterAdmin
	store       awsapi.IdentityStore
	orgs        awsapi.OrgDirectory
	history     CleanupHistoryStore
	instanceARN string
	cfg         config.StatusCheckConfig
}

// NewOrphanedAssignmentDetector creates a detector. orgs and history may be
// nil; account names and cleanup history are then omitted from results.
func NewOrphanedAssignmentDetector(admin awsapi.IdentityCenterAdmin, store awsapi.IdentityStore, orgs awsapi.OrgDirectory, history CleanupHistoryStore, instanceARN string, cfg config.StatusCheckConfig) (*OrphanedAssignmentDetector, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("orphaned assignment detector: %w", err)
	}
	return &OrphanedAssignmentDetector{
		admin:       admin,
		store:       store,
		orgs:        orgs,
		history:     history,
		instanceARN: instanceARN,
		cfg:         cfg,
	}, nil
}

// Name implements Checker.
func (d *OrphanedAssignmentDetector) Name() string { return "orphaned" }

// CheckStatus runs one detection pass over every permission set in the
// instance.
func (d *OrphanedAssignmentDetector) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	result := &models.OrphanedAssignmentStatus{
		BaseStatusResult:    models.NewBaseStatusResult(models.StatusHealthy, "no orphaned assignments found"),
		OrphanedAssignments: []models.OrphanedAssignment{},
	}

	orphans, checkErrs, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}
	result.OrphanedAssignments = orphans
	for _, e := range checkErrs {
		result.AddError(e)
	}

	now := time.Now().UTC()
	oldCount := 0
	for _, o := range orphans {
		if now.Sub(o.CreatedDate) > orphanOldAge {
			oldCount++
		}
	}

	result.Status, result.Message = orphanSeverity(len(orphans), oldCount)
	result.CleanupAvailable = len(orphans) > 0
	result.AddDetail("orphaned_count", len(orphans))
	result.AddDetail("orphaned_older_than_30d", oldCount)

	d.hydrateHistory(ctx, result)

	slog.Info("orphaned assignment detection completed",
		"orphaned_count", len(orphans),
		"older_than_30d", oldCount,
		"status", result.Status,
	)
	return result, nil
}

// detect walks permission set -> provisioned accounts -> assignments and
// probes each principal. Listing the instance's permission sets is fatal;
// per-pair listing failures are recorded and skipped so one broken account
// does not hide orphans elsewhere.
func (d *OrphanedAssignmentDetector) detect(ctx context.Context) ([]models.OrphanedAssignment, []string, error) {
	permissionSets, err := d.admin.ListPermissionSets(ctx, d.instanceARN)
	if err != nil {
		return nil, nil, statuserr.Classify(d.Name(), err)
	}

	var orphans []models.OrphanedAssignment
	var checkErrs []string
	psNames := map[string]string{}
	acctNames := map[string]string{}

	for _, psARN := range permissionSets {
		accounts, err := d.admin.ListAccountsForProvisionedPermissionSet(ctx, d.instanceARN, psARN)
		if err != nil {
			checkErrs = append(checkErrs, fmt.Sprintf("list accounts for %s: %v", psARN, err))
			continue
		}

		for _, accountID := range accounts {
			assignments, err := d.admin.ListAccountAssignments(ctx, d.instanceARN, accountID, psARN)
			if err != nil {
				checkErrs = append(checkErrs, fmt.Sprintf("list assignments for %s in %s: %v", psARN, accountID, err))
				continue
			}

			for _, a := range assignments {
				probeErr := d.probePrincipal(ctx, a)
				if probeErr == nil {
					continue
				}
				if !statuserr.IsNotFound(probeErr) {
					// Permission-denied and unclassified errors mean the
					// principal may still exist; never flag those.
					slog.Debug("principal probe inconclusive, assuming principal exists",
						"principal_id", a.PrincipalID,
						"error", probeErr,
					)
					continue
				}

				orphans = append(orphans, models.OrphanedAssignment{
					AssignmentID:      models.AssignmentKey(a.PermissionSetARN, a.PrincipalID, a.AccountID),
					PermissionSetARN:  a.PermissionSetARN,
					PermissionSetName: d.permissionSetName(ctx, psNames, a.PermissionSetARN),
					AccountID:         a.AccountID,
					AccountName:       d.accountName(ctx, acctNames, a.AccountID),
					PrincipalID:       a.PrincipalID,
					PrincipalType:     a.PrincipalType,
					ErrorMessage:      probeErr.Error(),
					CreatedDate:       time.Now().UTC(),
				})
			}
		}
	}
	return orphans, checkErrs, nil
}

// probePrincipal checks whether the assignment's principal still exists.
func (d *OrphanedAssignmentDetector) probePrincipal(ctx context.Context, a awsapi.AccountAssignment) error {
	switch a.PrincipalType {
	case models.PrincipalTypeGroup:
		_, err := d.store.DescribeGroup(ctx, a.PrincipalID)
		return err
	default:
		_, err := d.store.DescribeUser(ctx, a.PrincipalID)
		return err
	}
}

func (d *OrphanedAssignmentDetector) permissionSetName(ctx context.Context, cache map[string]string, arn string) string {
	if name, ok := cache[arn]; ok {
		return name
	}
	ps, err := d.admin.DescribePermissionSet(ctx, d.instanceARN, arn)
	if err != nil {
		cache[arn] = ""
		return ""
	}
	cache[arn] = ps.Name
	return ps.Name
}

func (d *OrphanedAssignmentDetector) accountName(ctx context.Context, cache map[string]string, accountID string) string {
	if d.orgs == nil {
		return ""
	}
	if name, ok := cache[accountID]; ok {
		return name
	}
	acct, err := d.orgs.DescribeAccount(ctx, accountID)
	if err != nil {
		cache[accountID] = ""
		return ""
	}
	cache[accountID] = acct.Name
	return acct.Name
}

func (d *OrphanedAssignmentDetector) hydrateHistory(ctx context.Context, result *models.OrphanedAssignmentStatus) {
	if d.history == nil {
		return
	}
	history, err := d.history.RecentCleanups(ctx, 10)
	if err != nil {
		slog.Warn("failed to load cleanup history", "error", err)
		return
	}
	result.CleanupHistory = history
	if len(history) > 0 {
		last := history[0].StartedAt
		result.LastCleanup = &last
	}
}

// orphanSeverity maps the orphan count and the count of orphans older than
// 30 days to a status.
func orphanSeverity(count, oldCount int) (models.StatusLevel, string) {
	switch {
	case count == 0:
		return models.StatusHealthy, "no orphaned assignments found"
	case count > orphanCriticalCount || oldCount > orphanCriticalOldCount:
		return models.StatusCritical, fmt.Sprintf("%d orphaned assignments found (%d older than 30 days)", count, oldCount)
	default:
		return models.StatusWarning, fmt.Sprintf("%d orphaned assignments found", count)
	}
}

// CleanupOrphanedAssignments deletes each assignment independently. One
// failure never stops the remainder; the result accumulates successes,
// failures and their errors separately.
func (d *OrphanedAssignmentDetector) CleanupOrphanedAssignments(ctx context.Context, assignments []models.OrphanedAssignment) *models.CleanupResult {
	start := time.Now()
	result := &models.CleanupResult{
		TotalAttempted: len(assignments),
		StartedAt:      start.UTC(),
	}

	for _, a := range assignments {
		instanceARN, err := instanceARNFromPermissionSet(a.PermissionSetARN)
		if err != nil {
			result.FailedCleanups++
			result.CleanupErrors = append(result.CleanupErrors,
				fmt.Sprintf("%s: %v", a.AssignmentID, err))
			continue
		}

		err = d.admin.DeleteAccountAssignment(ctx, instanceARN, a.AccountID, a.PermissionSetARN, a.PrincipalID, a.PrincipalType)
		if err != nil {
			result.FailedCleanups++
			result.CleanupErrors = append(result.CleanupErrors,
				fmt.Sprintf("%s: %v", a.AssignmentID, err))
			slog.Error("failed to clean up orphaned assignment",
				"assignment_id", a.AssignmentID,
				"error", err,
			)
			continue
		}

		result.SuccessfulCleanups++
		result.CleanedAssignments = append(result.CleanedAssignments, a.AssignmentID)
		slog.Info("orphaned assignment cleaned up",
			"assignment_id", a.AssignmentID,
			"account_id", a.AccountID,
		)
	}

	result.DurationSeconds = time.Since(start).Seconds()

	if d.history != nil {
		if err := d.history.RecordCleanup(ctx, *result); err != nil {
			slog.Warn("failed to record cleanup history", "error", err)
		}
	}
	return result
}

// instanceARNFromPermissionSet derives the owning instance ARN from the
// structural components of a permission set ARN, e.g.
// arn:aws:sso:::permissionSet/ssoins-abc123/ps-def456 ->
// arn:aws:sso:::instance/ssoins-abc123.
func instanceARNFromPermissionSet(permissionSetARN string) (string, error) {
	idx := strings.Index(permissionSetARN, "permissionSet/")
	if idx < 0 {
		return "", fmt.Errorf("malformed permission set ARN %q", permissionSetARN)
	}
	rest := permissionSetARN[idx+len("permissionSet/"):]
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" {
		return "", fmt.Errorf("malformed permission set ARN %q", permissionSetARN)
	}
	prefix := permissionSetARN[:idx]
	return prefix + "instance/" + parts[0], nil
}

// PromptForCleanup prints a preview of the assignments about to be deleted
// and reads a yes/no confirmation. It returns false without prompting for an
// empty list, re-prompts on anything other than yes/y/no/n, and returns
// false on end-of-input instead of failing.
func PromptForCleanup(assignments []models.OrphanedAssignment, in io.Reader, out io.Writer) bool {
	if len(assignments) == 0 {
		return false
	}

	fmt.Fprintf(out, "The following %d orphaned assignments will be deleted:\n", len(assignments))
	preview := assignments
	if len(preview) > 10 {
		preview = preview[:10]
	}
	for _, a := range preview {
		name := a.PrincipalName
		if name == "" {
			name = a.PrincipalID
		}
		fmt.Fprintf(out, "  - %s (%s) -> %s in account %s\n",
			name, a.PrincipalType, a.PermissionSetName, a.AccountID)
	}
	if extra := len(assignments) - len(preview); extra > 0 {
		fmt.Fprintf(out, "  ... +%d more\n", extra)
	}
	fmt.Fprintln(out, "WARNING: this permanently deletes the assignments and cannot be undone.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Proceed with cleanup? [yes/no]: ")
		if !scanner.Scan() {
			// Interrupt or end of input: treat as declined.
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}
