package checks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
)

// Date layouts accepted when parsing creation dates. Directories emit a mix
// of formats; unparseable dates are dropped from the date maps without
// affecting the counts.
var creationDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseCreationDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range creationDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// SummaryStatisticsCollector gathers deployment-wide counts across four
// independent aggregates: users, groups, permission sets, and assignments
// with the active-account set. The assignment aggregate enumerates the full
// (permission set x provisioned account) cross product, one listing call per
// pair, each independently fault-tolerant.
type SummaryStatisticsCollector struct {
	admin       awsapi.IdentityCenterAdmin
	store       awsapi.IdentityStore
	instanceARN string
	cfg         config.StatusCheckConfig
}

// NewSummaryStatisticsCollector creates a collector.
func NewSummaryStatisticsCollector(admin awsapi.IdentityCenterAdmin, store awsapi.IdentityStore, instanceARN string, cfg config.StatusCheckConfig) (*SummaryStatisticsCollector, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("summary statistics collector: %w", err)
	}
	return &SummaryStatisticsCollector{
		admin:       admin,
		store:       store,
		instanceARN: instanceARN,
		cfg:         cfg,
	}, nil
}

// Name implements Checker.
func (c *SummaryStatisticsCollector) Name() string { return "summary" }

// CheckStatus runs the four aggregates, in parallel when the config allows
// it. One aggregate failing degrades the result to WARNING but never aborts
// the other three.
func (c *SummaryStatisticsCollector) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	stats := models.SummaryStatistics{
		UserCreationDates:          map[string]time.Time{},
		GroupCreationDates:         map[string]time.Time{},
		PermissionSetCreationDates: map[string]time.Time{},
	}

	var mu sync.Mutex
	var aggregateErrs []string
	record := func(name string, err error) {
		mu.Lock()
		aggregateErrs = append(aggregateErrs, fmt.Sprintf("%s: %v", name, err))
		mu.Unlock()
		slog.Warn("summary aggregate failed", "aggregate", name, "error", err)
	}

	tasks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"users", func(ctx context.Context) error { return c.collectUsers(ctx, &mu, &stats) }},
		{"groups", func(ctx context.Context) error { return c.collectGroups(ctx, &mu, &stats) }},
		{"permission_sets", func(ctx context.Context) error { return c.collectPermissionSets(ctx, &mu, &stats) }},
		{"assignments", func(ctx context.Context) error { return c.collectAssignments(ctx, &mu, &stats) }},
	}

	if c.cfg.EnableParallelChecks {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.MaxConcurrentChecks)
		for _, task := range tasks {
			task := task
			g.Go(func() error {
				if err := task.run(gctx); err != nil {
					record(task.name, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, task := range tasks {
			if err := task.run(ctx); err != nil {
				record(task.name, err)
			}
		}
	}

	stats.LastUpdated = time.Now().UTC()

	result := &models.SummaryStatus{
		BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "summary statistics collected"),
		Statistics:       stats,
	}
	result.AddDetail("total_principals", stats.TotalPrincipals())
	if len(aggregateErrs) > 0 {
		result.Status = models.StatusWarning
		result.Message = fmt.Sprintf("summary statistics incomplete: %d of %d aggregates failed",
			len(aggregateErrs), len(tasks))
		for _, e := range aggregateErrs {
			result.AddError(e)
		}
	}

	slog.Info("summary statistics collected",
		"users", stats.TotalUsers,
		"groups", stats.TotalGroups,
		"permission_sets", stats.TotalPermissionSets,
		"assignments", stats.TotalAssignments,
		"active_accounts", stats.ActiveAccounts,
	)
	return result, nil
}

func (c *SummaryStatisticsCollector) collectUsers(ctx context.Context, mu *sync.Mutex, stats *models.SummaryStatistics) error {
	users, err := c.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	stats.TotalUsers = len(users)
	for _, u := range users {
		if d, ok := parseCreationDate(u.CreatedDate); ok {
			stats.UserCreationDates[u.ID] = d
		}
	}
	return nil
}

func (c *SummaryStatisticsCollector) collectGroups(ctx context.Context, mu *sync.Mutex, stats *models.SummaryStatistics) error {
	groups, err := c.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	stats.TotalGroups = len(groups)
	for _, g := range groups {
		if d, ok := parseCreationDate(g.CreatedDate); ok {
			stats.GroupCreationDates[g.ID] = d
		}
	}
	return nil
}

// collectPermissionSets needs one detail call per permission set. Individual
// detail failures are logged and skipped; they reduce the date map, not the
// count.
func (c *SummaryStatisticsCollector) collectPermissionSets(ctx context.Context, mu *sync.Mutex, stats *models.SummaryStatistics) error {
	arns, err := c.admin.ListPermissionSets(ctx, c.instanceARN)
	if err != nil {
		return err
	}
	mu.Lock()
	stats.TotalPermissionSets = len(arns)
	mu.Unlock()

	for _, arn := range arns {
		ps, err := c.admin.DescribePermissionSet(ctx, c.instanceARN, arn)
		if err != nil {
			slog.Warn("permission set detail call failed", "arn", arn, "error", err)
			continue
		}
		if ps.CreatedDate != nil {
			mu.Lock()
			stats.PermissionSetCreationDates[arn] = ps.CreatedDate.UTC()
			mu.Unlock()
		}
	}
	return nil
}

// collectAssignments counts assignments across every (permission set,
// provisioned account) pair. This is O(P*A) external calls; each pair's
// listing is independently fault-tolerant.
func (c *SummaryStatisticsCollector) collectAssignments(ctx context.Context, mu *sync.Mutex, stats *models.SummaryStatistics) error {
	arns, err := c.admin.ListPermissionSets(ctx, c.instanceARN)
	if err != nil {
		return err
	}

	total := 0
	activeAccounts := map[string]bool{}
	for _, arn := range arns {
		accounts, err := c.admin.ListAccountsForProvisionedPermissionSet(ctx, c.instanceARN, arn)
		if err != nil {
			slog.Warn("provisioned account listing failed", "arn", arn, "error", err)
			continue
		}
		for _, accountID := range accounts {
			assignments, err := c.admin.ListAccountAssignments(ctx, c.instanceARN, accountID, arn)
			if err != nil {
				slog.Warn("assignment listing failed",
					"arn", arn,
					"account_id", accountID,
					"error", err,
				)
				continue
			}
			total += len(assignments)
			if len(assignments) > 0 {
				activeAccounts[accountID] = true
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()
	stats.TotalAssignments = total
	stats.ActiveAccounts = len(activeAccounts)
	return nil
}
