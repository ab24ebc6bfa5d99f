// Package orchestrator composes the status checkers and assembles their
// results into one consistent report. Its central invariant: no single
// checker's failure can abort the overall report.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/statusops/idc-monitor/internal/checks"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
)

// Report domains run in this fixed order in sequential mode; summary always
// runs last and separately.
var reportDomains = []string{"health", "provisioning", "orphaned", "sync"}

// StatusOrchestrator holds the name -> checker registry and runs it under
// the shared concurrency policy.
type StatusOrchestrator struct {
	cfg      config.StatusCheckConfig
	checkers map[string]checks.Checker
}

// New creates an orchestrator over the given registry. The config is
// validated up front.
func New(cfg config.StatusCheckConfig, checkers map[string]checks.Checker) (*StatusOrchestrator, error) {
	if violations := cfg.Validate(); len(violations) > 0 {
		return nil, fmt.Errorf("orchestrator: invalid status check config: %v", violations)
	}
	registry := make(map[string]checks.Checker, len(checkers))
	for name, c := range checkers {
		registry[name] = c
	}
	return &StatusOrchestrator{cfg: cfg, checkers: registry}, nil
}

// CheckerNames returns the sorted registry names.
func (o *StatusOrchestrator) CheckerNames() []string {
	names := make([]string, 0, len(o.checkers))
	for name := range o.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSpecificStatus runs one checker by name through the retry executor and
// returns its raw result. An unknown name returns a CRITICAL result
// enumerating the known names; it never fails to the caller.
func (o *StatusOrchestrator) GetSpecificStatus(ctx context.Context, name string) models.StatusResult {
	checker, ok := o.checkers[name]
	if !ok {
		result := models.NewBaseStatusResult(models.StatusCritical,
			fmt.Sprintf("unknown status check %q; known checks: %s", name, strings.Join(o.CheckerNames(), ", ")))
		result.AddDetail("component", name)
		return &result
	}
	return checks.RunWithRetry(ctx, checker, o.cfg)
}

// GetComprehensiveStatus runs every report domain plus summary statistics
// and merges the outcomes into a structurally complete StatusReport. Default
// results are built up front so the report stays complete even if every
// checker fails; failed components degrade their default to CRITICAL and
// land in the failure map instead of aborting siblings.
func (o *StatusOrchestrator) GetComprehensiveStatus(ctx context.Context) *models.StatusReport {
	start := time.Now()

	report := &models.StatusReport{
		Timestamp:                start.UTC(),
		OverallHealth:            defaultHealth(),
		ProvisioningStatus:       defaultProvisioning(),
		OrphanedAssignmentStatus: defaultOrphaned(),
		SyncStatus:               defaultSync(),
		SummaryStatistics:        defaultSummary(),
	}

	var mu sync.Mutex
	results := map[string]models.StatusResult{}
	componentFailures := map[string][]string{}

	runComponent := func(ctx context.Context, name string) {
		checker, ok := o.checkers[name]
		if !ok {
			mu.Lock()
			componentFailures[name] = append(componentFailures[name], "checker not registered")
			mu.Unlock()
			return
		}
		result, err := checks.TryRunWithRetry(ctx, checker, o.cfg)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			componentFailures[name] = append(componentFailures[name], err.Error())
			return
		}
		results[name] = result
	}

	if o.cfg.EnableParallelChecks {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.MaxConcurrentChecks)
		for _, name := range append(append([]string{}, reportDomains...), "summary") {
			name := name
			g.Go(func() error {
				runComponent(gctx, name)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, name := range reportDomains {
			runComponent(ctx, name)
		}
		// Summary statistics run last and separately; they are the most
		// expensive aggregate and must not affect the other domains.
		runComponent(ctx, "summary")
	}

	o.merge(report, results, componentFailures)

	report.CheckDurationSeconds = time.Since(start).Seconds()

	overall := report.OverallHealth
	overall.AddDetail("component_count", len(reportDomains)+1)
	overall.AddDetail("parallel_execution", o.cfg.EnableParallelChecks)
	overall.AddDetail("degraded_mode", len(componentFailures) > 0)
	if len(componentFailures) > 0 {
		overall.AddDetail("component_failures", componentFailures)
	}

	slog.Info("comprehensive status completed",
		"duration_seconds", report.CheckDurationSeconds,
		"degraded_mode", len(componentFailures) > 0,
		"failed_components", len(componentFailures),
	)
	return report
}

// merge copies succeeded results into the report defaults and forces failed
// components' defaults to CRITICAL with the failure recorded.
func (o *StatusOrchestrator) merge(report *models.StatusReport, results map[string]models.StatusResult, failures map[string][]string) {
	if r, ok := results["health"].(*models.HealthStatus); ok {
		report.OverallHealth = r
	} else if r, ok := results["health"]; ok {
		copyBase(&report.OverallHealth.BaseStatusResult, r)
	}
	if r, ok := results["provisioning"].(*models.ProvisioningStatus); ok {
		report.ProvisioningStatus = r
	} else if r, ok := results["provisioning"]; ok {
		copyBase(&report.ProvisioningStatus.BaseStatusResult, r)
	}
	if r, ok := results["orphaned"].(*models.OrphanedAssignmentStatus); ok {
		report.OrphanedAssignmentStatus = r
	} else if r, ok := results["orphaned"]; ok {
		copyBase(&report.OrphanedAssignmentStatus.BaseStatusResult, r)
	}
	if r, ok := results["sync"].(*models.SyncStatus); ok {
		report.SyncStatus = r
	} else if r, ok := results["sync"]; ok {
		copyBase(&report.SyncStatus.BaseStatusResult, r)
	}
	if r, ok := results["summary"].(*models.SummaryStatus); ok {
		report.SummaryStatistics = r
	} else if r, ok := results["summary"]; ok {
		copyBase(&report.SummaryStatistics.BaseStatusResult, r)
	}

	bases := map[string]*models.BaseStatusResult{
		"health":       &report.OverallHealth.BaseStatusResult,
		"provisioning": &report.ProvisioningStatus.BaseStatusResult,
		"orphaned":     &report.OrphanedAssignmentStatus.BaseStatusResult,
		"sync":         &report.SyncStatus.BaseStatusResult,
		"summary":      &report.SummaryStatistics.BaseStatusResult,
	}
	for name, errs := range failures {
		base, ok := bases[name]
		if !ok {
			continue
		}
		base.Status = models.StatusCritical
		base.Message = fmt.Sprintf("%s check failed", name)
		for _, e := range errs {
			base.AddError(e)
		}
		base.AddDetail("component_failure", true)
	}
}

// copyBase transfers the base fields of an unexpected result shape into a
// default object.
func copyBase(dst *models.BaseStatusResult, src models.StatusResult) {
	b := src.Base()
	dst.Timestamp = b.Timestamp
	dst.Status = b.Status
	dst.Message = b.Message
	for k, v := range b.Details {
		dst.AddDetail(k, v)
	}
	for _, e := range b.Errors {
		dst.AddError(e)
	}
}

func defaultHealth() *models.HealthStatus {
	return &models.HealthStatus{
		BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "health check not performed"),
	}
}

func defaultProvisioning() *models.ProvisioningStatus {
	return &models.ProvisioningStatus{
		BaseStatusResult:    models.NewBaseStatusResult(models.StatusHealthy, "provisioning check not performed"),
		ActiveOperations:    []models.ProvisioningOperation{},
		FailedOperations:    []models.ProvisioningOperation{},
		CompletedOperations: []models.ProvisioningOperation{},
	}
}

func defaultOrphaned() *models.OrphanedAssignmentStatus {
	return &models.OrphanedAssignmentStatus{
		BaseStatusResult:    models.NewBaseStatusResult(models.StatusHealthy, "orphaned assignment check not performed"),
		OrphanedAssignments: []models.OrphanedAssignment{},
	}
}

func defaultSync() *models.SyncStatus {
	return &models.SyncStatus{
		BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "sync check not performed"),
	}
}

func defaultSummary() *models.SummaryStatus {
	return &models.SummaryStatus{
		BaseStatusResult: models.NewBaseStatusResult(models.StatusHealthy, "summary statistics not collected"),
	}
}
