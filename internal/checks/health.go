package checks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
	"github.com/statusops/idc-monitor/internal/statuserr"
)

// Connectivity classifications reported by the health check.
const (
	ConnectivityConnected           = "connected"
	ConnectivityConnectedNoData     = "connected_no_resources"
	ConnectivityNoCredentials       = "no_credentials"
	ConnectivityEndpointUnreachable = "endpoint_unreachable"
	ConnectivityPermissionDenied    = "permission_denied"
	ConnectivityFailed              = "failed"
)

// HealthChecker probes Identity Center connectivity and service
// availability. Both sub-probes run under their own, shorter deadlines
// inside the overall check budget.
type HealthChecker struct {
	admin       awsapi.IdentityCenterAdmin
	instanceARN string
	cfg         config.StatusCheckConfig

	mu          sync.Mutex
	lastSuccess *time.Time
}

// NewHealthChecker creates a health checker. The config is validated up
// front; an invalid config is a construction error.
func NewHealthChecker(admin awsapi.IdentityCenterAdmin, instanceARN string, cfg config.StatusCheckConfig) (*HealthChecker, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("health checker: %w", err)
	}
	return &HealthChecker{admin: admin, instanceARN: instanceARN, cfg: cfg}, nil
}

// Name implements Checker.
func (h *HealthChecker) Name() string { return "health" }

type connectivityResult struct {
	status        string
	instanceCount int
	err           error
}

type availabilityResult struct {
	succeeded int
	total     int
}

// CheckStatus runs the connectivity probe and the service-availability probe
// and folds both into one HealthStatus. Overall status precedence, first
// match wins: connectivity down, service unavailable, service partial,
// zero resources / soft warnings, healthy.
func (h *HealthChecker) CheckStatus(ctx context.Context) (models.StatusResult, error) {
	start := time.Now()
	budget := time.Duration(h.cfg.TimeoutSeconds) * time.Second

	conn := h.probeConnectivity(ctx, budget/2)
	avail := h.probeServiceAvailability(ctx, budget*2/3)

	result := &models.HealthStatus{
		BaseStatusResult:   models.NewBaseStatusResult(models.StatusHealthy, "Identity Center is healthy"),
		ConnectivityStatus: conn.status,
		ServiceAvailable:   avail.succeeded == avail.total && avail.total > 0,
	}
	result.AddDetail("instance_count", conn.instanceCount)
	result.AddDetail("availability_checks_passed", avail.succeeded)
	result.AddDetail("availability_checks_total", avail.total)

	switch {
	case conn.err != nil:
		result.Status = models.StatusConnectionFailed
		result.Message = connectivityMessage(conn.status)
		result.AddError(conn.err.Error())

	case avail.succeeded == 0:
		result.Status = models.StatusCritical
		result.Message = "Identity Center service is unavailable"

	case avail.succeeded < avail.total:
		result.Status = models.StatusWarning
		result.Message = fmt.Sprintf("Identity Center service partially available: %d of %d checks failed",
			avail.total-avail.succeeded, avail.total)

	case conn.status == ConnectivityConnectedNoData:
		result.Status = models.StatusWarning
		result.Message = "connected but no Identity Center instances were found"

	default:
		h.mu.Lock()
		now := time.Now().UTC()
		h.lastSuccess = &now
		h.mu.Unlock()
	}

	h.mu.Lock()
	result.LastSuccessfulCheck = h.lastSuccess
	h.mu.Unlock()

	result.ResponseTimeMs = float64(time.Since(start)) / float64(time.Millisecond)

	slog.Info("health check completed",
		"status", result.Status,
		"connectivity", conn.status,
		"response_time_ms", result.ResponseTimeMs,
	)
	return result, nil
}

// probeConnectivity makes one lightweight call and classifies the outcome.
func (h *HealthChecker) probeConnectivity(ctx context.Context, deadline time.Duration) connectivityResult {
	probeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	instances, err := h.admin.ListInstances(probeCtx)
	if err != nil {
		return connectivityResult{status: classifyConnectivity(err), err: err}
	}
	if len(instances) == 0 {
		return connectivityResult{status: ConnectivityConnectedNoData}
	}
	return connectivityResult{status: ConnectivityConnected, instanceCount: len(instances)}
}

// probeServiceAvailability runs a short ordered sequence of increasingly
// specific calls: list permission sets, then describe the first one found.
func (h *HealthChecker) probeServiceAvailability(ctx context.Context, deadline time.Duration) availabilityResult {
	probeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	res := availabilityResult{total: 1}
	arns, err := h.admin.ListPermissionSets(probeCtx, h.instanceARN)
	if err != nil {
		slog.Warn("service availability probe failed", "call", "ListPermissionSets", "error", err)
		return res
	}
	res.succeeded++

	if len(arns) == 0 {
		// Nothing narrower to probe against.
		return res
	}

	res.total++
	if _, err := h.admin.DescribePermissionSet(probeCtx, h.instanceARN, arns[0]); err != nil {
		slog.Warn("service availability probe failed", "call", "DescribePermissionSet", "error", err)
		return res
	}
	res.succeeded++
	return res
}

func classifyConnectivity(err error) string {
	switch {
	case statuserr.IsMissingCredentials(err):
		return ConnectivityNoCredentials
	case statuserr.IsPermission(err):
		return ConnectivityPermissionDenied
	case statuserr.IsConnection(err):
		return ConnectivityEndpointUnreachable
	default:
		return ConnectivityFailed
	}
}

func connectivityMessage(status string) string {
	switch status {
	case ConnectivityNoCredentials:
		return "cannot reach Identity Center: no AWS credentials available"
	case ConnectivityEndpointUnreachable:
		return "cannot reach Identity Center: endpoint unreachable"
	case ConnectivityPermissionDenied:
		return "cannot reach Identity Center: permission denied"
	default:
		return "cannot reach Identity Center"
	}
}
