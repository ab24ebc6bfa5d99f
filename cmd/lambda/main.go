package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"

	"github.com/statusops/idc-monitor/internal/alert"
	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/checks"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/history"
	"github.com/statusops/idc-monitor/internal/orchestrator"
	"github.com/statusops/idc-monitor/internal/secrets"
)

// Handler runs one scheduled status sweep per invocation.
type Handler struct {
	orch     *orchestrator.StatusOrchestrator
	notifier *alert.Notifier
}

func newHandler(ctx context.Context) (*Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	admin := awsapi.NewAdminClient(ssoadmin.NewFromConfig(awsCfg))
	store := awsapi.NewStoreClient(identitystore.NewFromConfig(awsCfg), cfg.IdentityStoreID)
	orgs := awsapi.NewOrgClient(organizations.NewFromConfig(awsCfg))

	var hist checks.CleanupHistoryStore
	if cfg.CleanupTable != "" {
		hist = history.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.CleanupTable)
	}

	sc := cfg.StatusCheck

	health, err := checks.NewHealthChecker(admin, cfg.SSOInstanceARN, sc)
	if err != nil {
		return nil, err
	}
	provisioning, err := checks.NewProvisioningMonitor(sc)
	if err != nil {
		return nil, err
	}
	detector, err := checks.NewOrphanedAssignmentDetector(admin, store, orgs, hist, cfg.SSOInstanceARN, sc)
	if err != nil {
		return nil, err
	}
	syncCheck, err := checks.NewSyncChecker(store, sc)
	if err != nil {
		return nil, err
	}
	resource, err := checks.NewResourceChecker(admin, orgs, cfg.SSOInstanceARN, sc)
	if err != nil {
		return nil, err
	}
	summary, err := checks.NewSummaryStatisticsCollector(admin, store, cfg.SSOInstanceARN, sc)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(sc, map[string]checks.Checker{
		"health":       health,
		"provisioning": provisioning,
		"orphaned":     detector,
		"sync":         syncCheck,
		"resource":     resource,
		"summary":      summary,
	})
	if err != nil {
		return nil, err
	}

	h := &Handler{orch: orch}

	if cfg.AlertWebhookURL != "" && cfg.AlertSecretARN != "" {
		sm := secretsmanager.NewFromConfig(awsCfg)
		keys, err := secrets.FetchSigningKeys(ctx, sm, cfg.AlertSecretARN)
		if err != nil {
			return nil, fmt.Errorf("fetch alert signing keys: %w", err)
		}
		keyID, secret := firstKey(keys)
		h.notifier = alert.NewNotifier(cfg.AlertWebhookURL, keyID, secret)
	}

	return h, nil
}

// firstKey picks a deterministic key when the secret holds several,
// preferring "default".
func firstKey(keys map[string]string) (string, string) {
	if secret, ok := keys["default"]; ok {
		return "default", secret
	}
	for id, secret := range keys {
		return id, secret
	}
	return "", ""
}

func (h *Handler) Handle(ctx context.Context) error {
	report := h.orch.GetComprehensiveStatus(ctx)

	overall := "unknown"
	if report.OverallHealth != nil {
		overall = string(report.OverallHealth.Status)
	}
	slog.Info("status sweep complete",
		"overall", overall,
		"duration_seconds", report.CheckDurationSeconds,
	)

	if h.notifier != nil && alert.ShouldAlert(report) {
		if err := h.notifier.NotifyReport(ctx, report); err != nil {
			slog.Error("failed to deliver status alert", "error", err)
		}
	}

	if alert.ShouldAlert(report) {
		return fmt.Errorf("status sweep degraded: overall health %s", overall)
	}
	return nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	handler, err := newHandler(context.Background())
	if err != nil {
		slog.Error("failed to initialise status monitor", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler.Handle)
}
