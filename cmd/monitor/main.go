package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/checks"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/history"
	"github.com/statusops/idc-monitor/internal/models"
	"github.com/statusops/idc-monitor/internal/orchestrator"
)

var (
	flagCheck    string
	flagParallel bool
	flagTimeout  int
	flagRetries  int
	flagYes      bool
	flagVerbose  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "idc-monitor",
		Short:         "Status monitoring for AWS IAM Identity Center deployments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Run status checks and print the report as JSON",
		RunE:  runStatus,
	}
	statusCmd.Flags().StringVar(&flagCheck, "check", "", "run a single named check instead of the full report")
	statusCmd.Flags().BoolVar(&flagParallel, "parallel", true, "run checks in parallel")
	statusCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "per-check timeout in seconds (0 uses the configured default)")
	statusCmd.Flags().IntVar(&flagRetries, "retries", -1, "retry attempts per check (-1 uses the configured default)")

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Detect orphaned assignments and delete them after confirmation",
		RunE:  runCleanup,
	}
	cleanupCmd.Flags().BoolVar(&flagYes, "yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(statusCmd, cleanupCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// engine bundles everything the commands need.
type engine struct {
	orch     *orchestrator.StatusOrchestrator
	detector *checks.OrphanedAssignmentDetector
	checkCfg config.StatusCheckConfig
}

func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	sc := cfg.StatusCheck
	sc.EnableParallelChecks = flagParallel
	if flagTimeout > 0 {
		sc.TimeoutSeconds = flagTimeout
	}
	if flagRetries >= 0 {
		sc.RetryAttempts = flagRetries
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
	return &engine{orch: orch, detector: detector, checkCfg: sc}, nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}

	var out any
	if flagCheck != "" {
		out = eng.orch.GetSpecificStatus(ctx, flagCheck)
	} else {
		out = eng.orch.GetComprehensiveStatus(ctx)
	}
	return printJSON(out)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}

	result := checks.RunWithRetry(ctx, eng.detector, eng.checkCfg)
	status, ok := result.(*models.OrphanedAssignmentStatus)
	if !ok {
		return fmt.Errorf("orphaned assignment detection failed: %s", result.Base().Message)
	}
	if status.Count() == 0 {
		fmt.Println("no orphaned assignments found")
		return nil
	}

	if !flagYes && !checks.PromptForCleanup(status.OrphanedAssignments, os.Stdin, os.Stdout) {
		fmt.Println("cleanup cancelled")
		return nil
	}

	cleanup := eng.detector.CleanupOrphanedAssignments(ctx, status.OrphanedAssignments)
	return printJSON(cleanup)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
