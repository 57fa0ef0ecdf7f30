package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/repo-health-scanner/pkg/backend"
	"github.com/repo-health-scanner/pkg/cache"
	"github.com/repo-health-scanner/pkg/config"
	"github.com/repo-health-scanner/pkg/lockfile"
	"github.com/repo-health-scanner/pkg/orchestrator"
	"github.com/repo-health-scanner/pkg/reporter"
	"github.com/repo-health-scanner/pkg/scanner"
	"github.com/repo-health-scanner/pkg/storage"
	"github.com/repo-health-scanner/pkg/telemetry"
	"github.com/repo-health-scanner/pkg/vcs"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "repo-health-scanner <owner>/<repo>[@ref]",
		Short:   "Scan a repository's dependencies for known vulnerabilities",
		Long:    `Runs the configured vulnerability backends concurrently against a checked-out repository, consolidates their findings into a single deduplicated report, and computes aggregate health metrics.`,
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}

	rootCmd.Flags().StringSlice("backend", nil, "Backend(s) to run: osv | github | all (default all)")
	rootCmd.Flags().String("output", "table", "Output format: json | sarif | table")
	rootCmd.Flags().String("github-token", os.Getenv("GITHUB_TOKEN"), "GitHub token for API access")
	rootCmd.Flags().String("osv-scanner-path", "", "Path to the osv-scanner binary")
	rootCmd.Flags().Int("timeout", 0, "Per-backend scan timeout in seconds")
	rootCmd.Flags().String("config", ".repo-health-scanner.yml", "Path to config file")
	rootCmd.Flags().String("db", "", "SQLite path for scan history (disabled if empty)")
	rootCmd.Flags().String("metrics-addr", "", "Address for the Prometheus /metrics listener (disabled if empty)")
	rootCmd.Flags().Bool("debug", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}
	cfg = config.MergeFlags(cfg, cmd.Flags())

	telemetry.InitLogger(cfg.Debug)

	owner, name, ref, err := vcs.ParseRepoArg(args[0])
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				slog.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	ghBackend := backend.NewGitHubAdvisory(cfg.Token, cfg.ScanTimeout())
	ghBackend.Packages = lockfile.Packages

	registry := backend.NewRegistry(
		backend.NewOSVScanner(cfg.OSVScannerPath, cfg.ScanTimeout()),
		ghBackend,
	)

	var store storage.Store
	if cfg.DBPath != "" {
		sqlStore, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open scan history: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	svc := scanner.New(
		vcs.NewGitHubProvider(cfg.Token),
		orchestrator.New(registry, metrics),
		cache.New(cfg.CacheTTL(), cfg.Cache.MaxEntries),
		store,
		metrics,
	)

	result, err := svc.ScanRepository(cmd.Context(), owner, name, ref, cfg.Backends)
	if err != nil {
		return err
	}

	return reporter.New(cfg.Output).Report(result)
}
