package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgerunner0x01/violette/internal/probe"
	"github.com/edgerunner0x01/violette/internal/scan"
	"github.com/edgerunner0x01/violette/internal/store"
)

var (
	scanConcurrency int
	scanTimeout     int
	scanFresh       bool
	scanThreshold   time.Duration
	scanReset       bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan <cidr>",
	Short: "Scan a network range",
	Long: `Scan every address in a CIDR range with nmap and persist the results.

Hosts scanned within the recency threshold are skipped unless --fresh
is given. Per-host failures are logged and skipped; the run continues.`,
	Example: `  violette scan 192.168.1.0/24
  violette scan 10.0.0.0/16 --concurrency 50 --timeout 120
  violette scan 192.168.1.0/24 --fresh
  violette scan 192.168.1.0/24 --threshold 1h`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 10, "Maximum concurrent probes")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 300, "Per-host probe timeout in seconds")
	scanCmd.Flags().BoolVar(&scanFresh, "fresh", false, "Probe every target regardless of recency")
	scanCmd.Flags().DurationVar(&scanThreshold, "threshold", 24*time.Hour, "Skip hosts scanned within this window")
	scanCmd.Flags().BoolVar(&scanReset, "reset", false, "Drop and recreate the database schema before scanning")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		Path:        cfg.Store.Path,
		BusyTimeout: cfg.Store.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if scanReset {
		if err := st.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Database schema reset")
	}

	orchestrator := scan.New(st, probe.NewNmapProber(probe.NewResolver(5*time.Second)))
	orchestrator.Progress = func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rProgress: %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	summary, err := orchestrator.Run(ctx, scan.Request{
		CIDR:           args[0],
		Concurrency:    scanConcurrency,
		TimeoutPerHost: time.Duration(scanTimeout) * time.Second,
		ForceFresh:     scanFresh,
		Threshold:      scanThreshold,
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printSummary(summary)
	if summary.Canceled {
		return fmt.Errorf("scan interrupted")
	}
	return nil
}

func printSummary(s *scan.Summary) {
	fmt.Printf("\nScan complete (run %s)\n", s.RunID)
	fmt.Printf("  Targets:      %d\n", s.Targets)
	fmt.Printf("  Completed:    %d\n", s.Completed)
	fmt.Printf("  Skipped:      %d\n", s.Skipped)
	fmt.Printf("  Failed:       %d\n", s.Failed)
	fmt.Printf("  Active hosts: %d\n", s.ActiveHosts)
	fmt.Printf("  Elapsed:      %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Printf("  Database:     %s\n", s.StorePath)
}
