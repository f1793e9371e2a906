package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgerunner0x01/violette/internal/live"
	"github.com/edgerunner0x01/violette/internal/probe"
	"github.com/edgerunner0x01/violette/internal/scan"
	"github.com/edgerunner0x01/violette/internal/scheduler"
	"github.com/edgerunner0x01/violette/internal/store"
)

var (
	serveHost     string
	servePort     int
	serveInterval time.Duration
	rescanCron    string
	rescanRange   string
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live results view",
	Long: `Serve an HTML view of the scan database that updates in place as new
results are committed. Optionally run recurring scans on a cron
schedule while serving.`,
	Example: `  violette serve
  violette serve --port 9090 --interval 2s
  violette serve --rescan-cron "*/30 * * * *" --rescan-range 192.168.1.0/24`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Address to bind")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", time.Second, "Store polling interval")
	serveCmd.Flags().StringVar(&rescanCron, "rescan-cron", "", "Cron expression for recurring scans")
	serveCmd.Flags().StringVar(&rescanRange, "rescan-range", "", "CIDR range for recurring scans")

	serveCmd.MarkFlagsRequiredTogether("rescan-cron", "rescan-range")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	if rescanCron != "" {
		orchestrator := scan.New(st, probe.NewNmapProber(probe.NewResolver(5*time.Second)))
		sched := scheduler.New(orchestrator)
		if _, err := sched.AddRescanJob("rescan", rescanCron, scan.Request{
			CIDR:           rescanRange,
			Concurrency:    cfg.Scanning.Concurrency,
			TimeoutPerHost: cfg.Scanning.TimeoutPerHost,
			Threshold:      cfg.Scanning.RecencyThreshold,
		}); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	server := live.NewServer(live.Config{
		Host:         serveHost,
		Port:         servePort,
		PollInterval: serveInterval,
	}, st)

	return server.Run(ctx)
}
