package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/edgerunner0x01/violette/internal/live"
	"github.com/edgerunner0x01/violette/internal/store"
)

var hostsAll bool

// hostsCmd represents the hosts command.
var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List scanned hosts",
	Long: `Print the current host table from the scan database. By default only
hosts reported up are shown.`,
	Example: `  violette hosts
  violette hosts --all
  violette hosts --db /var/lib/violette/scanner.db`,
	RunE: runHosts,
}

func init() {
	rootCmd.AddCommand(hostsCmd)

	hostsCmd.Flags().BoolVar(&hostsAll, "all", false, "Include hosts not reported up")
}

func runHosts(cmd *cobra.Command, args []string) error {
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

	records, err := st.ListHosts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}

	if !hostsAll {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Status == store.HostStatusUp {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if len(records) == 0 {
		fmt.Println("No hosts found")
		return nil
	}

	displayHostsTable(records)
	return nil
}

func displayHostsTable(records []store.HostRecord) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("IP", "Hostname", "OS", "Status", "Ports", "Last Scan")

	snap := live.BuildSnapshot(records)
	for i, row := range snap.Rows {
		_ = table.Append([]string{
			row.IP,
			row.Hostname,
			row.OS,
			records[i].Status,
			row.Ports,
			row.LastScan,
		})
	}

	_ = table.Render()
}
