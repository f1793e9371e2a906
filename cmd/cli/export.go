package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgerunner0x01/violette/internal/export"
	"github.com/edgerunner0x01/violette/internal/store"
)

var exportOutput string

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scan results to JSON",
	Long: `Export every host and its ports as a single JSON document with
export metadata. An empty database yields an empty result list.`,
	Example: `  violette export
  violette export --output results.json
  violette export --db /var/lib/violette/scanner.db --output results.json`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOutput, "output", "scan_results.json", "Output file path")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
		return fmt.Errorf("database file %q not found", cfg.Store.Path)
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

	doc, err := export.New(st).WriteFile(ctx, exportOutput)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported %d hosts to %s\n", doc.Metadata.TotalHosts, exportOutput)
	return nil
}
