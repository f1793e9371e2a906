// Package cli implements the violette command-line interface. It provides
// commands for running scans, serving the live view, exporting results, and
// inspecting the store.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/edgerunner0x01/violette/internal/config"
	"github.com/edgerunner0x01/violette/internal/logging"
)

var (
	cfgFile string
	verbose bool
	dbPath  string
)

// Build information, set by ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "violette",
	Short: "Network scan orchestration",
	Long: `Violette orchestrates concurrent nmap scans over network ranges,
persists hosts and ports to a local database, serves a live-updating
view of results, and exports them as JSON.`,
	Version: getVersion(),
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Accept snake_case flag spellings alongside the canonical dashed ones.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./violette.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "scanner.db", "path to the scan database")

	if err := viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind db flag: %v\n", err)
	}
}

// initConfig reads the config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("violette")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("VIOLETTE")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

func setConfigDefaults() {
	viper.SetDefault("store.path", "scanner.db")

	viper.SetDefault("scanning.concurrency", 10)
	viper.SetDefault("scanning.timeout_per_host", "300s")
	viper.SetDefault("scanning.recency_threshold", "24h")

	viper.SetDefault("live.host", "0.0.0.0")
	viper.SetDefault("live.port", 8080)
	viper.SetDefault("live.poll_interval", "1s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
}

// loadConfig returns the effective configuration, with the --db flag
// overriding the file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	return cfg, nil
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets build information, called from main.
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

func initLogging() {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = logging.LevelDebug
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}
