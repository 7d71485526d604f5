package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/scrapepilot/scrapedash/internal/api"
	"github.com/scrapepilot/scrapedash/internal/apitest"
	"github.com/scrapepilot/scrapedash/internal/config"
	"github.com/scrapepilot/scrapedash/internal/logging"
	"github.com/scrapepilot/scrapedash/internal/tui"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

var (
	flagConfig   string
	flagAPIURL   string
	flagLogFile  string
	flagLogLevel string
	flagDemo     bool
)

var rootCmd = &cobra.Command{
	Use:   "scrapedash",
	Short: "Terminal dashboard for a ScrapePilot scrape service",
	Long: `scrapedash is a terminal dashboard for a ScrapePilot scrape service.

It shows summary stats, trending topics, source domains, run history and
the scraped items themselves, keeps the live scraper status polled in
the background, and can trigger runs and change the scrape schedule.`,
	SilenceUsage: true,
	RunE:         runDashboard,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("scrapedash " + version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(_ *cobra.Command, _ []string) error {
		path := flagConfig
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	rootCmd.Flags().StringVar(&flagAPIURL, "api-url", "", "scrape service base URL (overrides config and "+config.EnvAPIURL+")")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "log file path")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (debug|info|warn|error)")
	rootCmd.Flags().BoolVar(&flagDemo, "demo", false, "run against a built-in in-memory demo service")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func runDashboard(_ *cobra.Command, _ []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if flagAPIURL != "" {
		cfg.API.BaseURL = flagAPIURL
	}
	if flagLogFile != "" {
		cfg.Log.File = flagLogFile
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}

	// The terminal belongs to the TUI from here on; logs go to a file.
	logFile, err := logging.Open(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.Log.Level)

	baseURL := cfg.API.BaseURL
	if flagDemo {
		demo := apitest.New()
		demo.SeedDemo()
		demo.SetRunDelay(3 * time.Second)
		url, stop, err := demo.Start()
		if err != nil {
			return fmt.Errorf("starting demo service: %w", err)
		}
		defer stop()
		baseURL = url
		logger.Info("demo service started", "url", url)
	}

	logger.Info("starting scrapedash", "version", version, "api", baseURL)

	model := tui.New(api.New(baseURL, logger), logger)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}

	logger.Info("scrapedash stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
