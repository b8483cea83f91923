package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"house-prices/internal/config"
	"house-prices/internal/scraper"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var (
	configPath string
	siteFilter []string
	headful    bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "house-prices",
	Short: "Look up New Zealand property price estimates",
	Long: `
house-prices resolves an address on each configured real-estate site and reads
the site's price estimate (midpoint, upper and lower figures) off the property
page.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if len(siteFilter) > 0 {
			cfg.Sites = siteFilter
		}
		if headful {
			cfg.Browser.Headless = false
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: config.yaml in ., ./config or /etc/house-prices)")
	rootCmd.PersistentFlags().StringSliceVar(&siteFilter, "sites", nil, "comma-separated sites to query (default: all configured)")
	rootCmd.PersistentFlags().BoolVar(&headful, "show-browser", false, "run Chrome with a visible window")
}

// startRuntime wires the orchestrator and cancels on SIGINT/SIGTERM
func startRuntime(cmd *cobra.Command) (context.Context, *scraper.Runtime, func(), error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	rt, err := scraper.Setup(ctx, cfg)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	return ctx, rt, func() { rt.Close(); stop() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
