package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cli/browser"
	"github.com/spf13/cobra"

	"github.com/Zachdehooge/hazard-map/internal/config"
	"github.com/Zachdehooge/hazard-map/internal/generator"
	"github.com/Zachdehooge/hazard-map/internal/logging"
	"github.com/Zachdehooge/hazard-map/internal/session"
)

// minInterval is the shortest allowed watch interval
const minInterval = 30 * time.Second

var (
	configFile  string
	outputFile  string
	payloadFile string
	verbose     int
	interval    time.Duration
	watchMode   bool
	openPage    bool
	serveAddr   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hazard-map",
		Short: "Build a layered hazard map page from remote GeoJSON",
		Long: `hazard-map fetches the configured GeoJSON datasets, spreads out
overlapping points, stacks the layers in their configured order and writes
a static Leaflet page with layer toggles and scenario information.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbose)
		},
		RunE: runGenerate,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./hazard-map.yaml if present)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output HTML file path (overrides output.html)")
	rootCmd.Flags().StringVar(&payloadFile, "payload", "", "Output JSON payload path (overrides output.payload)")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Update interval in watch mode (minimum 30s, overrides watch.interval)")
	rootCmd.Flags().BoolVar(&watchMode, "watch", false, "Keep rebuilding the map until interrupted")
	rootCmd.Flags().BoolVar(&openPage, "open", false, "Open the generated page in a browser")
	rootCmd.Flags().StringVar(&serveAddr, "serve", "", "In watch mode, serve the output directory on this address (e.g. :8080)")

	addListCmd(rootCmd)
	addConfigCmd(rootCmd)

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if outputFile != "" {
		cfg.Output.HTML = outputFile
	}
	if payloadFile != "" {
		cfg.Output.Payload = payloadFile
	}
	if interval > 0 {
		cfg.Watch.Interval = interval
	}
	return cfg, nil
}

func outputsFor(cfg *config.Config) generator.Outputs {
	out := generator.Outputs{HTML: cfg.Output.HTML, Payload: cfg.Output.Payload}
	if watchMode && cfg.Output.Payload != "" {
		rel, err := filepath.Rel(filepath.Dir(cfg.Output.HTML), cfg.Output.Payload)
		if err != nil {
			rel = filepath.Base(cfg.Output.Payload)
		}
		out.Page = generator.PageOptions{PayloadURL: filepath.ToSlash(rel), Refresh: cfg.Watch.Interval}
	}
	return out
}

// runGenerate builds the map once and, in watch mode, keeps it current
func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg)
	defer sess.Close()

	if verbose > 0 {
		cmd.Println("Fetching hazard datasets...")
	}

	snap, err := generator.Generate(ctx, sess, outputsFor(cfg))
	if err != nil {
		return fmt.Errorf("failed to generate map: %w", err)
	}
	for _, r := range snap.FailedLoads() {
		cmd.PrintErrln(fmt.Sprintf("warning: layer %q unavailable: %v", r.Name, r.Err))
	}
	cmd.Println(fmt.Sprintf("Hazard map with %d layers saved to %s", len(snap.Stack.Entries), cfg.Output.HTML))

	if openPage {
		if err := browser.OpenFile(cfg.Output.HTML); err != nil {
			cmd.PrintErrln(fmt.Errorf("failed to open browser: %w", err))
		}
	}

	if watchMode {
		runWatchMode(ctx, cmd, sess)
	}
	return nil
}

// runWatchMode rebuilds on every interval and reloads the config file when it changes
func runWatchMode(ctx context.Context, cmd *cobra.Command, sess *session.Session) {
	cfg := sess.Config()
	every := cfg.Watch.Interval
	if every < minInterval {
		every = minInterval
	}

	if cfg.Path != "" {
		// Output paths stay as they were at startup; datasets, order and
		// resolver settings follow the file.
		w, err := config.NewWatcher(cfg.Path, sess.Reconfigure)
		if err != nil {
			cmd.PrintErrln(fmt.Errorf("config reload disabled: %w", err))
		} else {
			go w.Run(ctx)
		}
	}

	if serveAddr != "" {
		srv := &http.Server{Addr: serveAddr, Handler: http.FileServer(http.Dir(filepath.Dir(cfg.Output.HTML)))}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				cmd.PrintErrln(fmt.Errorf("server failed: %w", err))
			}
		}()
		defer srv.Close()
		host := serveAddr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		cmd.Println(fmt.Sprintf("Open at http://%s/%s", host, filepath.Base(cfg.Output.HTML)))
	}

	cmd.Println(fmt.Sprintf("Watch mode activated. Updating every %s. Press Ctrl+C to stop.", every))
	generator.RunPoller(ctx, sess, outputsFor(cfg), every)
}
