package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xreach/acp/internal/alert"
	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/catalog"
	"github.com/xreach/acp/internal/config"
	"github.com/xreach/acp/internal/graph"
	"github.com/xreach/acp/internal/server"
	"github.com/xreach/acp/internal/storage"
	"github.com/xreach/acp/internal/theme"
	"github.com/xreach/acp/internal/views"
)

var (
	version    = "dev"
	cfgFile    string
	backendURL string
	logFormat  string
	logLevel   string
	outputJSON bool
	logger     *slog.Logger
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "acp",
		Short: "ACP, the AIOps Control Plane dashboard",
		Long:  "Operations dashboard for the AIOps backend: metrics, alerts, assets, remediation and settings.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(cmd.ErrOrStderr(), logFormat, logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./acp.yaml)")
	root.PersistentFlags().StringVar(&backendURL, "backend", "", "backend base URL (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "print raw JSON snapshots instead of tables")

	root.AddCommand(
		serveCmd(),
		statusCmd(),
		alertsCmd(),
		logsCmd(),
		assetsCmd(),
		discoveryCmd(),
		agentsCmd(),
		remediateCmd(),
		auditCmd(),
		anomaliesCmd(),
		settingsCmd(),
		integrationsCmd(),
		themeCmd(),
		prefsCmd(),
		versionCmd(),
		completionCmd(),
	)
	return root
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (use: text, json)", format)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*apiclient.Client, error) {
	opts := []apiclient.Option{
		apiclient.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.RateBurst),
	}
	if cfg.Backend.Timeout != "" {
		d, err := time.ParseDuration(cfg.Backend.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid backend.timeout %q: %w", cfg.Backend.Timeout, err)
		}
		opts = append(opts, apiclient.WithTimeout(d))
	}
	if cfg.Backend.Token != "" {
		opts = append(opts, apiclient.WithToken(cfg.Backend.Token))
	}
	return apiclient.New(cfg.Backend.URL, opts...)
}

// loadCatalog prefers the configured actions file, then the backend's
// list, then the built-in defaults.
func loadCatalog(ctx context.Context, cfg *config.Config, api *apiclient.Client) (*catalog.Catalog, error) {
	if cfg.UI.ActionsFile != "" {
		return catalog.LoadFile(cfg.UI.ActionsFile)
	}
	cat := catalog.Default()
	if err := cat.Sync(ctx, api); err != nil {
		logger.Warn("using built-in remediation actions", "error", err)
	}
	return cat, nil
}

func buildAlerter(cfg *config.Config) alert.Alerter {
	var alerters []alert.Alerter
	if cfg.Alerts.Stdout.Enabled {
		alerters = append(alerters, alert.NewStdoutAlerter())
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Headers,
			alert.WithMinSeverity(cfg.Alerts.Webhook.MinSeverity)))
	}
	return alert.NewMulti(alerters...)
}

// app bundles what every command needs.
type app struct {
	cfg      *config.Config
	api      *apiclient.Client
	registry *views.Registry
	pages    *views.Pages
}

// openApp builds the page registry. alerter may be nil for commands that
// never mount the alerts page.
func openApp(ctx context.Context, cfg *config.Config, alerter alert.Alerter) (*app, error) {
	api, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	iv, err := views.IntervalsFromConfig(cfg.Polling)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(ctx, cfg, api)
	if err != nil {
		return nil, err
	}
	if alerter == nil {
		alerter = alert.NewMulti()
	}
	registry, pages := views.NewDefault(ctx, views.Deps{
		API:       api,
		Intervals: iv,
		Evaluator: alert.NewEvaluator(cfg.Alerts.WarningThreshold, cfg.Alerts.CriticalThreshold),
		History:   alert.NewHistory(cfg.Alerts.HistorySize),
		Alerter:   alerter,
		Catalog:   cat,
		Logger:    logger,

		LogLimit:   cfg.UI.LogLimit,
		AuditLimit: cfg.UI.AuditLimit,
	})
	return &app{cfg: cfg, api: api, registry: registry, pages: pages}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func openSyncer(cfg *config.Config) (*graph.Syncer, error) {
	if !cfg.Storage.Memgraph.Enabled {
		return nil, fmt.Errorf("memgraph is not enabled in configuration (set storage.memgraph.enabled: true)")
	}
	mg := cfg.Storage.Memgraph
	return graph.NewSyncer(mg.URI, mg.Username, mg.Password, logger)
}

// snapshot refreshes a page once and returns its snapshot.
func (a *app) snapshot(ctx context.Context, name string) (any, error) {
	return a.registry.Snapshot(ctx, name)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- serve ---

func serveCmd() *cobra.Command {
	var listen string
	var readOnly, ephemeral bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, buildAlerter(cfg))
			if err != nil {
				return err
			}

			var store storage.Store = storage.NewMemoryStore()
			if !ephemeral {
				sqlStore, err := openStore(ctx, cfg)
				if err != nil {
					return fmt.Errorf("opening preferences: %w", err)
				}
				store = sqlStore
				if info, err := os.Stat(cfg.Storage.Path); err == nil {
					logger.Info("preferences loaded", "path", cfg.Storage.Path, "size", formatBytes(info.Size()))
				}
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup
			themes := theme.NewProvider(ctx, store, theme.Theme(cfg.UI.DefaultTheme), logger)

			var syncer server.GraphSyncer
			if cfg.Storage.Memgraph.Enabled {
				s, err := openSyncer(cfg)
				if err != nil {
					logger.Warn("memgraph unavailable, graph sync disabled", "error", err)
				} else {
					defer s.Close() //nolint:errcheck // best-effort cleanup
					syncer = s
				}
			}

			if listen == "" {
				listen = cfg.Server.Listen
			}
			opts := server.Options{
				Listen:       listen,
				ReadOnly:     readOnly || cfg.Server.ReadOnly,
				APIToken:     cfg.Server.APIToken,
				CORSOrigin:   cfg.Server.CORSOrigin,
				BackendToken: cfg.Backend.Token,
			}
			if cfg.Server.ProxyAPI {
				u, err := url.Parse(cfg.Backend.URL)
				if err != nil {
					return fmt.Errorf("invalid backend.url: %w", err)
				}
				opts.Backend = u
			}
			srv := server.New(a.registry, a.pages, themes, syncer, logger, opts)

			// The alerts page stays mounted so notifications fire without
			// an open browser.
			if _, err := a.registry.Acquire(views.PageAlerts); err != nil {
				return err
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			if err := srv.Start(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config or :8080)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "disable every action that changes backend state")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep preferences in memory only")
	return cmd
}

// --- version / completion ---

func formatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "acp %s\n", version)
		},
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (use: debug, info, warn, error)", s)
	}
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ACP.

To load completions:

Bash:
  $ source <(acp completion bash)

Zsh:
  $ acp completion zsh > "${fpath[1]}/_acp"

Fish:
  $ acp completion fish | source

PowerShell:
  PS> acp completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
