package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xreach/acp/internal/alert"
	"github.com/xreach/acp/internal/assets"
	"github.com/xreach/acp/internal/graph"
	"github.com/xreach/acp/internal/theme"
	"github.com/xreach/acp/internal/views"
	"github.com/xreach/acp/pkg/models"
)

func openDefault(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cmd.Context(), cfg, nil)
}

// showPage prints a page snapshot as JSON or through table.
func showPage[T any](cmd *cobra.Command, name string, table func(io.Writer, T) error) error {
	a, err := openDefault(cmd)
	if err != nil {
		return err
	}
	snap, err := a.snapshot(cmd.Context(), name)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), snap.(T), table)
}

func render[T any](w io.Writer, snap T, table func(io.Writer, T) error) error {
	if outputJSON {
		return printJSON(w, snap)
	}
	return table(w, snap)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printMetaError(w io.Writer, m views.Meta) {
	if m.Error != "" {
		_, _ = fmt.Fprintf(w, "warning: backend error, showing fallback data: %s\n", m.Error)
	}
}

// ago renders a backend timestamp relative to now, or as-is when it does
// not parse.
func ago(ts string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return humanize.Time(t)
		}
	}
	return ts
}

// --- status ---

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health, gauges and current metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showPage(cmd, views.PageDashboard, printDashboard)
		},
	}
}

func printDashboard(w io.Writer, d views.DashboardSnapshot) error {
	health := d.Health.Status
	if d.Health.Timestamp != "" {
		health += " (" + d.Health.Timestamp + ")"
	}
	_, _ = fmt.Fprintf(w, "Backend: %s\n", health)
	_, _ = fmt.Fprintf(w, "CPU:     %5.1f%%  [%s]\n", d.CPU.Percent, d.CPU.Level)
	_, _ = fmt.Fprintf(w, "Memory:  %5.1f%%  [%s]\n\n", d.Memory.Percent, d.Memory.Level)

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "METRIC\tVALUE")
	for _, p := range d.Points {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", p.Name, humanize.FtoaWithDigits(p.Value, 2))
	}
	return tw.Flush()
}

// --- alerts ---

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate CPU and memory against the alert thresholds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showPage(cmd, views.PageAlerts, printAlerts)
		},
	}
	cmd.AddCommand(alertsWatchCmd())
	return cmd
}

func printAlerts(w io.Writer, s views.AlertsSnapshot) error {
	printMetaError(w, s.Meta)
	_, _ = fmt.Fprintf(w, "CPU %.1f%%, memory %.1f%% (warning > %.0f, critical > %.0f)\n",
		s.CPU, s.Memory, s.Warning, s.Critical)
	if len(s.Active) == 0 {
		_, _ = fmt.Fprintln(w, "No active alerts.")
		return nil
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "SEVERITY\tMETRIC\tVALUE\tMESSAGE")
	for _, r := range s.Active {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\n", r.Severity, r.Metric, r.Value, r.Message)
	}
	return tw.Flush()
}

func alertsWatchCmd() *cobra.Command {
	var interval string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll metrics and print alerts as they fire",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if interval != "" {
				cfg.Polling.Alerts = interval
			}
			alerters := []alert.Alerter{alert.NewWriterAlerter(cmd.OutOrStdout())}
			if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
				alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Headers,
					alert.WithMinSeverity(cfg.Alerts.Webhook.MinSeverity)))
			}
			a, err := openApp(ctx, cfg, alert.NewMulti(alerters...))
			if err != nil {
				return err
			}
			if _, err := a.registry.Acquire(views.PageAlerts); err != nil {
				return err
			}
			defer a.registry.Release(views.PageAlerts)

			logger.Info("watching alerts", "interval", a.pages.Alerts.Interval())
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&interval, "interval", "", "poll interval (default from polling.alerts)")
	return cmd
}

// --- logs ---

func logsCmd() *cobra.Command {
	var limit int
	var level string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the latest backend log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			page := views.NewLogs(a.api, time.Second, limit)
			_ = page.Refresh(cmd.Context())
			snap := page.Snapshot().(views.LogsSnapshot)
			if level != "" {
				var kept []models.LogEntry
				for _, l := range snap.Logs {
					if strings.EqualFold(l.Level, level) {
						kept = append(kept, l)
					}
				}
				snap.Logs = kept
			}
			return render(cmd.OutOrStdout(), snap, printLogs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries to fetch")
	cmd.Flags().StringVar(&level, "level", "", "only show entries of this level (INFO, WARNING, ERROR)")
	return cmd
}

func printLogs(w io.Writer, s views.LogsSnapshot) error {
	printMetaError(w, s.Meta)
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "TIME\tLEVEL\tMESSAGE")
	for _, l := range s.Logs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Timestamp, l.Level, l.Message)
	}
	return tw.Flush()
}

// --- assets ---

func assetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage monitored assets",
	}
	cmd.AddCommand(
		assetsListCmd(),
		assetsAddCategoryCmd(),
		assetsAddDeviceCmd(),
		assetsSetStatusCmd(),
		assetsDeleteDeviceCmd(),
		assetsExportCmd(),
		assetsSyncCmd(),
	)
	return cmd
}

// inventory refreshes and returns the asset inventory.
func inventory(cmd *cobra.Command) (*assets.Inventory, error) {
	a, err := openDefault(cmd)
	if err != nil {
		return nil, err
	}
	inv := a.pages.Assets.Inventory()
	if err := inv.Refresh(cmd.Context()); err != nil {
		return nil, err
	}
	return inv, nil
}

func printDevices(w io.Writer, cats []models.AssetCategory) error {
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "CATEGORY\tKIND\tID\tNAME\tSTATUS\tPROVIDER\tREGION")
	for _, c := range cats {
		kind := assets.CategoryIcon(c.Name)
		for _, d := range c.Items {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", c.Name, kind, d.ID, d.Name, d.Status, d.Provider, d.Region)
		}
	}
	return tw.Flush()
}

func assetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List devices by category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showPage(cmd, views.PageAssets, func(w io.Writer, s views.AssetsSnapshot) error {
				printMetaError(w, s.Meta)
				return printDevices(w, s.Categories)
			})
		},
	}
}

func assetsAddCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-category <name>",
		Short: "Create an asset category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			if err := a.pages.Assets.Inventory().AddCategory(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Category %q added.\n", args[0])
			return nil
		},
	}
}

func assetsAddDeviceCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "add-device <category> <name>",
		Short: "Add a device to a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			id, err := a.pages.Assets.Inventory().AddDevice(cmd.Context(), args[0], args[1], status)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Device %q added to %s with id %s.\n", args[1], args[0], id)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "running", "initial device status")
	return cmd
}

func assetsSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <category> <id> <status>",
		Short: "Change a device status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			return a.pages.Assets.Inventory().SetStatus(cmd.Context(), args[0], models.DeviceID(args[1]), args[2])
		},
	}
}

func assetsDeleteDeviceCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-device <category> <id>",
		Short: "Delete a device after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			inv := a.pages.Assets.Inventory()
			inv.RequestDelete(args[0], models.DeviceID(args[1]))

			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Delete device %s from %s? [y/N] ", args[1], args[0])) {
				inv.CancelDelete()
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			if err := inv.ConfirmDelete(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Device %s deleted.\n", args[1])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprint(out, prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func assetsExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the inventory topology",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := inventory(cmd)
			if err != nil {
				return err
			}
			out, err := graph.Export(graph.Build(inv.Categories()), format)
			if err != nil {
				return fmt.Errorf("%w (use: %s)", err, strings.Join(graph.Formats(), ", "))
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", graph.FormatJSON, "export format: json, yaml, dot, mermaid")
	return cmd
}

func assetsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replace the Memgraph copy of the inventory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := inventory(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			syncer, err := openSyncer(cfg)
			if err != nil {
				return err
			}
			defer syncer.Close() //nolint:errcheck // best-effort cleanup

			ctx := cmd.Context()
			if err := syncer.Sync(ctx, graph.Build(inv.Categories())); err != nil {
				return err
			}
			cats, devs, err := syncer.Counts(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Synced %d categories and %d devices.\n", cats, devs)
			return nil
		},
	}
}

// --- discovery / analytics / agents ---

func discoveryCmd() *cobra.Command {
	var provider, region string

	cmd := &cobra.Command{
		Use:   "discovery",
		Short: "Show discovered resources and the analytics summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			a.pages.Analytics.SetFilter(assets.Filter{Provider: provider, Region: region})
			snap, err := a.snapshot(cmd.Context(), views.PageAnalytics)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), snap.(views.AnalyticsSnapshot), printAnalytics)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "only show resources of this provider")
	cmd.Flags().StringVar(&region, "region", "", "only show resources in this region")
	return cmd
}

func printAnalytics(w io.Writer, s views.AnalyticsSnapshot) error {
	printMetaError(w, s.Meta)
	_, _ = fmt.Fprintf(w, "Total %d: servers %d, databases %d, networks %d, medical %d\n\n",
		s.Summary.Total, s.Summary.Servers, s.Summary.Databases, s.Summary.Networks, s.Summary.Medical)
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "CATEGORY\tID\tNAME\tSTATUS\tPROVIDER\tREGION\tCOST")
	for _, r := range s.Resources {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Category, r.ID, r.Name, r.Status, r.Provider, r.Region, r.CostEstimate)
	}
	return tw.Flush()
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents [id]",
		Short: "List agents, or show one agent with anomalies and audit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := views.PrefixAgent
			if len(args) == 1 {
				name = views.PrefixAgent + "/" + args[0]
			}
			return showPage(cmd, name, printAgents)
		},
	}
}

func printAgents(w io.Writer, s views.AgentSnapshot) error {
	printMetaError(w, s.Meta)
	if s.ID != "" && !s.Found {
		_, _ = fmt.Fprintf(w, "Agent %q not found.\n", s.ID)
		return nil
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "AGENT\tSTATUS\tLAST SEEN\tCONNECTIVITY")
	for _, id := range s.AgentIDs {
		if s.ID != "" && id != s.ID {
			continue
		}
		ag := s.Agents[id]
		conn := "down"
		if ag.Network.ConnectivityOK {
			conn = "ok"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, ag.Status, ago(ag.LastSeen), conn)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if s.ID != "" {
		_, _ = fmt.Fprintf(w, "\n%d anomalies, %d audit entries\n", len(s.Anomalies), len(s.Audit))
	}
	return nil
}

// --- remediation ---

func remediateCmd() *cobra.Command {
	var params string
	var list bool

	cmd := &cobra.Command{
		Use:   "remediate [target] [action]",
		Short: "Run a remediation action",
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if list {
				cat := a.pages.Remediation.Catalog()
				tw := newTable(out)
				_, _ = fmt.Fprintf(out, "Actions (source: %s)\n", cat.Source())
				_, _ = fmt.Fprintln(tw, "TARGET\tACTIONS")
				for _, t := range cat.Targets() {
					names := make([]string, 0)
					for _, ac := range cat.Actions(t) {
						names = append(names, ac.Name)
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\n", t, strings.Join(names, ", "))
				}
				return tw.Flush()
			}

			result := a.pages.Remediation.Run(cmd.Context(), args[0], args[1], params)
			if err := printJSON(out, result); err != nil {
				return err
			}
			if msg, ok := result["error"]; ok {
				return fmt.Errorf("remediation failed: %v", msg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params, "params", "", `action parameters as JSON, e.g. '{"service":"api"}'`)
	cmd.Flags().BoolVar(&list, "list", false, "list the available targets and actions")
	return cmd
}

func auditCmd() *cobra.Command {
	var severity, search string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log (remediations and system events)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			a.pages.AuditLogs.SetFilter(severity, search)
			snap, err := a.snapshot(cmd.Context(), views.PageAuditLogs)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), snap.(views.AuditLogsSnapshot), printAudit)
		},
	}

	cmd.Flags().StringVar(&severity, "severity", views.SeverityAll, "filter by severity: all, info, warn, error")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive search in service, action and user")
	return cmd
}

func printAudit(w io.Writer, s views.AuditLogsSnapshot) error {
	printMetaError(w, s.Meta)
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "TIME\tSEVERITY\tSERVICE\tACTION\tUSER")
	for _, r := range s.Records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp, r.Severity, r.Service, r.Action, r.User)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "%d of %d records\n", len(s.Records), s.Total)
	return nil
}

func anomaliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List detected anomalies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showPage(cmd, views.PageAnomalies, printAnomalies)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "remediate <type> <action>",
		Short: "Trigger infrastructure remediation for an anomaly type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			result := a.pages.Anomalies.Remediate(cmd.Context(), args[0], args[1])
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if msg, ok := result["error"]; ok {
				return fmt.Errorf("remediation failed: %v", msg)
			}
			return nil
		},
	})
	return cmd
}

func printAnomalies(w io.Writer, s views.AnomaliesSnapshot) error {
	printMetaError(w, s.Meta)
	r := s.Report
	_, _ = fmt.Fprintf(w, "Window %d samples, CPU %.1f%%, memory %.1f%%\n", r.WindowSize, r.CPULatest, r.MemLatest)
	if len(r.Anomalies) == 0 {
		_, _ = fmt.Fprintln(w, "No anomalies detected.")
		return nil
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "TYPE\tVALUE\tMEAN\tTHRESHOLD\tTIME\tSUGGESTED")
	for _, an := range r.Anomalies {
		_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n", an.Type, an.Value, an.Mean, an.Threshold, an.Time, an.Remediation)
	}
	return tw.Flush()
}

// --- settings / integrations ---

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show backend settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every settings tab",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showPage(cmd, views.PageSettings, printSettings)
		},
	})
	return cmd
}

func printSettings(w io.Writer, s views.SettingsSnapshot) error {
	printMetaError(w, s.Meta)
	demo := func(tab string) string {
		if s.Demo[tab] {
			return " (demo data)"
		}
		return ""
	}
	_, _ = fmt.Fprintf(w, "General%s: company %q, theme %s, notifications %t\n",
		demo("general"), s.General.CompanyName, s.General.Theme, s.General.NotificationsEnabled)
	_, _ = fmt.Fprintf(w, "Network%s: private %t, CIDRs %s\n",
		demo("network"), s.Network.AllowPrivate, strings.Join(s.Network.AllowedCIDRs, ", "))
	_, _ = fmt.Fprintf(w, "Compliance%s: HIPAA %t, GDPR %t, SOC2 %t\n",
		demo("compliance"), s.Compliance.HIPAA, s.Compliance.GDPR, s.Compliance.SOC2)

	tw := newTable(w)
	_, _ = fmt.Fprintf(tw, "\nROLES%s\t\n", demo("roles"))
	for _, r := range s.Roles {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.User, r.Role)
	}
	_, _ = fmt.Fprintf(tw, "\nAPI KEYS%s\t\n", demo("api_keys"))
	for _, k := range s.APIKeys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Name, k.Provider, k.KeyHint)
	}
	return tw.Flush()
}

func integrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Manage provider integrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured integrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showPage(cmd, views.PageIntegrations, printIntegrations)
		},
	})

	var region, credentials string
	add := &cobra.Command{
		Use:   "add <provider>",
		Short: "Connect a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			in, err := a.pages.Integrations.Add(cmd.Context(), models.IntegrationRequest{
				Provider: args[0], Region: region, Credentials: credentials,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Integration %s (%s) %s.\n", in.ID, in.Provider, in.Status)
			return nil
		},
	}
	add.Flags().StringVar(&region, "region", "", "provider region")
	add.Flags().StringVar(&credentials, "credentials", "", "provider credentials")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Disconnect an integration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDefault(cmd)
			if err != nil {
				return err
			}
			return a.pages.Integrations.Delete(cmd.Context(), args[0])
		},
	})
	return cmd
}

func printIntegrations(w io.Writer, s views.IntegrationsSnapshot) error {
	printMetaError(w, s.Meta)
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tPROVIDER\tKIND\tREGION\tSTATUS\tCREATED")
	for _, in := range s.Integrations {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", in.ID, in.Provider, in.Kind, in.Region, in.Status, ago(in.CreatedAt))
	}
	return tw.Flush()
}

// --- theme / prefs ---

func themeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Get or set the dashboard theme",
	}

	withProvider := func(cmd *cobra.Command, fn func(context.Context, *theme.Provider) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck // best-effort cleanup
		return fn(ctx, theme.NewProvider(ctx, store, theme.Theme(cfg.UI.DefaultTheme), logger))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current theme",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProvider(cmd, func(_ context.Context, p *theme.Provider) error {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p.Theme())
				return nil
			})
		},
	})

	valid := make([]string, 0, len(theme.All()))
	for _, t := range theme.All() {
		valid = append(valid, string(t))
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "set <theme>",
		Short:     "Change the theme (" + strings.Join(valid, ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: valid,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProvider(cmd, func(ctx context.Context, p *theme.Provider) error {
				if err := p.Set(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s (class %s).\n", p.Theme(), theme.CSSClass(p.Theme()))
				return nil
			})
		},
	})
	return cmd
}

func prefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Show stored dashboard preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			keys, err := store.Keys(ctx)
			if err != nil {
				return err
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			size := "unknown"
			if info, err := os.Stat(cfg.Storage.Path); err == nil {
				size = formatBytes(info.Size())
			}
			_, _ = fmt.Fprintf(out, "Preferences: %s (%s)\n\n", cfg.Storage.Path, size)

			tw := newTable(out)
			_, _ = fmt.Fprintln(tw, "KEY\tVALUE\tUPDATED")
			for _, k := range keys {
				v, _ := store.Get(ctx, k)
				updated := ""
				if t, err := store.UpdatedAt(ctx, k); err == nil {
					updated = humanize.Time(t)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", k, v, updated)
			}
			return tw.Flush()
		},
	}
}
