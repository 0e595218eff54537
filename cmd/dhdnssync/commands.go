package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/dhdnssync/internal/config"
	"gitlab.bluewillows.net/root/dhdnssync/internal/history"
	"gitlab.bluewillows.net/root/dhdnssync/providers/dreamhost"
)

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile on every update interval until stopped",
		Long: `Run the reconciliation daemon. A cycle runs immediately and then once per
update interval until SIGINT or SIGTERM. Health and metrics are served on
the configured port:

  /health   liveness
  /ready    readiness (ready once the first cycle finished)
  /metrics  Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDaemon(cmd.Context())
		},
	}
}

func (a *app) onceCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single reconciliation cycle and print the outcome",
		Long: `Run exactly one reconciliation cycle and print a summary.

Exits non-zero when the cycle aborted or any record failed.

Example:
  dhdnssync once --dry-run -c config.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(a.stderr, cfg.LogLevel, cfg.LogFormat)

			unlock, err := acquireLock(cfg.LockFile)
			if err != nil {
				return err
			}
			defer unlock()

			rec, cleanup, err := a.reconcilerFor(cfg, logger, dryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := rec.Reconcile(cmd.Context())
			if result != nil {
				fmt.Fprint(cmd.OutOrStdout(), result.Summary())
			}
			if err != nil {
				return err
			}
			if result.HasErrors() {
				return fmt.Errorf("%d record actions failed", result.FailedCount())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log intended changes without calling add or remove")

	return cmd
}

func (a *app) recordsCommand() *cobra.Command {
	var zoneFilter string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List the records currently held by DreamHost",
		Long: `List every DNS record on the account, optionally limited to one zone.

Example:
  dhdnssync records --zone example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(config.AllowNoZones())
			if err != nil {
				return err
			}
			logger := setupLogger(a.stderr, cfg.LogLevel, cfg.LogFormat)

			records, err := a.providerClient(cfg, logger).ListRecords(cmd.Context())
			if err != nil {
				return err
			}

			zoneFilter = strings.TrimSuffix(strings.ToLower(zoneFilter), ".")
			if zoneFilter != "" {
				records = slices.DeleteFunc(records, func(r dreamhost.Record) bool {
					return !strings.EqualFold(r.Zone, zoneFilter)
				})
			}

			slices.SortStableFunc(records, func(x, y dreamhost.Record) int {
				if c := strings.Compare(x.Zone, y.Zone); c != 0 {
					return c
				}
				if c := strings.Compare(x.Record, y.Record); c != 0 {
					return c
				}
				return strings.Compare(x.Type, y.Type)
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ZONE\tRECORD\tTYPE\tVALUE\tEDITABLE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Zone, r.Record, r.Type, r.Value, editable(r.Editable))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&zoneFilter, "zone", "", "Only show records in this zone")

	return cmd
}

func editable(v string) string {
	if v == "1" {
		return "yes"
	}
	return "no"
}

func (a *app) publicIPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "public-ip",
		Short: "Print the public address as seen by the echo services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(config.AllowNoZones(), config.AllowNoAPIKey())
			if err != nil {
				return err
			}
			logger := setupLogger(a.stderr, cfg.LogLevel, cfg.LogFormat)

			res, err := a.addressResolver(cfg, logger)
			if err != nil {
				return err
			}

			addr, err := res.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK")
			return nil
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently recorded reconciliation cycles",
		Long: `Show the most recent cycles recorded in the history database, newest
first, with every add and remove they performed.

History must be enabled with history.path or ` + config.EnvPrefix + `HISTORY_PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(config.AllowNoZones(), config.AllowNoAPIKey())
			if err != nil {
				return err
			}
			if cfg.HistoryPath == "" {
				return fmt.Errorf("history is disabled: set history.path or %sHISTORY_PATH", config.EnvPrefix)
			}
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}

			store, err := history.OpenAt(cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			cycles, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(cycles) == 0 {
				fmt.Fprintln(out, "No cycles recorded.")
				return nil
			}

			for _, c := range cycles {
				mode := ""
				if c.DryRun {
					mode = " (dry-run)"
				}
				fmt.Fprintf(out, "#%d %s%s address=%s +%d -%d failed=%d (%s)\n",
					c.ID, c.StartedAt.Local().Format(time.DateTime), mode, valueOrDash(c.Address),
					c.Added, c.Removed, c.Failed, c.FinishedAt.Sub(c.StartedAt).Round(time.Millisecond))
				for _, ch := range c.Changes {
					line := fmt.Sprintf("    [%s] %s %s %s %q", ch.Status, ch.Phase, ch.Name, ch.Type, ch.Value)
					if ch.Error != "" {
						line += ": " + ch.Error
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of cycles to show")

	return cmd
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
