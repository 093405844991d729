package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"txmgr/pkg/config"
	"txmgr/pkg/logging"
	"txmgr/pkg/sim"
)

var (
	Version = "dev"
	Commit  = "none"
)

var (
	configPath  string
	reportPath  string
	metricsAddr string

	rootCmd = &cobra.Command{
		Use:           "tmsim",
		Short:         "Exercise the transaction manager with a concurrent workload",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a randomized counter workload and verify conservation",
		Long: `Run starts one worker per configured thread. Each worker runs transactions
that add random deltas to shared counters. Deadlock victims roll back and retry.

Configuration is read from --config (YAML) and then from TMSIM_* environment
variables, for example TMSIM_WORKERS=16 or TMSIM_LOG_LEVEL=debug.`,
		RunE: runWorkload,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tmsim version %s (commit: %s)\n", Version, Commit)
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	runCmd.Flags().StringVar(&reportPath, "report", "", `write the JSON report to this file ("-" for stdout)`)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address while running")

	rootCmd.AddCommand(runCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runWorkload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logging.Init(cfg.Logging); err != nil {
		return err
	}
	defer logging.Close()

	runner, err := sim.NewRunner(*cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           sim.Handler(runner.Collector(), runner.Manager()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.WithComponent("exporter").Error("metrics server failed", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	report, runErr := runner.Run(ctx)
	if report != nil {
		printSummary(cmd.OutOrStdout(), report)
		if err := writeReport(cmd.OutOrStdout(), report); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func writeReport(stdout io.Writer, report *sim.Report) error {
	switch reportPath {
	case "":
		return nil
	case "-":
		return report.WriteJSON(stdout)
	default:
		return report.Save(reportPath)
	}
}

// printSummary renders the headline numbers of a run in a bordered box.
func printSummary(w io.Writer, report *sim.Report) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)
	label := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Width(20)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7C3AED")).
		Padding(0, 2)

	verdict := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render("conserved")
	if !report.Conserved {
		verdict = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Render("NOT conserved")
	}

	rows := []struct {
		name  string
		value string
	}{
		{"Run", report.RunID},
		{"Duration", report.Duration.Round(time.Millisecond).String()},
		{"Committed", fmt.Sprint(report.Counts.Committed)},
		{"Rolled back", fmt.Sprint(report.Counts.RolledBack)},
		{"Aborted (retried)", fmt.Sprint(report.Counts.Aborted)},
		{"Gave up", fmt.Sprint(report.Counts.GaveUp)},
		{"Deadlocks", fmt.Sprint(report.Deadlocks)},
		{"Throughput", fmt.Sprintf("%.0f commits/sec", report.Throughput)},
		{"Commit p50 / p99", fmt.Sprintf("%s / %s", report.Latency.Median, report.Latency.P99)},
		{"Balance", fmt.Sprintf("%d (expected %d) %s", report.ActualTotal, report.ExpectedTotal, verdict)},
	}

	var b strings.Builder
	b.WriteString(title.Render("tmsim run summary"))
	b.WriteString("\n\n")
	for i, row := range rows {
		b.WriteString(label.Render(row.name))
		b.WriteString(row.value)
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}

	fmt.Fprintln(w, box.Render(b.String()))
}
