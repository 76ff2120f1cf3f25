package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clinic-deploy/internal/probe"
)

// probeCmd はクリニックAPIのプローブコマンド。
func probeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the clinic API",
	}
	cmd.AddCommand(probeRunCmd())
	cmd.AddCommand(probeListCmd())
	return cmd
}

func probeRunCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run probe scenarios (all when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := probe.Env{
				BaseURL: cfg.ProbeBaseURL,
				Timeout: cfg.ProbeTimeout,
				Creds:   probe.Credentials{Email: cfg.ProbeEmail, Password: cfg.ProbePassword},
			}
			if baseURL != "" {
				env.BaseURL = baseURL
			}
			if cmd.Flags().Changed("timeout") {
				env.Timeout = timeout
			}

			fmt.Printf("Probing %s\n", env.BaseURL)
			report := probe.NewRunner(env).Run(cmd.Context(), args...)
			printProbeReport(os.Stdout, report)

			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d scenarios failed", len(failed), len(report.Results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Clinic API base URL, overrides PROBE_BASE_URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout, overrides PROBE_TIMEOUT")
	return cmd
}

func probeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List probe scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, s := range probe.Scenarios() {
				fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Description)
			}
			return w.Flush()
		},
	}
}

// printProbeReport はシナリオごとにPASS/FAILを出力する。
func printProbeReport(out io.Writer, report *probe.Report) {
	for _, res := range report.Results {
		d := res.Duration.Round(time.Millisecond)
		if res.Passed() {
			fmt.Fprintf(out, "PASS  %s (%s)\n", res.Name, d)
			continue
		}
		fmt.Fprintf(out, "FAIL  %s (%s)\n", res.Name, d)
		if res.Err != nil {
			fmt.Fprintf(out, "      %v\n", res.Err)
		}
		if res.CleanupErr != nil {
			fmt.Fprintf(out, "      %v\n", res.CleanupErr)
		}
	}
	passed := len(report.Results) - len(report.Failed())
	fmt.Fprintf(out, "\n%d/%d scenarios passed\n", passed, len(report.Results))
}
