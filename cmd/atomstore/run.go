package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/atoms/pkg/atom"
)

func runCmd(a *app) *cobra.Command {
	var (
		asJSON      bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print every step",
		Long: `Run executes the steps of a scenario against a fresh store.

Each step prints one line. Subscribed atoms print an indented notify
line whenever a write changes them.

Examples:
  atomstore run counter.yaml
  atomstore run counter.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			var metrics *atom.Metrics
			if showMetrics || a.cfg.Metrics.Enabled {
				metrics = a.newMetrics(reg)
			}
			store := a.newStore(prog.Name(), metrics)
			defer store.Close()

			out := a.out
			if asJSON {
				out = cmd.ErrOrStderr()
			}
			report, err := prog.Run(cmd.Context(), store, out)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintln(a.out)
			success(a.out, "%s: %d steps in %s", report.Name, report.Steps, report.Duration.Round(time.Microsecond))
			keyValue(a.out, "notifications", report.TotalNotifications())
			if report.Errors > 0 {
				warn(a.out, "%d get(s) returned an error", report.Errors)
			}
			names := make([]string, 0, len(report.Final))
			for name := range report.Final {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				keyValue(a.out, name, report.Final[name])
			}
			if metrics != nil {
				fmt.Fprintln(a.out)
				return printMetrics(a.out, reg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON; step output goes to stderr")
	cmd.Flags().BoolVarP(&showMetrics, "metrics", "m", false, "Print store metrics after the run")

	return cmd
}

// printMetrics prints every counter and gauge sample gathered from g.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				keyValue(w, name, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				keyValue(w, name, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				keyValue(w, name, fmt.Sprintf("%d samples", m.GetHistogram().GetSampleCount()))
			}
		}
	}
	return nil
}
