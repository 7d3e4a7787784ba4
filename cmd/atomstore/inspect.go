package main

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/atoms/internal/errors"
	"github.com/vango-dev/atoms/pkg/devtools"
)

func inspectCmd(a *app) *cobra.Command {
	var (
		addr  string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <scenario.yaml>",
		Short: "Run a scenario and serve the devtools inspector",
		Long: `Inspect runs a scenario, keeps every atom mounted and serves the store
over HTTP until interrupted: JSON snapshots, the dependency graph, a
WebSocket event stream and Prometheus metrics.

Examples:
  atomstore inspect counter.yaml
  atomstore inspect counter.yaml --addr :9000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			store := a.newStore(prog.Name(), a.newMetrics(reg))
			defer store.Close()

			srv := devtools.New(store,
				devtools.WithGatherer(reg),
				devtools.WithLogger(a.logger.With("component", "devtools")),
			)
			defer srv.Close()

			var out io.Writer = a.out
			if quiet {
				out = io.Discard
			}
			if _, err := prog.Run(cmd.Context(), store, out); err != nil {
				return err
			}
			release := prog.MountAll(store)
			defer release()

			if addr == "" {
				addr = a.cfg.Inspector.Addr
			}
			ready := make(chan string, 1)
			defer close(ready)
			go func() {
				if bound, ok := <-ready; ok {
					success(a.out, "Inspector for %s", prog.Name())
					keyValue(a.out, "atoms", "http://"+bound+"/atoms")
					keyValue(a.out, "graph", "http://"+bound+"/graph.svg")
					keyValue(a.out, "events", "ws://"+bound+"/events")
					keyValue(a.out, "metrics", "http://"+bound+"/metrics")
				}
			}()
			if err := srv.ListenAndServe(cmd.Context(), addr, ready); err != nil {
				return errors.New("A141").Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print step output")

	return cmd
}
