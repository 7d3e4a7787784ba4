package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/atoms/internal/errors"
	"github.com/vango-dev/atoms/pkg/atom"
)

// benchResult summarizes a bench run.
type benchResult struct {
	Stores        int
	Depth         int
	Writes        int
	Notifications int64
	Elapsed       time.Duration
}

func (r benchResult) writesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Stores*r.Writes) / r.Elapsed.Seconds()
}

func benchCmd(a *app) *cobra.Command {
	var stores, depth, writes int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive independent stores through a derived chain concurrently",
		Long: `Bench creates one store per goroutine. Each store holds a primitive atom
and a chain of derived atoms, each adding one to the previous, with a
listener on the end of the chain. Every write must propagate through the
whole chain and notify the listener exactly once.

Examples:
  atomstore bench
  atomstore bench --stores 32 --depth 64 --writes 10000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stores <= 0 {
				stores = a.cfg.Bench.Stores
			}
			if depth <= 0 {
				depth = a.cfg.Bench.Depth
			}
			if writes <= 0 {
				writes = a.cfg.Bench.Writes
			}

			reg := prometheus.NewRegistry()
			res, err := a.runBench(cmd.Context(), a.newMetrics(reg), stores, depth, writes)
			if err != nil {
				return errors.FromError(err, "A143")
			}

			success(a.out, "bench: %d stores × %d writes through %d derived atoms", res.Stores, res.Writes, res.Depth)
			keyValue(a.out, "elapsed", res.Elapsed.Round(time.Millisecond))
			keyValue(a.out, "writes/s", fmt.Sprintf("%.0f", res.writesPerSecond()))
			keyValue(a.out, "notifications", res.Notifications)
			return printMetrics(a.out, reg)
		},
	}

	cmd.Flags().IntVar(&stores, "stores", 0, "Number of concurrent stores (default from config)")
	cmd.Flags().IntVar(&depth, "depth", 0, "Length of the derived chain (default from config)")
	cmd.Flags().IntVar(&writes, "writes", 0, "Writes per store (default from config)")

	return cmd
}

// runBench builds the chain once and runs it against stores isolated stores.
// The atoms are shared: each store keeps its own values.
func (a *app) runBench(ctx context.Context, m *atom.Metrics, stores, depth, writes int) (benchResult, error) {
	base := atom.NewValue(0).Named("base")
	var leaf atom.Atom[int] = base
	for i := 0; i < depth; i++ {
		prev := leaf
		leaf = atom.NewComputed(func(get atom.Getter) (int, error) {
			v, err := atom.Get(get, prev)
			return v + 1, err
		}).Named(fmt.Sprintf("level%d", i+1))
	}

	var notifications atomic.Int64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < stores; i++ {
		label := fmt.Sprintf("bench-%d", i)
		g.Go(func() error {
			s := a.newStore(label, m)
			defer s.Close()

			var last int
			unsubscribe := atom.Watch(s, leaf, func(v int, _ error) {
				notifications.Add(1)
				last = v
			})
			defer unsubscribe()

			for w := 1; w <= writes; w++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := atom.Set(s, base, w); err != nil {
					return fmt.Errorf("%s: %w", label, err)
				}
			}
			if want := writes + depth; writes > 0 && last != want {
				return fmt.Errorf("%s: leaf is %d, want %d", label, last, want)
			}
			return nil
		})
	}
	err := g.Wait()

	return benchResult{
		Stores:        stores,
		Depth:         depth,
		Writes:        writes,
		Notifications: notifications.Load(),
		Elapsed:       time.Since(start),
	}, err
}
