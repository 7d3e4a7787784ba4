package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atoms/internal/errors"
	"github.com/vango-dev/atoms/pkg/devtools"
)

func graphCmd(a *app) *cobra.Command {
	var (
		format   string
		output   string
		runSteps bool
	)

	cmd := &cobra.Command{
		Use:   "graph <scenario.yaml>",
		Short: "Draw the dependency graph of a scenario",
		Long: `Graph mounts every atom of a scenario and prints the dependency graph
in Graphviz DOT, or renders it to SVG.

Examples:
  atomstore graph counter.yaml
  atomstore graph counter.yaml --run --format svg -o counter.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "dot" && format != "svg" {
				return errors.New("A142").WithDetail(fmt.Sprintf("unknown format %q, use dot or svg", format))
			}

			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}
			store := a.newStore(prog.Name(), nil)
			defer store.Close()

			if runSteps {
				if _, err := prog.Run(cmd.Context(), store, io.Discard); err != nil {
					return err
				}
			}
			release := prog.MountAll(store)
			defer release()

			data := []byte(devtools.DOT(store.Snapshot()))
			if format == "svg" {
				data, err = devtools.RenderSVG(cmd.Context(), string(data))
				if err != nil {
					return errors.New("A142").Wrap(err)
				}
			}

			if output == "" {
				_, err := a.out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return errors.New("A142").Wrap(err)
			}
			success(a.out, "Wrote %s graph", format)
			file(a.out, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "Output format: dot or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().BoolVar(&runSteps, "run", false, "Run the scenario steps first so values reflect its end state")

	return cmd
}
