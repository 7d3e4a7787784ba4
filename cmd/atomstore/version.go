package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCmd(a *app) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print version, commit, and build information for the atomstore CLI.`,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(a.out, version)
				return
			}

			a.printBanner()
			fmt.Fprintln(a.out)
			keyValue(a.out, "Version:", version)
			keyValue(a.out, "Commit:", commit)
			keyValue(a.out, "Built:", date)
			keyValue(a.out, "Go version:", runtime.Version())
			keyValue(a.out, "OS/Arch:", runtime.GOOS+"/"+runtime.GOARCH)
			fmt.Fprintln(a.out)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
