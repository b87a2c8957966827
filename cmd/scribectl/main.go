package main

import (
	"os"

	"github.com/grovetools/scribe/cli"
	"github.com/grovetools/scribe/cmd"
	"github.com/grovetools/scribe/pkg/profiling"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"scribectl",
		"Debugging tool for the scribe backend: commands, event streams and settings",
	)

	profiling.NewCobraProfiler().Attach(rootCmd)

	rootCmd.AddCommand(cmd.NewCallCmd())
	rootCmd.AddCommand(cmd.NewDownloadsCmd())
	rootCmd.AddCommand(cmd.NewModelsCmd())
	rootCmd.AddCommand(cmd.NewLanguagesCmd())
	rootCmd.AddCommand(cmd.NewSettingsCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("scribectl"))

	if failed, err := rootCmd.ExecuteC(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(verbose).HandleCommand(failed, err)
		os.Exit(1)
	}
}
