package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/grovetools/scribe/cli"
	"github.com/grovetools/scribe/config"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/paths"
)

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the resolved scribe directories and files",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := []struct {
				Name string `json:"name"`
				Path string `json:"path"`
			}{
				{"config", paths.ConfigDir()},
				{"config_file", config.FindConfigFile(cli.GetOptions(cmd).ConfigFile)},
				{"data", paths.DataDir()},
				{"state", paths.StateDir()},
				{"runtime", paths.RuntimeDir()},
				{"socket", paths.SocketPath()},
				{"settings", paths.SettingsFile()},
			}

			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(resolved)
			}
			p := logging.NewPrinter(cmd.OutOrStdout())
			for _, r := range resolved {
				if r.Path == "" {
					r.Path = "(none)"
				}
				p.Field(r.Name, r.Path)
			}
			return nil
		},
	}
}
