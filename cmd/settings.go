package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/scribe/cli"
	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/settings"
)

func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write user settings",
	}
	cmd.AddCommand(newSettingsGetCmd(), newSettingsSetCmd())
	return cmd
}

func openSettings(cmd *cobra.Command) (*settings.Store, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return settings.Open(cfg.Settings.Path)
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings(cmd)
			if err != nil {
				return err
			}
			jsonOut := cli.GetOptions(cmd).JSONOutput

			if len(args) == 1 {
				v, ok := store.Get(args[0])
				if !ok {
					return errors.NotFound("setting " + args[0])
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}

			all := make(map[string]interface{})
			for _, k := range store.Keys() {
				all[k], _ = store.Get(k)
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(all)
			}
			p := logging.NewPrinter(cmd.OutOrStdout())
			for _, k := range store.Keys() {
				p.Field(k, all[k])
			}
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Store a setting; the value is parsed as a YAML scalar",
		Example: "scribectl settings set setup_complete true\nscribectl settings set speech_to_text_model small",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings(cmd)
			if err != nil {
				return err
			}
			var value interface{}
			if err := yaml.Unmarshal([]byte(args[1]), &value); err != nil || value == nil {
				value = args[1]
			}
			if err := store.Set(args[0], value); err != nil {
				return err
			}
			logging.NewPrinter(cmd.OutOrStdout()).Success(fmt.Sprintf("%s = %v", args[0], value))
			return nil
		},
	}
}
