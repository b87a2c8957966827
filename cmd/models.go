package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/grovetools/scribe/cli"
	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/models"
	"github.com/grovetools/scribe/pkg/settings"
	scribesync "github.com/grovetools/scribe/pkg/sync"
)

func NewModelsCmd() *cobra.Command {
	var (
		selectModel string
		download    bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List speech-to-text models and choose the one used for transcription",
		Example: `scribectl models
scribectl models --select small --download
scribectl downloads --follow --start small`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			ctx := cmd.Context()
			p := logging.NewPrinter(cmd.OutOrStdout())

			if selectModel != "" {
				model := models.SpeechToTextModel(selectModel)
				if !model.IsValid() {
					return errors.InvalidInput("model", "unknown speech-to-text model "+selectModel)
				}
				if client.Settings == nil {
					return errors.New(errors.KindIOError, "no settings file configured")
				}
				if err := client.Settings.Set(settings.KeySpeechToTextModel, string(model)); err != nil {
					return err
				}
				p.Success("Selected " + selectModel)
			}
			if download {
				model := models.SpeechToTextModel(client.SpeechToTextModel())
				if model == "" {
					return errors.InvalidInput("model", "no model selected; use --select")
				}
				if err := client.Downloads.DownloadModel(ctx, model); err != nil {
					return err
				}
				p.Success("Download of " + string(model) + " started")
				return nil
			}

			infos, err := client.Catalog.SpeechToTextModels(ctx)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(infos)
			}
			printModels(cmd.OutOrStdout(), infos, client.SpeechToTextModel())
			return nil
		},
	}

	cmd.Flags().StringVar(&selectModel, "select", "", "Store this model in the speech_to_text_model setting")
	cmd.Flags().BoolVar(&download, "download", false, "Ask the backend to download the selected model")
	cmd.AddCommand(newModelsTextCmd(), newModelsSetKeyCmd())
	return cmd
}

func newModelsTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text",
		Short: "List text generation models of the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			list, err := client.Catalog.TextGenerationModels(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(list)
			}
			for _, m := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s  %s\n", m.ID, m.Name)
			}
			return nil
		},
	}
}

func newModelsSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <provider> <api-key>",
		Short: "Store the API key of a text generation provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			valid, err := client.Catalog.SetTextGenerationAPIKey(cmd.Context(), models.TextGenerationProvider(args[0]), args[1])
			if err != nil {
				return err
			}
			p := logging.NewPrinter(cmd.OutOrStdout())
			if !valid {
				p.Warn("Key stored, but " + args[0] + " rejected it")
				return nil
			}
			p.Success("Key accepted by " + args[0])
			return nil
		},
	}
}

func NewLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the languages a recording can be summarized in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			langs, err := client.Catalog.Languages(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(langs)
			}
			for _, l := range langs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s  %s\n", l.Code, l.DisplayName)
			}
			return nil
		},
	}
}

func dialClient(cmd *cobra.Command) (*scribesync.Client, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return scribesync.Dial(cmd.Context(), cfg)
}

func printModels(w io.Writer, infos []models.SpeechToTextModelInfo, selected string) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No models")
		return
	}
	fmt.Fprintf(w, "  %-12s  %10s\n", "MODEL", "SIZE")
	for _, info := range infos {
		marker := " "
		if string(info.Model) == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-12s  %10s\n", marker, info.Model, formatBytes(info.Size))
	}
}
