package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/scribe/cli"
	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/pkg/backend"
	"github.com/grovetools/scribe/pkg/gateway"
)

func NewCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <command> [json-args]",
		Short: "Invoke a backend command and print its result",
		Example: `scribectl call get_summaries
scribectl call send_message '{"summaryId":"…","message":"What was decided?"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			var params interface{}
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.InvalidInput("json-args", "not valid JSON")
				}
				params = json.RawMessage(args[1])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout)
			defer cancel()

			conn, err := backend.Connect(ctx, cfg.Backend)
			if err != nil {
				return err
			}
			defer conn.Close()

			gw := gateway.New(conn, gateway.WithLogger(cli.GetLogger(cmd)), gateway.WithSuppress())
			raw, err := gw.Call(ctx, args[0], params)
			if err != nil {
				return err
			}
			return printJSON(cmd, raw)
		},
	}
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return errors.Wrap(err, errors.KindUnknown, "backend returned invalid JSON")
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}
