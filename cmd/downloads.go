package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/scribe/cli"
	"github.com/grovetools/scribe/pkg/models"
	"github.com/grovetools/scribe/pkg/reconcile"
	scribesync "github.com/grovetools/scribe/pkg/sync"
)

func NewDownloadsCmd() *cobra.Command {
	var (
		follow      bool
		tui         bool
		metricsAddr string
		model       string
	)

	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "List backend downloads, optionally following their progress",
		Example: `scribectl downloads
scribectl downloads --follow
scribectl downloads --tui --start base`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			log := cli.GetLogger(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := scribesync.Dial(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: client.Metrics.Handler()}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.WithError(err).Warn("Metrics endpoint stopped")
					}
				}()
				defer srv.Close()
			}

			if err := client.Downloads.Start(ctx); err != nil {
				return err
			}
			if model != "" {
				if err := client.Downloads.DownloadModel(ctx, models.SpeechToTextModel(model)); err != nil {
					return err
				}
			}

			if tui {
				return runDownloadsTUI(ctx, client)
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				if !follow {
					return json.NewEncoder(out).Encode(client.Downloads.GetAll())
				}
				return followJSON(ctx, out, client.Downloads)
			}

			snap := client.Downloads.Snapshot()
			printDownloads(out, snap.All())
			if follow {
				return followText(ctx, out, client.Downloads, snap)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing updates until interrupted")
	cmd.Flags().BoolVar(&tui, "tui", false, "Show a live progress view")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().StringVar(&model, "start", "", "Ask the backend to download this speech-to-text model first")
	return cmd
}

func printDownloads(w io.Writer, downloads []models.Download) {
	if len(downloads) == 0 {
		fmt.Fprintln(w, "No downloads")
		return
	}
	fmt.Fprintf(w, "%-36s  %-12s  %6s  %s\n", "ID", "STATUS", "DONE", "NAME")
	for _, d := range downloads {
		fmt.Fprintln(w, formatDownload(d))
	}
}

func formatDownload(d models.Download) string {
	name := d.Name
	if name == "" {
		name = d.URL
	}
	status := string(d.Status)
	if d.StatusReason != "" {
		status += " (" + d.StatusReason + ")"
	}
	return fmt.Sprintf("%-36s  %-12s  %5.1f%%  %s", d.ID, status, d.Fraction()*100, name)
}

// followText prints one line per download changed since printed.
func followText(ctx context.Context, w io.Writer, downloads *scribesync.DownloadStore, printed reconcile.Collection[models.Download]) error {
	updates, cancel := downloads.Subscribe()
	defer cancel()

	seen := make(map[string]uint64)
	for _, d := range printed.All() {
		seen[d.ID], _ = printed.Revision(d.ID)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			for _, d := range snap.All() {
				rev, _ := snap.Revision(d.ID)
				if seen[d.ID] == rev {
					continue
				}
				seen[d.ID] = rev
				fmt.Fprintln(w, formatDownload(d))
			}
		}
	}
}

// followJSON prints every snapshot as one JSON line.
func followJSON(ctx context.Context, w io.Writer, downloads *scribesync.DownloadStore) error {
	updates, cancel := downloads.Subscribe()
	defer cancel()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := enc.Encode(snap.All()); err != nil {
				return err
			}
		}
	}
}
