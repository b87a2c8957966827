package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/scribe/cli"
	"github.com/grovetools/scribe/internal/backendtest"
	"github.com/grovetools/scribe/pkg/models"
	"github.com/grovetools/scribe/pkg/reconcile"
	scribesync "github.com/grovetools/scribe/pkg/sync"
)

func TestFormatDownload(t *testing.T) {
	line := formatDownload(models.Download{
		ID:            "d1",
		Name:          "ggml-base.bin",
		Size:          200,
		ProgressBytes: 50,
		Status:        models.DownloadError,
		StatusReason:  "Checksum mismatch",
	})
	assert.Contains(t, line, "error (Checksum mismatch)")
	assert.Contains(t, line, "25.0%")
	assert.True(t, strings.HasSuffix(line, "ggml-base.bin"))
}

func TestPrintDownloads_Empty(t *testing.T) {
	var buf bytes.Buffer
	printDownloads(&buf, nil)
	assert.Equal(t, "No downloads\n", buf.String())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2*1024*1024))
}

func TestDownloadsModel_AppliesSnapshots(t *testing.T) {
	m := &downloadsModel{bar: progress.New(progress.WithWidth(20)), help: help.New()}
	snap := reconcile.NewCollection(models.Download{ID: "d1", Name: "base", Status: models.DownloadDownloading, Size: 10, ProgressBytes: 5})

	next, cmd := m.Update(snapshotMsg(snap))
	assert.NotNil(t, cmd)
	view := next.View()
	assert.Contains(t, view, "base")
	assert.Contains(t, view, "downloading")

	_, cmd = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf, []models.SpeechToTextModelInfo{
		{Model: models.ModelTiny, Size: 42 * 1024 * 1024},
		{Model: models.ModelSmall, Size: 3 * 1024 * 1024 * 1024},
	}, "small")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "  tiny"))
	assert.Contains(t, lines[1], "42.0 MiB")
	assert.True(t, strings.HasPrefix(lines[2], "* small"))
	assert.Contains(t, lines[2], "3.0 GiB")

	buf.Reset()
	printModels(&buf, nil, "")
	assert.Equal(t, "No models\n", buf.String())
}

func TestModelsCmd_SelectThenList(t *testing.T) {
	t.Setenv("SCRIBE_HOME", t.TempDir())
	t.Setenv("SCRIBE_CONFIG", "")
	t.Setenv("SCRIBE_SOCKET", "")

	srv := backendtest.New(t)
	srv.Reply(scribesync.CmdGetSpeechToTextModels, []models.SpeechToTextModelInfo{
		{Model: models.ModelBase, Size: 1024},
		{Model: models.ModelSmall, Size: 2048},
	})
	srv.Reply(scribesync.CmdDownloadModel, nil)
	t.Setenv("SCRIBE_ADDRESS", srv.URL)

	run := func(args ...string) string {
		root := cli.NewStandardCommand("scribectl", "test")
		root.AddCommand(NewModelsCmd())
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(args)
		require.NoError(t, root.ExecuteContext(context.Background()))
		return out.String()
	}

	run("models", "--select", "small", "--download")
	calls := srv.CallsTo(scribesync.CmdDownloadModel)
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"model":"small"}`, string(calls[0].Args))

	out := run("models")
	assert.Contains(t, out, "* small")
	assert.Contains(t, out, "  base")
}
