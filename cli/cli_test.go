package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/version"
)

func TestGetOptions(t *testing.T) {
	cmd := NewStandardCommand("scribectl", "test")
	require.NoError(t, cmd.ParseFlags([]string{"-v", "--json", "-c", "/tmp/scribe.yml"}))

	opts := GetOptions(cmd)
	assert.Equal(t, CommandOptions{ConfigFile: "/tmp/scribe.yml", Verbose: true, JSONOutput: true}, opts)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scribe.yml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  address: 127.0.0.1:9\nerrors:\n  ttl: 2s\n"), 0o644))

	cmd := NewStandardCommand("scribectl", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

	cfg, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9", cfg.Backend.Address)
	assert.Equal(t, "2s", cfg.Errors.TTL.String())
}

func TestLoadConfig_MissingExplicit(t *testing.T) {
	cmd := NewStandardCommand("scribectl", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yml")}))

	_, err := LoadConfig(cmd)
	assert.Equal(t, errors.KindIOError, errors.GetKind(err))
}

func TestErrorHandler(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.NetworkError("get_downloads", fmt.Errorf("connection refused")), "Cannot reach the scribe backend"},
		{errors.New(errors.KindNotFound, "summary s1"), "Not found"},
		{errors.InvalidInput("model", "unknown"), "Invalid input"},
		{errors.New(errors.KindDatabaseError, "locked"), "database"},
		{fmt.Errorf("plain"), "Error"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		returned := NewErrorHandlerTo(&buf, false).Handle(tc.err)
		assert.Equal(t, tc.err, returned)
		assert.Contains(t, buf.String(), tc.want)
	}

	assert.NoError(t, NewErrorHandlerTo(&bytes.Buffer{}, false).Handle(nil))
}

func TestErrorHandler_VerboseShowsDetails(t *testing.T) {
	var buf bytes.Buffer
	err := errors.New(errors.KindDatabaseError, "locked").WithDetail("table", "chats")
	NewErrorHandlerTo(&buf, true).Handle(err)
	assert.Contains(t, buf.String(), `"table": "chats"`)
}

func TestErrorHandler_CommandUsageHint(t *testing.T) {
	root := NewStandardCommand("scribectl", "test")
	root.AddCommand(&cobra.Command{
		Use:  "get <key>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.NotFound("setting " + args[0])
		},
	})

	var stderr, handled bytes.Buffer
	root.SetErr(&stderr)
	root.SetArgs([]string{"get"})
	failed, err := root.ExecuteC()
	require.Error(t, err)

	NewErrorHandlerTo(&handled, false).HandleCommand(failed, err)
	assert.Contains(t, stderr.String(), "Run 'scribectl get --help' for usage.")
	assert.Empty(t, handled.String())

	stderr.Reset()
	root.SetArgs([]string{"get", "theme"})
	failed, err = root.ExecuteC()
	require.Error(t, err)

	NewErrorHandlerTo(&handled, false).HandleCommand(failed, err)
	assert.Contains(t, handled.String(), "Not found")
	assert.Empty(t, stderr.String())
}

func TestVersionCommand_JSON(t *testing.T) {
	root := NewStandardCommand("scribectl", "test")
	root.AddCommand(NewVersionCommand("scribectl"))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())

	var info version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestRenderHelp(t *testing.T) {
	root := NewStandardCommand("scribectl", "Inspect the scribe backend")
	root.AddCommand(&cobra.Command{Use: "call", Short: "Invoke a backend command", Run: func(*cobra.Command, []string) {}})

	var out bytes.Buffer
	renderHelp(&out, root, 60)
	help := out.String()
	assert.Contains(t, help, "SCRIBECTL")
	assert.Contains(t, help, "call")
	assert.Contains(t, help, "--verbose")
	assert.Contains(t, help, `Use "scribectl [command] --help"`)
}

func TestWrapText(t *testing.T) {
	wrapped := wrapText("one two three four five", 9)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 9)
	}
	assert.Equal(t, "a\nb", wrapText("a\nb", 10))
}
