package profiling

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_DisabledRecordsNothing(t *testing.T) {
	r := &Recorder{}
	r.Start("x").Stop()

	var buf bytes.Buffer
	r.Summarize(&buf)
	assert.Empty(t, buf.String())
}

func TestRecorder_ConcurrentSpans(t *testing.T) {
	r := &Recorder{}
	r.Enable()

	var wg sync.WaitGroup
	for _, name := range []string{"downloads", "summaries", "progress"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s := r.Start(name)
			s.Stop()
			s.Stop()
		}(name)
	}
	wg.Wait()

	var buf bytes.Buffer
	r.Summarize(&buf)
	out := buf.String()
	assert.Contains(t, out, "- downloads")
	assert.Contains(t, out, "- summaries")
	assert.Contains(t, out, "- progress")
	assert.Len(t, r.spans, 3)
}

func TestCobraProfiler_WritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.out")
	mem := filepath.Join(dir, "mem.out")

	root := &cobra.Command{Use: "scribectl", Run: func(*cobra.Command, []string) {}}
	NewCobraProfiler().Attach(root)

	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.SetArgs([]string{"--cpu-profile", cpu, "--mem-profile", mem})
	require.NoError(t, root.Execute())

	assert.FileExists(t, cpu)
	assert.FileExists(t, mem)
}
