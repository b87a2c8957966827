package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
)

// CobraProfiler wires --cpu-profile, --mem-profile and --timing into a root
// command.
type CobraProfiler struct {
	cpuProfileFile *os.File
	cpuProfilePath string
	memProfilePath string
	timing         bool
}

func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// Attach adds the flags to cmd and installs the persistent pre/post hooks.
func (p *CobraProfiler) Attach(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&p.cpuProfilePath, "cpu-profile", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&p.memProfilePath, "mem-profile", "", "Write memory profile to file")
	cmd.PersistentFlags().BoolVar(&p.timing, "timing", false, "Print a timing summary on exit")
	cmd.PersistentPreRunE = p.PreRun
	cmd.PersistentPostRun = p.PostRun
}

// PreRun starts timing and CPU profiling as requested.
func (p *CobraProfiler) PreRun(cmd *cobra.Command, args []string) error {
	if p.timing {
		Enable()
	}
	if p.cpuProfilePath == "" {
		return nil
	}
	f, err := os.Create(p.cpuProfilePath)
	if err != nil {
		return errors.IOError(err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, errors.KindIOError, "could not start CPU profile")
	}
	p.cpuProfileFile = f
	return nil
}

// PostRun writes profiles and the timing summary.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, args []string) {
	log := logging.NewLogger("profiling")

	if p.cpuProfileFile != nil {
		pprof.StopCPUProfile()
		p.cpuProfileFile.Close()
		log.WithField("path", p.cpuProfilePath).Info("CPU profile written")
	}

	if p.memProfilePath != "" {
		f, err := os.Create(p.memProfilePath)
		if err != nil {
			log.WithError(err).Warn("Could not create memory profile")
			return
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.WithError(err).Warn("Could not write memory profile")
			return
		}
		log.WithField("path", p.memProfilePath).Info("Memory profile written")
	}

	if p.timing {
		Summarize(cmd.ErrOrStderr())
	}
}
