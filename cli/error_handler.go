package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	printer *logging.Printer
	out     io.Writer
}

// NewErrorHandler creates a handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return NewErrorHandlerTo(os.Stderr, verbose)
}

// NewErrorHandlerTo creates a handler writing to w.
func NewErrorHandlerTo(w io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		printer: logging.NewPrinter(w),
		out:     w,
	}
}

// Handle prints a message for err based on its kind and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetKind(err) {
	case errors.KindNetworkError:
		h.printer.Error("Cannot reach the scribe backend", err)
		h.printer.Warn("Check that scribed is running, or set backend.socket / backend.address in scribe.yml.")

	case errors.KindNotFound:
		h.printer.Error("Not found", err)

	case errors.KindInvalidInput:
		h.printer.Error("Invalid input", err)

	case errors.KindDatabaseError:
		h.printer.Error("The backend database reported an error", err)

	case errors.KindIOError:
		h.printer.Error("File access failed", err)

	default:
		h.printer.Error("Error", err)
	}

	if h.Verbose {
		if appErr, ok := errors.As(err); ok {
			h.printer.Divider()
			io.WriteString(h.out, appErr.ToJSON()+"\n")
		}
	}
	return err
}

// HandleCommand reports an error returned by cmd. Errors that did not come
// from scribe (bad flags, wrong argument count) get a usage hint instead.
func (h *ErrorHandler) HandleCommand(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); !ok && cmd != nil {
		PrintError(cmd, err)
		return err
	}
	return h.Handle(err)
}
