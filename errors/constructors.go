package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
)

// NotFound creates a not found error
func NotFound(what string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", what)).
		WithDetail("resource", what)
}

// InvalidInput creates an invalid input error for a single field
func InvalidInput(field, reason string) *AppError {
	return New(KindInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}

// NetworkError wraps a transport failure for a command
func NetworkError(command string, err error) *AppError {
	return Wrap(err, KindNetworkError, fmt.Sprintf("command %s did not round-trip", command)).
		WithDetail("command", command)
}

// IOError wraps a local filesystem failure
func IOError(err error) *AppError {
	appErr := Wrap(err, KindIOError, "i/o failure")

	var pathErr *fs.PathError
	if stderrors.As(err, &pathErr) {
		appErr = appErr.WithDetail("path", pathErr.Path)
	}
	if os.IsNotExist(err) {
		appErr = appErr.WithDetail("kind", "NotFound")
	} else if os.IsPermission(err) {
		appErr = appErr.WithDetail("kind", "PermissionDenied")
	}

	return appErr
}
