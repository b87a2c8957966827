package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind represents a backend error category
type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindNetworkError  Kind = "NETWORK_ERROR"
	KindInvalidInput  Kind = "INVALID_INPUT"
	KindNotFound      Kind = "NOT_FOUND"
	KindDatabaseError Kind = "DATABASE_ERROR"
	KindIOError       Kind = "IO_ERROR"
)

// Kinds lists every kind the backend is known to emit.
var Kinds = []Kind{
	KindUnknown,
	KindNetworkError,
	KindInvalidInput,
	KindNotFound,
	KindDatabaseError,
	KindIOError,
}

// ParseKind maps a wire code to a Kind. Unrecognized codes become KindUnknown.
func ParseKind(code string) Kind {
	normalized := Kind(strings.ToUpper(strings.TrimSpace(code)))
	for _, k := range Kinds {
		if k == normalized {
			return k
		}
	}
	return KindUnknown
}

// AppError is the typed error returned by backend commands
type AppError struct {
	Kind    Kind        `json:"code"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetKind returns the error kind.
func (e *AppError) GetKind() Kind {
	return e.Kind
}

// GetDetails returns the backend-supplied details, which may be nil.
func (e *AppError) GetDetails() interface{} {
	return e.Details
}

// WithDetail adds a detail to the error. Non-map details are kept under "value".
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	switch d := e.Details.(type) {
	case nil:
		e.Details = map[string]interface{}{key: value}
	case map[string]interface{}:
		d[key] = value
	default:
		e.Details = map[string]interface{}{"value": d, key: value}
	}
	return e
}

// ToJSON converts the error to JSON
func (e *AppError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new AppError
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// Payload is the error shape the backend writes on a failed command.
type Payload struct {
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details,omitempty"`
}

// FromPayload decodes a backend error body. Bodies that are not a valid payload
// produce a KindUnknown error carrying the raw text.
func FromPayload(data []byte) *AppError {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil || p.Code == "" {
		raw := strings.TrimSpace(string(data))
		e := New(KindUnknown, "malformed error payload")
		if raw != "" {
			e.Details = raw
		}
		return e
	}

	e := &AppError{Kind: ParseKind(p.Code)}
	if len(p.Details) > 0 && string(p.Details) != "null" {
		var details interface{}
		if err := json.Unmarshal(p.Details, &details); err == nil {
			e.Details = details
		} else {
			e.Details = string(p.Details)
		}
	}
	if s, ok := e.Details.(string); ok {
		e.Message = s
	}
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is checks if an error is an AppError of a specific kind
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	return appErr.Kind == kind
}

// GetKind extracts the error kind from an error
func GetKind(err error) Kind {
	if err == nil {
		return ""
	}
	appErr, ok := As(err)
	if !ok {
		return ""
	}
	return appErr.Kind
}
