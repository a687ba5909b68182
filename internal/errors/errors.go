package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind represents the category of an operational error
type Kind string

const (
	KindInput              Kind = "InputError"
	KindCredentialNotFound Kind = "CredentialNotFound"
	KindSnapshotNotFound   Kind = "SnapshotNotFound"
	KindConnection         Kind = "ConnectionFailed"
	KindCommand            Kind = "CommandFailed"
	KindStoreUnavailable   Kind = "StoreUnavailable"
	KindConfiguration      Kind = "Configuration"
)

// OpsError is a categorised failure carrying the device and phase it happened in,
// plus optional guidance for the operator.
type OpsError struct {
	Kind      Kind
	Device    string
	Phase     string
	Message   string
	Err       error
	Solutions []string
	Help      string
}

// Error implements the error interface
func (e *OpsError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	var ctx []string
	if e.Device != "" {
		ctx = append(ctx, "device="+e.Device)
	}
	if e.Phase != "" {
		ctx = append(ctx, "phase="+e.Phase)
	}
	if len(ctx) > 0 {
		sb.WriteString(" [" + strings.Join(ctx, " ") + "]")
	}

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Format implements fmt.Formatter; %+v prefixes the kind.
func (e *OpsError) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "[%s] %s", e.Kind, e.Error())
			return
		}
		fmt.Fprint(f, e.Error())
	case 's':
		fmt.Fprint(f, e.Error())
	case 'q':
		fmt.Fprintf(f, "%q", e.Error())
	}
}

// Unwrap returns the underlying cause
func (e *OpsError) Unwrap() error {
	return e.Err
}

// Is matches another *OpsError of the same kind, so kind sentinels work with errors.Is.
func (e *OpsError) Is(target error) bool {
	t, ok := target.(*OpsError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// New creates a new OpsError
func New(kind Kind, message string) *OpsError {
	return &OpsError{Kind: kind, Message: message}
}

// Wrap creates a new OpsError around err
func Wrap(kind Kind, err error, message string) *OpsError {
	return &OpsError{Kind: kind, Message: message, Err: err}
}

// WithDevice records the device identifier
func (e *OpsError) WithDevice(device string) *OpsError {
	e.Device = device
	return e
}

// WithPhase records the workflow phase
func (e *OpsError) WithPhase(phase string) *OpsError {
	e.Phase = phase
	return e
}

// WithSolutions adds solution steps
func (e *OpsError) WithSolutions(solutions ...string) *OpsError {
	e.Solutions = append(e.Solutions, solutions...)
	return e
}

// WithHelp adds help command
func (e *OpsError) WithHelp(help string) *OpsError {
	e.Help = help
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrInput              = &OpsError{Kind: KindInput}
	ErrCredentialNotFound = &OpsError{Kind: KindCredentialNotFound}
	ErrSnapshotNotFound   = &OpsError{Kind: KindSnapshotNotFound}
	ErrConnection         = &OpsError{Kind: KindConnection}
	ErrCommand            = &OpsError{Kind: KindCommand}
	ErrStoreUnavailable   = &OpsError{Kind: KindStoreUnavailable}
	ErrConfiguration      = &OpsError{Kind: KindConfiguration}
)

// KindOf returns the kind of the first OpsError in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var opsErr *OpsError
	if stderrors.As(err, &opsErr) {
		return opsErr.Kind
	}
	return ""
}

// IsFatal reports whether err should abort a whole batch run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindStoreUnavailable, KindConfiguration:
		return true
	default:
		return false
	}
}

// IsUserError checks if error requires user action
func IsUserError(err error) bool {
	switch KindOf(err) {
	case KindInput, KindCredentialNotFound, KindSnapshotNotFound:
		return true
	default:
		return false
	}
}

// GetExitCode returns appropriate exit code for error type
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch KindOf(err) {
	case KindInput:
		return 64 // EX_USAGE
	case KindCredentialNotFound, KindSnapshotNotFound:
		return 66 // EX_NOINPUT
	case KindConnection:
		return 69 // EX_UNAVAILABLE
	case KindCommand:
		return 70 // EX_SOFTWARE
	case KindStoreUnavailable:
		return 74 // EX_IOERR
	case KindConfiguration:
		return 78 // EX_CONFIG
	default:
		return 1
	}
}
