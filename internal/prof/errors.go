package prof

import "fmt"

// Domain tags every error produced by this package.
const Domain = "clprof"

// Code classifies a recoverable profiler error.
type Code int

const (
	CodeOpenFile          Code = 1
	CodeArgs              Code = 2
	CodeInvalidData       Code = 3
	CodeStreamWrite       Code = 4
	CodeInfoUnavailable   Code = 7
	CodeProfilingDisabled Code = 15
)

// Error is a recoverable profiler error: a domain, a numeric code and a
// formatted message, optionally wrapping the underlying cause.
//
// Use errors.Is with the sentinels below to check the code:
//
//	if errors.Is(err, prof.ErrProfilingDisabled) { ... }
type Error struct {
	Code Code
	Msg  string
	Err  error
}

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrOpenFile          = &Error{Code: CodeOpenFile, Msg: "unable to open file"}
	ErrStreamWrite       = &Error{Code: CodeStreamWrite, Msg: "error writing to stream"}
	ErrInfoUnavailable   = &Error{Code: CodeInfoUnavailable, Msg: "profiling info unavailable"}
	ErrProfilingDisabled = &Error{Code: CodeProfilingDisabled, Msg: "queue does not have profiling enabled"}
)

func newError(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", Domain, e.Msg, e.Err)
	}
	return Domain + ": " + e.Msg
}

// Domain returns the error domain tag.
func (e *Error) Domain() string { return Domain }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// UsageError is the panic value for contract violations: computing twice,
// reading results before Compute, registering a nil queue or registering
// after Compute. Correct programs never trigger it.
type UsageError struct {
	Op  string
	Msg string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", Domain, e.Op, e.Msg)
}

func usage(op, msg string) *UsageError {
	return &UsageError{Op: op, Msg: msg}
}
