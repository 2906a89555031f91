package invoke

import "fmt"

// ErrorKind classifies invocation failures. All kinds resolve to a
// structured failure result for the caller, never a process-level crash.
type ErrorKind string

const (
	// KindNotFound means the requested tool name is not in the registry.
	KindNotFound ErrorKind = "not_found"
	// KindResolutionError means the tool's implementation reference could
	// not be loaded. The tool is misconfigured; other tools are unaffected.
	KindResolutionError ErrorKind = "resolution_error"
	// KindBindingError means the supplied arguments do not match the
	// implementation's signature.
	KindBindingError ErrorKind = "binding_error"
	// KindRuntimeFault means the implementation (or the agent runtime)
	// failed during execution.
	KindRuntimeFault ErrorKind = "runtime_fault"
	// KindTurnLimitExceeded means an agent run exceeded its turn bound.
	KindTurnLimitExceeded ErrorKind = "turn_limit_exceeded"
)

// InvocationError is the structured failure variant of an invocation.
// It always carries a human-readable message suitable for the caller.
type InvocationError struct {
	Kind    ErrorKind
	Message string
	err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *InvocationError) Unwrap() error { return e.err }

func newError(kind ErrorKind, err error) *InvocationError {
	return &InvocationError{Kind: kind, Message: err.Error(), err: err}
}

func errorf(kind ErrorKind, format string, args ...any) *InvocationError {
	return newError(kind, fmt.Errorf(format, args...))
}
