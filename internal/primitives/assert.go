package primitives

import "fmt"

// ContractError describes a violated precondition or invariant. It is raised
// as a panic value by Assert and recovered by the kernel at the dispatch
// boundary, where it is logged and handed to the configured halt primitive.
type ContractError struct {
	Msg string
}

func (e *ContractError) Error() string {
	return "rtkernel: contract violation: " + e.Msg
}

// AssertEnabled reports whether contract checks are compiled in.
func AssertEnabled() bool { return assertEnabled }

// Assert panics with a *ContractError when cond is false. With the
// rtkernel_release build tag the check compiles away.
func Assert(cond bool, format string, args ...any) {
	if assertEnabled && !cond {
		panic(&ContractError{Msg: fmt.Sprintf(format, args...)})
	}
}

// Violation unconditionally raises a *ContractError, regardless of build tags.
// Reserved for conditions that would otherwise corrupt state past recovery.
func Violation(format string, args ...any) {
	panic(&ContractError{Msg: fmt.Sprintf(format, args...)})
}
