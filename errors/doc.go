// Package errors provides the two error channels of the bridge.
//
// Error is the structured internal error, categorized by Phase (which part of
// the bridge failed) and Kind (error category), with an optional field path,
// offending type and cause chain:
//
//	err := errors.New(errors.PhaseBoundary, errors.KindOwnership).
//		Path("compile_svg", "world").
//		Detail("handle %d already consumed", h).
//		Build()
//
// Exception is the record handed to the host for unexpected failures. It carries
// a closed Kind, an optional message, a cause chain and call frames captured
// where it was thrown:
//
//	exc := errors.Throw(errors.IllegalArgument, "library handle is zero", nil)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
