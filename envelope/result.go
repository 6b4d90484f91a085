package envelope

// Result is either an Ok value or an Err value. It serializes as
// {"Ok": v} or {"Err": e}; exactly one key is present.
type Result[T, E any] struct {
	Ok  *T `json:"Ok,omitempty"`
	Err *E `json:"Err,omitempty"`
}

// Ok returns a successful result.
func Ok[T, E any](v T) Result[T, E] {
	return Result[T, E]{Ok: &v}
}

// Err returns a failed result.
func Err[T, E any](e E) Result[T, E] {
	return Result[T, E]{Err: &e}
}

// IsOk reports whether the result holds a value.
func (r Result[T, E]) IsOk() bool {
	return r.Ok != nil
}

// Unpack returns the value, the error and whether the result is Ok.
func (r Result[T, E]) Unpack() (T, E, bool) {
	var (
		v T
		e E
	)
	if r.Ok != nil {
		v = *r.Ok
	}
	if r.Err != nil {
		e = *r.Err
	}
	return v, e, r.Ok != nil
}
