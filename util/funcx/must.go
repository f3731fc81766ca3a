// Package funcx holds small functional helpers shared across the codebase.
package funcx

// MustNoError panics if err is non-nil, otherwise returns v.
//
// Reserved for call sites where the error is genuinely impossible in
// context (e.g. Stat on an fd we just opened successfully) — not a general
// substitute for error handling.
func MustNoError[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
