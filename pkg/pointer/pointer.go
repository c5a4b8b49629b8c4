// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer provides generic helpers for optional values.

Profile columns are nullable, so the store and the session manager pass
*string around a lot; these helpers keep that readable.
*/
package pointer

// To returns a pointer to the provided value.
func To[T any](v T) *T {
	return &v
}

// Val dereferences p, returning the zero value when p is nil.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// NilIfEmpty returns nil for "" and a pointer to s otherwise.
func NilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
