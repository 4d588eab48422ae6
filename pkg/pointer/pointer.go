// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pointer helps with optional fields of PATCH style inputs, where
// nil means "leave unchanged".
package pointer

// To returns a pointer to a copy of value.
func To[T any](value T) *T {
	return &value
}

// Or returns *p, or current when p is nil.
func Or[T any](p *T, current T) T {
	if p == nil {
		return current
	}
	return *p
}
