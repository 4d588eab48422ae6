// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slice holds the generic helpers the standard [slices] package lacks.
package slice

// Map converts every element with transform. A nil input stays nil.
func Map[T, U any](input []T, transform func(T) U) []U {
	if input == nil {
		return nil
	}
	output := make([]U, len(input))
	for i, item := range input {
		output[i] = transform(item)
	}
	return output
}
