// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package query reads loosely typed values from URL query strings and comma
separated settings.

Every parser falls back instead of failing: callers that must tell a
malformed value from an absent one parse it themselves.
*/
package query

import (
	"strconv"
	"strings"
)

// Int parses raw as a base-10 integer, or returns fallback.
func Int(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

// Bool accepts the forms of [strconv.ParseBool]. Anything else is false.
func Bool(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}

// List splits "a, b,,c" into [a b c]. An empty input yields nil.
func List(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
