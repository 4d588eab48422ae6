// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/warden/pkg/query"
)

func TestInt(t *testing.T) {
	assert.Equal(t, 3, query.Int("3", 1))
	assert.Equal(t, 3, query.Int(" 3 ", 1))
	assert.Equal(t, 1, query.Int("", 1))
	assert.Equal(t, 1, query.Int("three", 1))
	assert.Equal(t, -2, query.Int("-2", 1), "range checks are the caller's job")
}

func TestBool(t *testing.T) {
	for _, raw := range []string{"true", "1", "TRUE", "t"} {
		assert.True(t, query.Bool(raw), raw)
	}
	for _, raw := range []string{"", "false", "0", "yes"} {
		assert.False(t, query.Bool(raw), raw)
	}
}

func TestList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, query.List(" https://a.example,, https://b.example "))
	assert.Nil(t, query.List(""))
	assert.Nil(t, query.List(" , "))
}
