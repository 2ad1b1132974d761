// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 loopback", "127.0.0.1", "127.0.0.1"},
		{"ipv6 loopback", "::1", "127.0.0.1"},
		{"ipv6 loopback long form", "0:0:0:0:0:0:0:1", "127.0.0.1"},
		{"localhost name", "localhost", "127.0.0.1"},
		{"public address untouched", "203.0.113.7", "203.0.113.7"},
		{"private address untouched", "192.168.1.20", "192.168.1.20"},
		{"empty untouched", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIP(tt.in))
		})
	}
}

func TestNormalizeIP_LoopbackPairingsCompareEqual(t *testing.T) {
	variants := []string{"127.0.0.1", "::1", "0:0:0:0:0:0:0:1", "localhost"}
	for _, a := range variants {
		for _, b := range variants {
			assert.Equal(t, NormalizeIP(a), NormalizeIP(b), "%q vs %q", a, b)
		}
	}
}
