// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

// CanonicalLoopback is the single form all loopback spellings collapse to
// before storage or comparison.
const CanonicalLoopback = "127.0.0.1"

// loopbackVariants are the spellings a local client may present for the
// loopback address depending on its stack and resolver.
var loopbackVariants = map[string]struct{}{
	"127.0.0.1":       {},
	"::1":             {},
	"0:0:0:0:0:0:0:1": {},
	"localhost":       {},
}

// NormalizeIP collapses all known loopback representations to
// CanonicalLoopback so a client reconnecting via a different loopback
// spelling is not treated as a different location. Other addresses pass
// through unchanged.
func NormalizeIP(ip string) string {
	if _, ok := loopbackVariants[ip]; ok {
		return CanonicalLoopback
	}
	return ip
}
