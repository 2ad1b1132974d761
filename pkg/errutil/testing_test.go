// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("ACCOUNT_MACHINE_LIMIT").Errorf("test error")
	// Should not fail
	errutil.AssertErrorCode(t, err, "ACCOUNT_MACHINE_LIMIT")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("handle", "alice_01").Errorf("test error")
	// Should not fail
	errutil.AssertErrorContext(t, err, "handle", "alice_01")
}
