// Package testutil holds helpers shared by memkit's package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/internal/contract"
)

// RequireViolation runs fn and fails the test unless it raises a contract
// violation. The recovered violation is returned for further assertions.
//
// Example:
//
//	v := testutil.RequireViolation(t, func() { fx.Add(4) })
//	require.Contains(t, v.Reason, "capacity")
func RequireViolation(t testing.TB, fn func()) (v *contract.Violation) {
	t.Helper()
	defer func() {
		v = contract.Recover(recover())
		require.NotNil(t, v, "expected contract violation")
	}()
	fn()
	return nil
}

// RequireNoViolation runs fn and fails the test if it raises a contract violation.
func RequireNoViolation(t testing.TB, fn func()) {
	t.Helper()
	defer func() {
		v := contract.Recover(recover())
		require.Nil(t, v, "unexpected contract violation")
	}()
	fn()
}

// Pattern fills b with a deterministic byte pattern derived from seed.
func Pattern(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i)
	}
}

// HasPattern reports whether b still holds the pattern written by Pattern.
func HasPattern(b []byte, seed byte) bool {
	for i := range b {
		if b[i] != seed+byte(i) {
			return false
		}
	}
	return true
}
