// Package testutil provides shared test helpers for the identity core.
//
// All helpers accept [testing.TB] for compatibility with both tests and
// benchmarks. Functions that halt the test on failure use [require] from
// testify; functions that record failures without stopping use [assert].
//
// Every helper calls t.Helper() so that test failure messages report the
// caller's file and line number rather than this package's.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not a *kerr.Error,
// or does not carry the expected error code. This is the primary helper
// for validating platform error responses.
//
// Example:
//
//	_, err := broker.Refresh(ctx, "expired")
//	testutil.RequireErrorCode(t, err, kerr.CodeTokenInvalid)
func RequireErrorCode(t testing.TB, err error, code kerr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	kErr, ok := kerr.AsError(err)
	require.True(t, ok, "expected *kerr.Error, got %T: %v", err, err)
	require.Equal(t, code, kErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		kErr.Code, code, kErr.Message)
}

// AssertErrorCode records a test failure (without halting) if err is nil,
// is not a *kerr.Error, or does not carry the expected error code.
// Use this in table-driven tests where you want to check all rows.
func AssertErrorCode(t testing.TB, err error, code kerr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	kErr, ok := kerr.AsError(err)
	if !assert.True(t, ok, "expected *kerr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, kErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		kErr.Code, code, kErr.Message)
}

// TempConfigFile creates a temporary file with the given content and
// extension (e.g., ".yaml", ".json") inside t.TempDir(). The file is
// automatically cleaned up when the test finishes.
//
// The file is created with mode 0600 (owner read/write only).
func TempConfigFile(t testing.TB, content, ext string) string {
	t.Helper()
	dir := t.TempDir()
	name := "config" + ext
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err, "failed to write temp config file %s", path)
	return path
}

// SetEnv sets an environment variable and registers a cleanup function
// that restores the original value (or unsets it if it was not set)
// when the test completes.
//
// This is safe for use in parallel tests only if each test sets a
// unique environment variable. For shared variables, do not use
// t.Parallel().
func SetEnv(t testing.TB, key, value string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	err := os.Setenv(key, value)
	require.NoError(t, err, "failed to set env var %s", key)
	t.Cleanup(func() {
		if existed {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

// AssertJSONNotContains marshals v to JSON and asserts that the
// resulting JSON string does not contain the unexpected substring.
// Useful for verifying that secret fields are redacted.
func AssertJSONNotContains(t testing.TB, v any, unexpected string) bool {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal failed")
	return assert.NotContains(t, string(data), unexpected,
		"expected JSON to NOT contain %q, got: %s", unexpected, string(data))
}
