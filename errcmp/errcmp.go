// errcmp compares errors against expected messages in tests.
//
// An empty expectation means "no error", so a single helper covers both the happy and sad paths
// of a table test.
package errcmp

import (
	"strings"
	"testing"
)

// Match reports whether err matches want: nil for an empty want, otherwise an error whose
// message contains want.
func Match(err error, want string) bool {
	if err == nil {
		return want == ""
	}
	if want == "" {
		return false
	}
	return strings.Contains(err.Error(), want)
}

// MustMatch fails the test immediately if err doesn't Match want.
func MustMatch(t testing.TB, err error, want string) {
	t.Helper()
	if Match(err, want) {
		return
	}
	if want == "" {
		t.Fatalf("unexpected error: %v", err)
	}
	if err == nil {
		t.Fatalf("got no error, wanted error matching %q", want)
	}
	t.Fatalf("got error %q, wanted error matching %q", err.Error(), want)
}
