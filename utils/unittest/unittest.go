package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds waits on asynchronous test conditions.
const DefaultTimeout = 5 * time.Second

// runAsync runs f in a goroutine and returns a channel closed once f returned.
func runAsync(f func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	return done
}

// RequireReturnsBefore fails the test if f does not return within timeout.
func RequireReturnsBefore(t testing.TB, f func(), timeout time.Duration, message string) {
	select {
	case <-runAsync(f):
	case <-time.After(timeout):
		require.Fail(t, "function did not return in time: "+message)
	}
}

// RequireNeverReturnBefore fails the test if f returns within timeout. The
// returned channel is closed once f eventually returns, so that callers can
// unblock f and wait for it.
func RequireNeverReturnBefore(t testing.TB, f func(), timeout time.Duration, message string) <-chan struct{} {
	done := runAsync(f)
	select {
	case <-done:
		require.Fail(t, "function returned before deadline: "+message)
	case <-time.After(timeout):
	}
	return done
}

// TempDir creates a directory the caller is responsible for removing.
func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "tss-testing-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(dir string)) {
	dir := TempDir(t)
	defer os.RemoveAll(dir)
	f(dir)
}

// BadgerDB opens an in-process badger database with logging disabled.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(dir).WithKeepL0InMemory(true).WithLogger(nil))
	require.NoError(t, err)
	return db
}

func RunWithBadgerDB(t testing.TB, f func(db *badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}
