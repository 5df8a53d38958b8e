// Package testutil provides in-memory fakes and helpers for unit tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

// Context returns a context that is cancelled when the test ends, bounded
// at 30 seconds.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
