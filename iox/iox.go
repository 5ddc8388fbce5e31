// Package iox provides small helpers for cleanup paths where close errors
// carry no signal.
package iox

import "io"

// DiscardClose closes c and drops the error. The file store uses it on the
// snapshot temp file after a failed write, where the original error is the
// one worth reporting:
//
//	defer iox.DiscardClose(tmp)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc adapts a Closer to the func() shape t.Cleanup wants, for test
// fixtures like the redis client:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr runs fn and drops its error. For deferred non-Close cleanup
// such as flushing a writer that is about to be thrown away:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }
