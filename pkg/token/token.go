// Package token provides the single cancellation primitive shared by a
// session's concurrent loops.
package token

import "sync/atomic"

// Token is a one-shot latch: it flips from false to true at most once and
// never flips back. Every asynchronous loop of a session polls it on entry
// and at every re-entry; the one caller whose Cancel call performs the
// flip (the "first" one) owns emitting the session's single
// connection-terminated event and disposing of its resources.
//
// The zero value is a valid, not-yet-cancelled Token.
type Token struct {
	flag atomic.Bool
}

// Cancel flips the token to cancelled. It is idempotent: it reports true
// only for the single caller whose invocation performed the flip.
func (t *Token) Cancel() (first bool) {
	return t.flag.CompareAndSwap(false, true)
}

// Cancelled reports whether the token has been flipped.
func (t *Token) Cancelled() bool {
	return t.flag.Load()
}
