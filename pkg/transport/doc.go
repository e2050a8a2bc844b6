// Package transport implements a TLS-over-TCP client/server transport:
// connection handshake (with an optional post-TLS credential
// sub-handshake), length-prefixed framing, and an asynchronous send
// pipeline with bounded-queue drop semantics.
//
// # Protocol stack
//
//	┌────────────────────────────────┐
//	│      caller-defined payload     │
//	├────────────────────────────────┤
//	│   length-prefix framing (opt.)  │
//	├────────────────────────────────┤
//	│             TLS                 │
//	├────────────────────────────────┤
//	│             TCP                 │
//	└────────────────────────────────┘
//
// Connect (component D, the Connector) and Listen (component E, the
// Acceptor) both produce a *Session once their handshake completes;
// Session.Send and the receive loop started alongside it are the only
// entry points most callers need.
//
// Non-TCP carriers (UDP, serial, a plain file) are out of scope for this
// package; Transport and NewPipeTransport exist so such carriers can still
// be wired into code written against a uniform send/receive shape.
package transport
