// Package protolog records the transport core's observable events
// (connection-attempt, send-complete, receive-exception, ...) as a
// structured, replayable log. It is a read-only observer of the same
// events the public Observer interface in pkg/transport delivers; a
// Logger never influences transport behavior.
package protolog
