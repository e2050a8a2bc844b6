package protolog

import "time"

// Kind enumerates the observable events raised by the transport core
// (spec §6, "Observable events"). A protolog.Event is the ambient,
// structured-logging counterpart to an Observer callback — every Observer
// dispatch that a Session/Client/Server performs is mirrored here when a
// Logger is configured, so operators get a replayable record even when no
// Observer is registered.
type Kind uint8

const (
	// KindConnectionAttempt records a connect attempt.
	KindConnectionAttempt Kind = iota
	// KindConnectionEstablished records a successful handshake.
	KindConnectionEstablished
	// KindConnectionTerminated records session teardown. Emitted at most
	// once per session (spec §8 invariant).
	KindConnectionTerminated
	// KindConnectionException records a fatal connection-layer error.
	KindConnectionException
	// KindSendStart records the start of one payload write.
	KindSendStart
	// KindSendComplete records a successful payload write.
	KindSendComplete
	// KindSendException records a failed or dropped payload write.
	KindSendException
	// KindReceiveReady records that a receive buffer is readable via Read.
	KindReceiveReady
	// KindReceiveComplete records a fully assembled inbound payload.
	KindReceiveComplete
	// KindReceiveException records a recoverable receive-side error.
	KindReceiveException
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindConnectionAttempt:
		return "CONNECTION_ATTEMPT"
	case KindConnectionEstablished:
		return "CONNECTION_ESTABLISHED"
	case KindConnectionTerminated:
		return "CONNECTION_TERMINATED"
	case KindConnectionException:
		return "CONNECTION_EXCEPTION"
	case KindSendStart:
		return "SEND_START"
	case KindSendComplete:
		return "SEND_COMPLETE"
	case KindSendException:
		return "SEND_EXCEPTION"
	case KindReceiveReady:
		return "RECEIVE_READY"
	case KindReceiveComplete:
		return "RECEIVE_COMPLETE"
	case KindReceiveException:
		return "RECEIVE_EXCEPTION"
	default:
		return "UNKNOWN"
	}
}

// MaxLogFrameDataSize bounds how much payload data an Event carries; larger
// payloads are truncated before logging to avoid unbounded memory use by
// the logging path itself.
const MaxLogFrameDataSize = 4096

// Event is one structured log record. CBOR encoding uses integer keys for
// compactness, matching the teacher's event-log wire format.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	SessionID string    `cbor:"2,keyasint"`
	Kind      Kind      `cbor:"3,keyasint"`
	RemoteAddr string   `cbor:"4,keyasint,omitempty"`

	// Size is the payload size in bytes, for send/receive events.
	Size int `cbor:"5,keyasint,omitempty"`

	// Data is a possibly-truncated copy of the payload, for receive-complete
	// events only; nil otherwise.
	Data      []byte `cbor:"6,keyasint,omitempty"`
	Truncated bool   `cbor:"7,keyasint,omitempty"`

	// Err is the error message for *-exception events.
	Err string `cbor:"8,keyasint,omitempty"`
}

// NewPayloadEvent builds a KindReceiveComplete/KindSendComplete event,
// truncating Data beyond MaxLogFrameDataSize.
func NewPayloadEvent(kind Kind, sessionID string, data []byte) Event {
	ev := Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Kind:      kind,
		Size:      len(data),
	}
	if len(data) > MaxLogFrameDataSize {
		ev.Data = append([]byte(nil), data[:MaxLogFrameDataSize]...)
		ev.Truncated = true
	} else if len(data) > 0 {
		ev.Data = append([]byte(nil), data...)
	}
	return ev
}
