package transport

import "errors"

// Kind classifies an error by the taxonomy of spec §7. It lets callers
// branch on error category via errors.Is against the matching sentinel
// below without parsing strings.
type Kind uint8

const (
	// KindSocketRefused: peer not listening; retried under the
	// connector's narrow retry rule (spec §4.D).
	KindSocketRefused Kind = iota
	// KindSocketFatal: any other socket-layer error; terminates.
	KindSocketFatal
	// KindAuthTimeout: the 15s authentication timer expired.
	KindAuthTimeout
	// KindTLSNotAuthenticated: TLS handshake completed but did not
	// authenticate as required (e.g. required client cert missing).
	KindTLSNotAuthenticated
	// KindTLSNotEncrypted: handshake completed but required TLS
	// properties (e.g. minimum version) are absent.
	KindTLSNotEncrypted
	// KindBadCredentials: the credential sub-handshake was rejected.
	KindBadCredentials
	// KindFramingError: invalid marker or an impossible decoded length.
	KindFramingError
	// KindQueueOverflow: the bounded send queue was dumped. Recoverable;
	// the session continues.
	KindQueueOverflow
	// KindPeerGone: a 0-byte read or a no-longer-connected socket.
	KindPeerGone
	// KindDisposed: an operation was attempted on a destroyed session.
	KindDisposed
)

// String names the error kind.
func (k Kind) String() string {
	switch k {
	case KindSocketRefused:
		return "SocketRefused"
	case KindSocketFatal:
		return "SocketFatal"
	case KindAuthTimeout:
		return "AuthTimeout"
	case KindTLSNotAuthenticated:
		return "TlsNotAuthenticated"
	case KindTLSNotEncrypted:
		return "TlsNotEncrypted"
	case KindBadCredentials:
		return "BadCredentials"
	case KindFramingError:
		return "FramingError"
	case KindQueueOverflow:
		return "QueueOverflow"
	case KindPeerGone:
		return "PeerGone"
	case KindDisposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// Sentinel errors, one per Kind, so callers can use errors.Is directly.
var (
	ErrSocketRefused        = errors.New("transport: connection refused")
	ErrSocketFatal          = errors.New("transport: socket error")
	ErrAuthTimeout          = errors.New("transport: authentication timed out")
	ErrTLSNotAuthenticated  = errors.New("transport: TLS handshake did not authenticate")
	ErrTLSNotEncrypted      = errors.New("transport: TLS connection missing required properties")
	ErrBadCredentials       = errors.New("transport: credential handshake rejected")
	ErrFramingError         = errors.New("transport: invalid frame")
	ErrQueueOverflow        = errors.New("transport: send queue dumped")
	ErrPeerGone             = errors.New("transport: peer disconnected")
	ErrDisposed             = errors.New("transport: session disposed")
	ErrUnknownSession       = errors.New("transport: unknown session id")
	ErrNoReceiveBuffer      = errors.New("transport: no receive buffer available")
	ErrMaxConnectionsReached = errors.New("transport: max client connections reached")
)

// sentinelFor maps a Kind to its sentinel error.
func sentinelFor(k Kind) error {
	switch k {
	case KindSocketRefused:
		return ErrSocketRefused
	case KindSocketFatal:
		return ErrSocketFatal
	case KindAuthTimeout:
		return ErrAuthTimeout
	case KindTLSNotAuthenticated:
		return ErrTLSNotAuthenticated
	case KindTLSNotEncrypted:
		return ErrTLSNotEncrypted
	case KindBadCredentials:
		return ErrBadCredentials
	case KindFramingError:
		return ErrFramingError
	case KindQueueOverflow:
		return ErrQueueOverflow
	case KindPeerGone:
		return ErrPeerGone
	case KindDisposed:
		return ErrDisposed
	default:
		return errors.New(k.String())
	}
}

// Error wraps a Kind with context, staying compatible with errors.Is against
// the Kind's sentinel and errors.As for *Error itself.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

// NewError builds an *Error for kind, optionally wrapping cause.
func NewError(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Err: cause}
}

func (e *Error) Error() string {
	msg := sentinelFor(e.Kind).Error()
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinelFor(e.Kind)
}

// Is makes errors.Is(err, ErrSocketRefused) etc. work without unwrapping
// through Err when Err is nil or unrelated.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}
