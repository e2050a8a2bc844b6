package transport

import (
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gemstone/communication/pkg/token"
)

// Session is a single authenticated connection, client- or server-side
// (spec §3's Session: "id, socket, TLS stream, receive buffer, send queue,
// in-flight send gate, read index, stats, cancellation token, and an
// optional principal"). Sessions are created by Connect (Connector) or by
// the acceptor's handshake pipeline; callers never construct one directly.
type Session struct {
	id         string
	conn       net.Conn
	tlsConn    *tls.Conn
	tlsState   tls.ConnectionState
	remoteAddr net.Addr
	cfg        *SessionConfig
	codec      FrameCodec

	queue   *SendQueue
	inFlight atomic.Bool // in-flight send gate (component F)
	sendMu  sync.Mutex   // guards the gate's recheck-under-lock

	recvBuf  []byte
	readIdx  int
	recvMu   sync.Mutex

	token *token.Token
	stats Stats

	// principal is the identity established by the optional credential
	// sub-handshake, captured once at handshake time and never re-checked
	// per call (see the Open Questions decision in the design notes).
	principal string

	observer Observer

	serverSide bool

	closeOnce sync.Once
	doneCh    chan struct{}
}

// newSession wraps an authenticated tls.Conn in a Session. Called once per
// connection by both the Connector and the Acceptor after the TLS (and
// optional credential) handshake succeeds.
func newSession(tlsConn *tls.Conn, cfg *SessionConfig, id string, serverSide bool) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:         id,
		conn:       tlsConn,
		tlsConn:    tlsConn,
		tlsState:   tlsConn.ConnectionState(),
		remoteAddr: tlsConn.RemoteAddr(),
		cfg:        cfg,
		codec:      newFrameCodec(cfg),
		queue:      NewSendQueue(cfg.maxSendQueueSize()),
		token:      &token.Token{},
		observer:   newFanoutObserver(cfg),
		serverSide: serverSide,
		doneCh:     make(chan struct{}),
	}
	return s
}

// ID returns the session's identifier. Stable for the session's lifetime.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer's network address.
func (s *Session) RemoteAddr() net.Addr { return s.remoteAddr }

// TLSConnectionState returns the negotiated TLS state.
func (s *Session) TLSConnectionState() tls.ConnectionState { return s.tlsState }

// Principal returns the identity established by the credential
// sub-handshake, or "" if IntegratedSecurity was not enabled or the
// handshake ran with IgnoreInvalidCredentials and failed.
func (s *Session) Principal() string { return s.principal }

// Disposed reports whether the session's cancellation token has fired.
func (s *Session) Disposed() bool { return s.token.Cancelled() }

// Done returns a channel closed once Close has run: either the caller
// closed the session, or the receive loop ended (peer close, read error)
// and closed it itself. It does not wait for an in-progress send loop
// iteration to return.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Send enqueues payload for asynchronous delivery. It never blocks: once
// the bounded queue (component C) is full, Enqueue drops the whole
// backlog and accepts the new payload, and Send then fails the dropped
// payloads with ErrQueueOverflow and raises a single OnSendException for
// the whole drop. Send returns ErrDisposed if the session has already
// been torn down.
func (s *Session) Send(data []byte) (*Payload, error) {
	if s.token.Cancelled() {
		return nil, NewError(KindDisposed, "session disposed", nil)
	}
	p := NewPayload(data)
	dumped := s.queue.Enqueue(p)
	if len(dumped) > 0 {
		CompleteDumped(dumped)
		s.observer.OnSendException(s.peerLabel(), NewError(KindQueueOverflow, "queue dumped", nil))
	}
	s.kickSendLoop()
	return p, nil
}

// peerLabel returns the identifier used in Observer callbacks: "" for a
// client session (there is exactly one, so the peer label carries no
// information) and the session id on the server side (spec §6).
func (s *Session) peerLabel() string {
	if s.serverSide {
		return s.id
	}
	return ""
}

// Close cancels the session's token exactly once, triggering teardown of
// both loops, and closes the underlying connection.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.terminate(nil)
		for _, p := range s.queue.Drain() {
			p.complete(NewError(KindDisposed, "session disposed", nil))
		}
		close(s.doneCh)
	})
	return err
}

// Stats are the atomic counters the session exposes for diagnostics.
type Stats struct {
	BytesSent     atomic.Int64
	BytesReceived atomic.Int64
	FramesSent    atomic.Int64
	FramesReceived atomic.Int64
	SendDrops     atomic.Int64
}

// Stats returns a pointer to the session's live counters.
func (s *Session) Stats() *Stats { return &s.stats }

// deadlineFor returns a time.Time deadline d from now, or the zero value
// (no deadline) when d <= 0.
func deadlineFor(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
