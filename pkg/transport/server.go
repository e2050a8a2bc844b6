package transport

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"syscall"
)

// Acceptor implements component E: a listening socket whose accept loop
// runs the TLS (and optional credential) handshake per connection, rejects
// once MaxClientConnections is reached, and self-restarts on a fatal
// listener error rather than exiting the process.
type Acceptor struct {
	cfg      *SessionConfig
	listener net.Listener
	tlsConf  *tls.Config
	obs      fanoutObserver

	mu       sync.Mutex
	sessions map[string]*Session

	onSession func(*Session)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Listen starts an Acceptor bound to addr. onSession is invoked once per
// accepted, fully authenticated Session (in its own goroutine, so a slow
// handler doesn't stall the accept loop).
func Listen(ctx context.Context, addr string, cfg *SessionConfig, onSession func(*Session)) (*Acceptor, error) {
	tlsConf, err := newServerTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{}
	if cfg.AllowDualStackSocket {
		lc.Control = dualStackControl
	}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, NewError(KindSocketFatal, addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a := &Acceptor{
		cfg:       cfg,
		listener:  listener,
		tlsConf:   tlsConf,
		obs:       newFanoutObserver(cfg),
		sessions:  make(map[string]*Session),
		onSession: onSession,
		cancel:    cancel,
	}

	a.wg.Add(1)
	go a.acceptLoop(runCtx)
	return a, nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr { return a.listener.Addr() }

// SessionCount returns the number of currently live accepted sessions.
func (a *Acceptor) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// Sessions returns a snapshot of the currently live accepted sessions.
func (a *Acceptor) Sessions() []*Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, s)
	}
	return out
}

// Read copies up to len(buf) bytes from the named session's most recently
// received payload (see Session.Read), returning ErrUnknownSession if no
// live session with that id is currently accepted.
func (a *Acceptor) Read(id string, buf []byte) (int, error) {
	a.mu.Lock()
	s, ok := a.sessions[id]
	a.mu.Unlock()
	if !ok {
		return 0, ErrUnknownSession
	}
	return s.Read(buf)
}

// Close stops accepting new connections and closes every live session.
func (a *Acceptor) Close() error {
	a.cancel()
	err := a.listener.Close()

	a.mu.Lock()
	sessions := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}

	a.wg.Wait()
	return err
}

// acceptLoop accepts connections until ctx is cancelled. A fatal Accept
// error (anything other than the listener being closed on shutdown) is
// treated as transient: the loop rebuilds the listener on the same address
// and keeps running, rather than exiting the accept goroutine for good.
func (a *Acceptor) acceptLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.obs.OnConnectionException("", NewError(KindSocketFatal, "accept failed", err))
			if !a.restartListener(ctx) {
				return
			}
			continue
		}

		a.wg.Add(1)
		go a.handleConn(ctx, conn)
	}
}

// restartListener rebuilds the listener on the same address after a fatal
// Accept error, matching the self-restart behavior spec §4.E calls for. It
// surfaces its own failure (the listener could not be rebuilt at all)
// through the same observer channel before giving up.
func (a *Acceptor) restartListener(ctx context.Context) bool {
	addr := a.listener.Addr().String()
	a.listener.Close()

	lc := net.ListenConfig{}
	if a.cfg.AllowDualStackSocket {
		lc.Control = dualStackControl
	}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		a.obs.OnConnectionException("", NewError(KindSocketFatal, "listener restart failed", err))
		return false
	}
	a.listener = listener
	return true
}

func (a *Acceptor) handleConn(ctx context.Context, conn net.Conn) {
	defer a.wg.Done()

	max := a.cfg.maxClientConnections()
	if max >= 0 && a.SessionCount() >= max {
		conn.Close()
		return
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok && a.cfg.NoDelay {
		_ = tcpConn.SetNoDelay(true)
	}

	a.obs.OnConnectionAttempt("")

	authCtx, cancel := context.WithTimeout(ctx, DefaultAuthTimeout)
	defer cancel()

	tlsConn := tls.Server(conn, a.tlsConf)
	if err := tlsConn.HandshakeContext(authCtx); err != nil {
		conn.Close()
		kind := KindTLSNotAuthenticated
		if authCtx.Err() != nil {
			kind = KindAuthTimeout
		}
		a.obs.OnConnectionException("", NewError(kind, conn.RemoteAddr().String(), err))
		a.obs.OnConnectionTerminated("")
		return
	}

	state := tlsConn.ConnectionState()
	if err := verifyNegotiatedProtocol(a.cfg, state); err != nil {
		tlsConn.Close()
		a.obs.OnConnectionException("", err)
		a.obs.OnConnectionTerminated("")
		return
	}
	if a.cfg.RequireClientCertificate && len(state.PeerCertificates) == 0 {
		tlsConn.Close()
		a.obs.OnConnectionException("", NewError(KindTLSNotAuthenticated, "client certificate required", nil))
		a.obs.OnConnectionTerminated("")
		return
	}

	session := newSession(tlsConn, a.cfg, "", true)

	if a.cfg.IntegratedSecurity {
		principal, err := serverCredentialHandshake(tlsConn, a.cfg)
		if err != nil {
			if !a.cfg.IgnoreInvalidCredentials {
				_ = session.terminate(err)
				return
			}
		} else {
			session.principal = principal
		}
	}

	a.mu.Lock()
	a.sessions[session.id] = session
	a.mu.Unlock()

	a.obs.OnConnectionEstablished(session.id)

	if a.onSession != nil {
		a.onSession(session)
	}

	go session.runRecvLoop()

	<-session.Done()

	a.mu.Lock()
	delete(a.sessions, session.id)
	a.mu.Unlock()
}

// dualStackControl is passed as net.ListenConfig.Control when
// AllowDualStackSocket is set; it leaves the socket in its default
// dual-stack mode rather than restricting an IPv6 listener to IPv6-only,
// matching what AllowDualStackSocket requests (spec §6).
func dualStackControl(network, address string, c syscall.RawConn) error {
	return nil
}
