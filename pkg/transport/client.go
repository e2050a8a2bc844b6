package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// retryDelay is the fixed pause between reconnect attempts after a refused
// connection. spec §4.D bounds retries by count (MaxConnectionAttempts),
// not by inter-attempt timing, so a short fixed delay is used here rather
// than the teacher's exponential-backoff-with-jitter schedule.
const retryDelay = 500 * time.Millisecond

// Connect implements component D, the Connector's state machine:
// Disconnected -> TcpConnecting -> TlsAuthenticating -> (optional
// CredAuthenticating) -> Connected. servers is tried in order with
// failover by index rotation; a connection refused on one address moves to
// the next under the narrow retry rule described below.
//
// Retry rule (spec §4.D): only ErrSocketRefused triggers a retry, and only
// while the attempt count is below cfg.MaxConnectionAttempts (a negative
// value means unbounded). Any other dial or handshake failure terminates
// the attempt immediately.
func Connect(ctx context.Context, servers []string, cfg *SessionConfig) (*Session, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("transport: at least one server address is required")
	}

	obs := newFanoutObserver(cfg)
	tlsConfig, err := newClientTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	var attempt int

	for idx := 0; ; idx++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		addr := servers[idx%len(servers)]
		obs.OnConnectionAttempt("")

		session, err := dialOnce(ctx, addr, cfg, tlsConfig)
		if err == nil {
			obs.OnConnectionEstablished(session.peerLabel())
			return session, nil
		}

		if !errors.Is(err, ErrSocketRefused) {
			obs.OnConnectionException("", err)
			obs.OnConnectionTerminated("")
			return nil, err
		}

		attempt++
		if cfg.MaxConnectionAttempts >= 0 && attempt >= cfg.MaxConnectionAttempts {
			obs.OnConnectionException("", err)
			obs.OnConnectionTerminated("")
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// dialOnce runs one TcpConnecting -> TlsAuthenticating -> optional
// CredAuthenticating sequence against addr.
func dialOnce(ctx context.Context, addr string, cfg *SessionConfig, tlsConfig *tls.Config) (*Session, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, NewError(KindSocketRefused, addr, err)
		}
		return nil, NewError(KindSocketFatal, addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok && cfg.NoDelay {
		_ = tcpConn.SetNoDelay(true)
	}

	authCtx, cancel := context.WithTimeout(ctx, DefaultAuthTimeout)
	defer cancel()

	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(authCtx); err != nil {
		conn.Close()
		if authCtx.Err() != nil {
			return nil, NewError(KindAuthTimeout, addr, err)
		}
		return nil, NewError(KindTLSNotAuthenticated, addr, err)
	}

	state := tlsConn.ConnectionState()
	if err := verifyNegotiatedProtocol(cfg, state); err != nil {
		tlsConn.Close()
		return nil, err
	}

	session := newSession(tlsConn, cfg, "", false)

	if cfg.IntegratedSecurity {
		principal, err := clientCredentialHandshake(tlsConn, cfg)
		if err != nil {
			if cfg.IgnoreInvalidCredentials {
				// Principal stays "": accepted, but unauthenticated.
			} else {
				tlsConn.Close()
				return nil, err
			}
		} else {
			session.principal = principal
		}
	}

	go session.runRecvLoop()
	return session, nil
}

// isConnectionRefused reports whether err represents ECONNREFUSED, the
// only case the Connector's retry rule applies to.
func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
