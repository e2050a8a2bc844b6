package transport

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"time"
)

// Endian selects the byte order used for the framing length prefix
// (spec §6, PayloadEndianOrder).
type Endian uint8

const (
	// LittleEndian is the default.
	LittleEndian Endian = iota
	BigEndian
)

// byteOrder returns the binary.ByteOrder matching e.
func (e Endian) byteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DefaultMaxSendQueueSize is used when SessionConfig.MaxSendQueueSize is
// left at its zero value; -1 disables the drop policy entirely.
const DefaultMaxSendQueueSize = 256

// DefaultAuthTimeout is the 15s handshake timeout armed before each
// authentication phase (spec §4.D, §4.E, §5).
const DefaultAuthTimeout = 15 * time.Second

// SessionConfig holds the session-level enumerated options of spec §6.
// It is shared by client and server sessions; fields that are
// server-only or client-only are documented as such and ignored by the
// other side.
type SessionConfig struct {
	// PayloadAware enables length-prefixed framing (component A,
	// "Aware" mode). When false, the receive loop runs unframed.
	PayloadAware bool

	// PayloadMarker is the marker M prepended (and expected) on every
	// frame. A nil or empty marker is legal and degenerates framing to
	// a pure length prefix.
	PayloadMarker []byte

	// PayloadEndianOrder selects the byte order of the length prefix.
	// The zero value is LittleEndian.
	PayloadEndianOrder Endian

	// IntegratedSecurity enables the post-TLS credential sub-handshake.
	IntegratedSecurity bool

	// IgnoreInvalidCredentials accepts the connection even when the
	// credential sub-handshake fails, capturing no principal.
	IgnoreInvalidCredentials bool

	// AllowDualStackSocket binds an IPv6 listen socket in dual-stack
	// mode when the listen address is IPv6. Server-only.
	AllowDualStackSocket bool

	// MaxSendQueueSize bounds the outbound queue before the drop policy
	// fires (component C). -1 disables dropping; 0 uses
	// DefaultMaxSendQueueSize.
	MaxSendQueueSize int

	// NoDelay disables Nagle's algorithm (TCP_NODELAY) on the socket.
	NoDelay bool

	// EnabledTLSProtocols restricts which TLS versions may be
	// negotiated; the handshake fails if the negotiated version falls
	// outside this set. Nil means "only TLS 1.2 and 1.3", the library
	// default.
	EnabledTLSProtocols []uint16

	// CheckCertificateRevocation requests OCSP/CRL revocation checking.
	// This implementation does not ship an OCSP/CRL client (see
	// DESIGN.md): the flag is recorded on SessionConfig but nothing in
	// buildTLSConfig reads it, and no revocation fetch happens
	// internally. A caller that needs revocation checking supplies its
	// own Validator and has it consult this flag itself.
	CheckCertificateRevocation bool

	// RequireClientCertificate requires the client to present a
	// certificate, verified by Validator when one is set and otherwise
	// against ClientCAs. Server-only.
	RequireClientCertificate bool

	// MaxClientConnections bounds concurrently accepted sessions. The
	// zero value and any negative value both mean unlimited; set it to a
	// positive number to actually bound it. Server-only.
	MaxClientConnections int

	// MaxConnectionAttempts bounds Connector retries on
	// ConnectionRefused. -1 means unbounded; 0 disables retry (the
	// first refusal terminates). Client-only.
	MaxConnectionAttempts int

	// CertificateProvider supplies the local TLS certificate, either
	// fixed or chosen per-connection.
	CertificateProvider CertificateProvider

	// Validator verifies the peer's certificate. If nil, Go's built-in
	// chain verification is used (InsecureSkipVerify is never implied by a
	// nil Validator; see buildTLSConfig in tls.go).
	Validator Validator

	// RootCAs / ClientCAs back Go's built-in certificate verification
	// when Validator is nil.
	RootCAs   *x509.CertPool
	ClientCAs *x509.CertPool

	// ServerName is the expected server name for client connections
	// (SNI + hostname verification).
	ServerName string

	// CredentialSecret is the shared secret used by the integrated
	// credential sub-handshake (see credential.go). Required when
	// IntegratedSecurity is true.
	CredentialSecret []byte

	// Logger receives structured protolog.Event records for every
	// observable event this session raises. Nil disables logging.
	Logger Logger

	// Observer receives the same events as callbacks, for callers that
	// want to react programmatically rather than just record them. Nil
	// means NopObserver.
	Observer Observer
}

// CertificateProvider supplies a TLS certificate, either fixed (a single
// tls.Certificate known up front) or selected per-connection (e.g. SNI-
// based). Corresponds to spec §6's "Certificate provider: either a path
// to a PFX/cert file or a caller-supplied selection callback".
type CertificateProvider interface {
	// Certificate returns the certificate to present for this handshake.
	Certificate(*tls.ClientHelloInfo) (*tls.Certificate, error)
}

// StaticCertificate is a CertificateProvider that always returns the same
// certificate, matching the common case of a single cert/key pair loaded
// from a PFX/PEM file at startup.
type StaticCertificate struct {
	Cert tls.Certificate
}

func (s StaticCertificate) Certificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return &s.Cert, nil
}

var _ CertificateProvider = StaticCertificate{}

func (c *SessionConfig) maxSendQueueSize() int {
	if c.MaxSendQueueSize == 0 {
		return DefaultMaxSendQueueSize
	}
	return c.MaxSendQueueSize
}

func (c *SessionConfig) maxClientConnections() int {
	if c.MaxClientConnections <= 0 {
		return -1
	}
	return c.MaxClientConnections
}

func (c *SessionConfig) endian() binary.ByteOrder {
	return c.PayloadEndianOrder.byteOrder()
}

func (c *SessionConfig) enabledProtocols() []uint16 {
	if len(c.EnabledTLSProtocols) == 0 {
		return []uint16{tls.VersionTLS12, tls.VersionTLS13}
	}
	return c.EnabledTLSProtocols
}

func minVersion(versions []uint16) uint16 {
	min := versions[0]
	for _, v := range versions[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func maxVersion(versions []uint16) uint16 {
	max := versions[0]
	for _, v := range versions[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
