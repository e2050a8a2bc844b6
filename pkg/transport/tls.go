package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// buildTLSConfig assembles the shared fields of a client or server
// tls.Config from cfg: enabled protocol range, certificate selection, and
// peer validation. server selects ClientAuth/RootCAs-vs-ClientCAs wiring.
func buildTLSConfig(cfg *SessionConfig, server bool) (*tls.Config, error) {
	if cfg.CertificateProvider == nil {
		return nil, fmt.Errorf("transport: CertificateProvider is required")
	}

	protocols := cfg.enabledProtocols()
	tlsConfig := &tls.Config{
		MinVersion: minVersion(protocols),
		MaxVersion: maxVersion(protocols),
	}

	if server {
		tlsConfig.GetCertificate = func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			return cfg.CertificateProvider.Certificate(hello)
		}
	} else {
		tlsConfig.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return cfg.CertificateProvider.Certificate(nil)
		}
	}

	if cfg.Validator != nil {
		validator := cfg.Validator
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return validator.Verify(rawCerts)
		}
	}

	if server {
		tlsConfig.ClientCAs = cfg.ClientCAs
		if cfg.RequireClientCertificate {
			tlsConfig.ClientAuth = tls.RequireAnyClientCert
			if cfg.Validator == nil {
				tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
			}
		} else {
			tlsConfig.ClientAuth = tls.NoClientCert
		}
	} else {
		// cfg.Validator, when set, replaces Go's built-in hostname/chain
		// check (InsecureSkipVerify above only disables that built-in
		// check; VerifyPeerCertificate performs the real one).
		tlsConfig.RootCAs = cfg.RootCAs
		tlsConfig.ServerName = cfg.ServerName
	}

	return tlsConfig, nil
}

// newServerTLSConfig builds the tls.Config used by the acceptor (component
// E) for each accepted connection.
func newServerTLSConfig(cfg *SessionConfig) (*tls.Config, error) {
	return buildTLSConfig(cfg, true)
}

// newClientTLSConfig builds the tls.Config used by the connector
// (component D) for each dial attempt.
func newClientTLSConfig(cfg *SessionConfig) (*tls.Config, error) {
	return buildTLSConfig(cfg, false)
}

// verifyNegotiatedProtocol checks the negotiated TLS version falls within
// cfg.EnabledTLSProtocols, raising KindTLSNotEncrypted otherwise (spec §7:
// "handshake completed but required TLS properties are absent").
func verifyNegotiatedProtocol(cfg *SessionConfig, state tls.ConnectionState) error {
	for _, v := range cfg.enabledProtocols() {
		if state.Version == v {
			return nil
		}
	}
	return NewError(KindTLSNotEncrypted, fmt.Sprintf("negotiated version %#x not enabled", state.Version), nil)
}
