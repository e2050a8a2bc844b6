package transport_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gemstone/communication/pkg/transport"
)

func generateTestCA(t *testing.T) (*x509.Certificate, []byte, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create CA cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA cert: %v", err)
	}
	return cert, der, key
}

func signLeaf(t *testing.T, ca *x509.Certificate, caKey *ecdsa.PrivateKey, cn string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &key.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	return der
}

func TestChainValidatorAcceptsCertSignedByRoot(t *testing.T) {
	ca, _, caKey := generateTestCA(t)
	leaf := signLeaf(t, ca, caKey, "peer")

	roots := x509.NewCertPool()
	roots.AddCert(ca)

	v := transport.ChainValidator{Roots: roots}
	if err := v.Verify([][]byte{leaf}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestChainValidatorRejectsUntrustedCert(t *testing.T) {
	ca, _, caKey := generateTestCA(t)
	leaf := signLeaf(t, ca, caKey, "peer")

	otherCA, _, _ := generateTestCA(t)
	roots := x509.NewCertPool()
	roots.AddCert(otherCA)

	v := transport.ChainValidator{Roots: roots}
	if err := v.Verify([][]byte{leaf}); err == nil {
		t.Fatalf("expected verification failure against unrelated root")
	}
}

func TestChainValidatorRejectsEmptyChain(t *testing.T) {
	v := transport.ChainValidator{Roots: x509.NewCertPool()}
	if err := v.Verify(nil); err == nil {
		t.Fatalf("expected error for empty chain")
	}
}

func TestTrustDirectoryValidatorLoadsAndReloads(t *testing.T) {
	dir := t.TempDir()
	ca, caDER, caKey := generateTestCA(t)
	leaf := signLeaf(t, ca, caKey, "peer")

	v, err := transport.NewTrustDirectoryValidator(dir)
	if err != nil {
		t.Fatalf("NewTrustDirectoryValidator: %v", err)
	}
	defer v.Close()

	if err := v.Verify([][]byte{leaf}); err == nil {
		t.Fatalf("expected failure before CA is written to directory")
	}

	var pemBlock bytes.Buffer
	if err := pem.Encode(&pemBlock, &pem.Block{Type: "CERTIFICATE", Bytes: caDER}); err != nil {
		t.Fatalf("pem encode: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ca.pem"), pemBlock.Bytes(), 0o600); err != nil {
		t.Fatalf("write ca.pem: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := v.Verify([][]byte{leaf}); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("validator never picked up the reloaded trust directory")
}
