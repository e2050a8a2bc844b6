package transport

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// loadCertPool reads every .pem/.crt file directly inside dir into a fresh
// x509.CertPool.
func loadCertPool(dir string) (*x509.CertPool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read trust directory: %w", err)
	}

	pool := x509.NewCertPool()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".pem" && ext != ".crt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		pool.AppendCertsFromPEM(data)
	}
	return pool, nil
}

// Validator verifies a peer's certificate chain during the TLS handshake.
// Implementations plug into tls.Config.VerifyPeerCertificate through
// buildTLSConfig (tls.go).
type Validator interface {
	// Verify inspects the raw certificate chain presented by the peer
	// (leaf first) and returns an error if it should be rejected.
	Verify(rawCerts [][]byte) error
}

// ChainValidator verifies the peer's leaf certificate against a fixed root
// pool, the common case of a statically configured CA.
type ChainValidator struct {
	Roots     *x509.CertPool
	KeyUsages []x509.ExtKeyUsage
}

func (v ChainValidator) Verify(rawCerts [][]byte) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("no peer certificate presented")
	}
	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("parse peer certificate: %w", err)
	}

	intermediates := x509.NewCertPool()
	for _, raw := range rawCerts[1:] {
		if cert, err := x509.ParseCertificate(raw); err == nil {
			intermediates.AddCert(cert)
		}
	}

	usages := v.KeyUsages
	if len(usages) == 0 {
		usages = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth}
	}

	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:         v.Roots,
		Intermediates: intermediates,
		CurrentTime:   time.Now(),
		KeyUsages:     usages,
	})
	if err != nil {
		return fmt.Errorf("certificate chain verification failed: %w", err)
	}
	return nil
}

var _ Validator = ChainValidator{}

// TrustDirectoryValidator verifies peer certificates against the set of CA
// certificates found in a directory of PEM files, reloading its pool
// whenever fsnotify reports the directory changed. This supports the
// common deployment shape of a trust store updated out-of-band (e.g. by a
// provisioning agent) while sessions are live.
type TrustDirectoryValidator struct {
	mu       sync.RWMutex
	roots    *x509.CertPool
	dir      string
	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewTrustDirectoryValidator loads every *.pem/*.crt file in dir into a root
// pool and starts watching dir for changes. Call Close when done.
func NewTrustDirectoryValidator(dir string) (*TrustDirectoryValidator, error) {
	v := &TrustDirectoryValidator{dir: dir, stopCh: make(chan struct{})}
	if err := v.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create directory watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch trust directory: %w", err)
	}
	v.watcher = watcher

	go v.watchLoop()
	return v, nil
}

func (v *TrustDirectoryValidator) watchLoop() {
	for {
		select {
		case <-v.stopCh:
			return
		case _, ok := <-v.watcher.Events:
			if !ok {
				return
			}
			_ = v.reload()
		case _, ok := <-v.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (v *TrustDirectoryValidator) reload() error {
	pool, err := loadCertPool(v.dir)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.roots = pool
	v.mu.Unlock()
	return nil
}

func (v *TrustDirectoryValidator) Verify(rawCerts [][]byte) error {
	v.mu.RLock()
	roots := v.roots
	v.mu.RUnlock()
	return ChainValidator{Roots: roots}.Verify(rawCerts)
}

// Close stops the directory watcher.
func (v *TrustDirectoryValidator) Close() error {
	v.stopOnce.Do(func() {
		close(v.stopCh)
		if v.watcher != nil {
			v.watcher.Close()
		}
	})
	return nil
}

var _ Validator = (*TrustDirectoryValidator)(nil)
