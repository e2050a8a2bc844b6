package transport

import "context"

// Transport is the minimal contract a peripheral, non-TCP carrier (UDP,
// serial, file) must satisfy to plug into code written against Session's
// send/receive shape. The library itself only implements the TLS-over-TCP
// case; other carriers are out of scope and are expected to satisfy this
// interface as collaborators, not subclasses (spec's Non-goals).
type Transport interface {
	// Send writes data to the peer, returning once the write has been
	// attempted (synchronously, unlike Session.Send's async queue).
	Send(data []byte) error

	// Receive blocks until one payload is available or ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the underlying resource.
	Close() error
}

var _ Transport = (*pipeTransport)(nil)

// pipeTransport is a minimal Transport over an io.ReadWriteCloser pair,
// useful for wiring a UDP socket, a serial port, or a file into code
// written against Transport without implementing framing or TLS.
type pipeTransport struct {
	rw pipeReadWriteCloser
}

type pipeReadWriteCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// NewPipeTransport wraps rw as a Transport. Each Send is one Write; each
// Receive is one Read into a fixed-size scratch buffer, so message
// boundaries follow whatever rw itself preserves (a datagram socket
// preserves them, a stream does not).
func NewPipeTransport(rw pipeReadWriteCloser) Transport {
	return &pipeTransport{rw: rw}
}

func (p *pipeTransport) Send(data []byte) error {
	_, err := p.rw.Write(data)
	return err
}

func (p *pipeTransport) Receive(ctx context.Context) ([]byte, error) {
	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, 64*1024)
		n, err := p.rw.Read(buf)
		done <- result{buf: buf[:n], err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.buf, r.err
	}
}

func (p *pipeTransport) Close() error {
	return p.rw.Close()
}
