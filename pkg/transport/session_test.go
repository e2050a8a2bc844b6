package transport

import (
	"errors"
	"testing"
	"time"
)

func TestSessionSendDropsUnderBackpressure(t *testing.T) {
	client, server := tlsPipePair(t)
	defer server.Close()

	cfg := &SessionConfig{MaxSendQueueSize: 2}
	session := newSession(client, cfg, "", false)
	defer session.Close()

	// Nobody reads from server, so the first write blocks on the pipe
	// and every Send after it piles up in the bounded queue.
	payloads := make([]*Payload, 0, 5)
	for i := 0; i < 5; i++ {
		p, err := session.Send([]byte{byte(i)})
		if err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
		payloads = append(payloads, p)
	}

	deadline := time.Now().Add(2 * time.Second)
	var droppedCount int
	for _, p := range payloads[:len(payloads)-1] {
		select {
		case <-waitChan(p):
		case <-time.After(time.Until(deadline)):
			continue
		}
		if err := p.err; err != nil && errors.Is(err, ErrQueueOverflow) {
			droppedCount++
		}
	}
	if droppedCount == 0 {
		t.Fatalf("expected at least one payload to be dropped under backpressure")
	}
}

func waitChan(p *Payload) <-chan struct{} {
	return p.done
}

func TestSessionReadPullsFromLastReceivedPayload(t *testing.T) {
	client, _ := tlsPipePair(t)
	defer client.Close()

	cfg := &SessionConfig{}
	session := newSession(client, cfg, "", false)

	if _, err := session.Read(make([]byte, 4)); !errors.Is(err, ErrNoReceiveBuffer) {
		t.Fatalf("expected ErrNoReceiveBuffer before any payload arrives, got %v", err)
	}

	session.storeReceived([]byte("hello"))

	buf := make([]byte, 3)
	n, err := session.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 3 || string(buf) != "hel" {
		t.Fatalf("Read = %q, want %q", buf[:n], "hel")
	}

	n, err = session.Read(buf)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if n != 2 || string(buf[:n]) != "lo" {
		t.Fatalf("second Read = %q, want %q", buf[:n], "lo")
	}
}

func TestSessionPeerLabelMatchesServerSideConvention(t *testing.T) {
	client, _ := tlsPipePair(t)
	defer client.Close()

	clientSession := newSession(client, &SessionConfig{}, "", false)
	if clientSession.peerLabel() != "" {
		t.Fatalf("client-side peer label should be empty")
	}

	serverSession := newSession(client, &SessionConfig{}, "some-id", true)
	if serverSession.peerLabel() != "some-id" {
		t.Fatalf("server-side peer label should be the session id")
	}
}
