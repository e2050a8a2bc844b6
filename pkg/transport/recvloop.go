package transport

import (
	"errors"
	"io"
)

// runRecvLoop is component F's receive side. In PayloadAware mode it
// alternates between a waiting-for-header sub-state and a waiting-for-body
// sub-state (spec §4.F); in unaware mode it reads whatever is available
// into the receive buffer directly and raises OnReceiveReady for each read.
// It runs for the lifetime of the session, exiting only when the token is
// cancelled or the peer goes away.
func (s *Session) runRecvLoop() {
	defer s.recvLoopDone()

	for !s.token.Cancelled() {
		var (
			payload []byte
			err     error
		)
		if s.cfg.PayloadAware {
			payload, err = s.readFrame()
		} else {
			payload, err = s.readUnframed()
		}

		if err != nil {
			if s.handleRecvError(err) {
				continue
			}
			return
		}

		s.storeReceived(payload)
	}
}

func (s *Session) recvLoopDone() {
	// The loop only exits after the token was cancelled or the connection
	// failed. Close finishes the teardown: it fails any still-queued
	// payloads with ErrDisposed and closes Done. Close is idempotent, so
	// this is harmless when the caller already closed the session.
	_ = s.Close()
}

func (s *Session) readFrame() ([]byte, error) {
	length, err := ReadFrameHeader(s.conn, s.codec)
	if err != nil {
		return nil, err
	}

	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(s.conn, body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// readUnframed performs one Read into a fixed-size scratch buffer and
// returns the bytes actually read. Used when PayloadAware is false: the
// receive loop has no way to know where one payload ends and the next
// begins, so it surfaces whatever arrived in a single read as one payload
// (spec's "payload-unaware" mode: framing is entirely the caller's concern).
func (s *Session) readUnframed() ([]byte, error) {
	buf := make([]byte, 64*1024)
	n, err := s.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (s *Session) storeReceived(payload []byte) {
	peer := s.peerLabel()

	s.recvMu.Lock()
	s.recvBuf = payload
	s.readIdx = 0
	s.recvMu.Unlock()

	s.stats.BytesReceived.Add(int64(len(payload)))
	s.stats.FramesReceived.Add(1)

	s.observer.OnReceiveReady(peer, len(payload))
	s.observer.OnReceiveComplete(peer, payload, len(payload))
}

// handleRecvError classifies a receive-side error, reports it, and returns
// whether the loop should keep running. A clean EOF is PeerGone and always
// terminates (spec §7); any other non-framing read error, a reset
// included, is SocketFatal and also terminates. Terminating errors are
// reported through terminate (OnConnectionException, then
// OnConnectionTerminated), not through OnReceiveException. A framing error
// is reported via OnReceiveException and the loop resumes in the same mode
// rather than terminating or falling back to unframed reads -- per the
// design notes' decision on the framing Open Question, since nothing in
// the wire protocol signals a mode change mid-stream.
func (s *Session) handleRecvError(err error) (resume bool) {
	peer := s.peerLabel()

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		_ = s.terminate(NewError(KindPeerGone, "peer closed the connection", err))
		return false
	}

	var frameErr *Error
	if errors.As(err, &frameErr) && frameErr.Kind == KindFramingError {
		s.observer.OnReceiveException(peer, frameErr)
		return true
	}

	_ = s.terminate(NewError(KindSocketFatal, "read failed", err))
	return false
}

// Read copies up to len(buf) bytes starting at the session's current read
// index out of the most recently completed receive payload, advancing the
// index and wrapping it back to 0 once it reaches the end of the buffer,
// matching the pull-style read spec §4.C describes for callers that want to
// consume a payload incrementally rather than all at once from
// OnReceiveComplete. Returns ErrNoReceiveBuffer if nothing has been
// received yet; reaching the end of the buffer is not itself a failure.
func (s *Session) Read(buf []byte) (int, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if s.recvBuf == nil {
		return 0, ErrNoReceiveBuffer
	}
	if s.readIdx >= len(s.recvBuf) {
		s.readIdx = 0
	}

	n := copy(buf, s.recvBuf[s.readIdx:])
	s.readIdx += n
	return n, nil
}
