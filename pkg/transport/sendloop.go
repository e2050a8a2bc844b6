package transport

// This file implements component F's send side: a single in-flight sender
// per session, gated by an atomic flag so at most one goroutine ever drains
// the queue at a time, with a recheck-under-lock on exit to avoid the
// classic lost-wakeup race between "queue just went empty" and "a new
// payload was enqueued".

// kickSendLoop enqueues already happened by the time this is called; it
// starts the drain goroutine if one isn't already running. The enqueue
// itself runs outside sendMu; the gate test takes sendMu, the lock the
// drain loop holds while it rechecks the queue and releases the gate, so
// a concurrent drain-loop exit can't miss the new payload (see
// runSendLoop).
func (s *Session) kickSendLoop() {
	s.sendMu.Lock()
	shouldStart := s.inFlight.CompareAndSwap(false, true)
	s.sendMu.Unlock()

	if shouldStart {
		go s.runSendLoop()
	}
}

// runSendLoop drains the send queue until empty, then releases the
// in-flight gate under sendMu -- the same lock Send's enqueue path takes --
// so a payload enqueued exactly as the queue empties is never stranded
// with the gate held and no goroutine left to process it.
func (s *Session) runSendLoop() {
	for {
		for {
			p := s.queue.Dequeue()
			if p == nil {
				break
			}
			s.writeOne(p)
		}

		s.sendMu.Lock()
		if s.queue.Len() == 0 {
			s.inFlight.Store(false)
			s.sendMu.Unlock()
			return
		}
		s.sendMu.Unlock()
	}
}

// writeOne writes a single payload's frame (or raw bytes, in unaware mode)
// to the connection and completes its latch.
func (s *Session) writeOne(p *Payload) {
	if s.token.Cancelled() {
		p.complete(NewError(KindDisposed, "session disposed", nil))
		return
	}

	peer := s.peerLabel()
	s.observer.OnSendStart(peer)

	var err error
	if s.cfg.PayloadAware {
		framed := s.codec.AddHeader(p.Data)
		_, err = s.conn.Write(framed)
	} else {
		_, err = s.conn.Write(p.Data)
	}

	if err != nil {
		wrapped := NewError(KindSocketFatal, "write failed", err)
		p.complete(wrapped)
		s.observer.OnSendException(peer, wrapped)
		_ = s.terminate(wrapped)
		return
	}

	// Stats count user payload bytes, excluding framing overhead (spec's
	// bytes-sent invariant).
	s.stats.BytesSent.Add(int64(len(p.Data)))
	s.stats.FramesSent.Add(1)
	p.complete(nil)
	s.observer.OnSendComplete(peer)
}

// terminate cancels the session's token (if not already cancelled),
// reports the cause via OnConnectionException, and closes the connection.
// Called by either loop on a fatal error; only the first caller's
// Cancel() wins, so OnConnectionTerminated fires exactly once regardless
// of which loop noticed the failure first.
func (s *Session) terminate(cause error) error {
	if s.token.Cancel() {
		peer := s.peerLabel()
		if cause != nil {
			s.observer.OnConnectionException(peer, cause)
		}
		s.observer.OnConnectionTerminated(peer)
	}
	return s.conn.Close()
}
