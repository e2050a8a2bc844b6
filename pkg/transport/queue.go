package transport

import "sync"

// Payload is one outbound unit of work: the bytes to send and a latch the
// send loop closes once the write has been attempted (spec §3's Payload:
// "bytes plus a completion latch the sender may wait on").
type Payload struct {
	Data []byte

	done chan struct{}
	err  error
}

// NewPayload wraps data in a Payload with an unclosed latch.
func NewPayload(data []byte) *Payload {
	return &Payload{Data: data, done: make(chan struct{})}
}

// Wait blocks until the send loop has attempted this payload's write, then
// returns the outcome. Safe to call from any number of goroutines.
func (p *Payload) Wait() error {
	<-p.done
	return p.err
}

// Pending reports whether the latch has not yet been closed.
func (p *Payload) Pending() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// complete closes the latch exactly once, recording err. Called by the send
// loop (sendloop.go) or by the queue-drop path below.
func (p *Payload) complete(err error) {
	select {
	case <-p.done:
		// Already completed; nothing to do. Shouldn't happen in
		// practice, since each payload is owned by exactly one queue
		// slot, but guards against a double-drain.
	default:
		p.err = err
		close(p.done)
	}
}

// SendQueue is the bounded outbound queue of component C. Enqueue never
// blocks: it opportunistically drops the oldest backlog before accepting a
// new payload once the queue reaches its configured limit (spec §4.C).
type SendQueue struct {
	mu      sync.Mutex
	items   []*Payload
	maxSize int // -1 disables dropping
}

// NewSendQueue creates a SendQueue honoring maxSize (see
// SessionConfig.MaxSendQueueSize; -1 disables the drop policy).
func NewSendQueue(maxSize int) *SendQueue {
	return &SendQueue{maxSize: maxSize}
}

// Enqueue appends p, first running the drop policy if the queue is at
// capacity. It returns the payloads that were dumped to make room (possibly
// nil), so the caller can complete them and raise one OnSendException for
// the whole drop outside the queue's lock.
func (q *SendQueue) Enqueue(p *Payload) (dumped []*Payload) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize >= 0 && len(q.items) >= q.maxSize {
		dumped = q.items
		q.items = nil
	}
	q.items = append(q.items, p)
	return dumped
}

// Dequeue removes and returns the oldest payload, or nil if the queue is
// empty.
func (q *SendQueue) Dequeue() *Payload {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p
}

// Len reports the current backlog size.
func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every queued payload, completing none of them;
// the caller is responsible for completing each (used on session teardown
// to fail outstanding sends with ErrDisposed).
func (q *SendQueue) Drain() []*Payload {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// CompleteDumped signals every payload in dumped with ErrQueueOverflow. The
// caller (session send-enqueue path) invokes this outside the queue's lock.
func CompleteDumped(dumped []*Payload) {
	for _, p := range dumped {
		p.complete(NewError(KindQueueOverflow, "queue dumped", nil))
	}
}
