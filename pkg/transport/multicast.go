package transport

import (
	"golang.org/x/sync/errgroup"
)

// Multicast sends data to every session currently tracked by the Acceptor,
// independently and concurrently, and waits for all of them to finish
// enqueueing (spec §5: "send to each session independently and wait for
// all"). It returns the first error encountered, if any, but does not stop
// sending to the remaining sessions when one fails -- each session's Send
// is independent of the others' outcome.
func (a *Acceptor) Multicast(data []byte) error {
	sessions := a.Sessions()

	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			_, err := s.Send(data)
			return err
		})
	}
	return g.Wait()
}

// MulticastWait behaves like Multicast but additionally waits for every
// payload to actually finish sending (or be dropped) before returning,
// rather than just for the enqueue to succeed.
func (a *Acceptor) MulticastWait(data []byte) error {
	sessions := a.Sessions()

	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			p, err := s.Send(data)
			if err != nil {
				return err
			}
			return p.Wait()
		})
	}
	return g.Wait()
}
