package token_test

import (
	"sync"
	"testing"

	"github.com/gemstone/communication/pkg/token"
)

func TestCancelIsIdempotent(t *testing.T) {
	var tok token.Token

	if tok.Cancelled() {
		t.Fatalf("zero value token reports cancelled")
	}

	if !tok.Cancel() {
		t.Fatalf("first Cancel call should report first=true")
	}
	if !tok.Cancelled() {
		t.Fatalf("token should be cancelled after Cancel")
	}
	if tok.Cancel() {
		t.Fatalf("second Cancel call should report first=false")
	}
}

func TestCancelExactlyOneFirstUnderConcurrency(t *testing.T) {
	var tok token.Token

	const n = 200
	var wg sync.WaitGroup
	var firstCount atomic64

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if tok.Cancel() {
				firstCount.add(1)
			}
		}()
	}
	wg.Wait()

	if got := firstCount.load(); got != 1 {
		t.Fatalf("expected exactly 1 first-flipper, got %d", got)
	}
}

// atomic64 avoids importing sync/atomic's typed wrappers twice in the test
// for a single counter.
type atomic64 struct {
	mu sync.Mutex
	n  int
}

func (a *atomic64) add(d int) {
	a.mu.Lock()
	a.n += d
	a.mu.Unlock()
}

func (a *atomic64) load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}
