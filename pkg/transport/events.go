package transport

import (
	"time"

	"github.com/gemstone/communication/pkg/protolog"
)

// Logger is protolog.Logger, re-exported so callers configuring a
// SessionConfig don't need to import pkg/protolog directly.
type Logger = protolog.Logger

// Observer receives the public observable events of spec §6. Dispatch is
// synchronous with respect to the emitting goroutine and happens outside
// any in-flight-gate critical section (design note: "event emission from
// inside locked regions"); implementations must not block for long, since
// a blocking Observer stalls the loop that raised the event.
//
// peer is empty on the client side and the session id on the server side,
// matching spec §6 ("For the server variants, peer is the session id.").
type Observer interface {
	// OnConnectionAttempt fires when a connect/accept sequence begins.
	OnConnectionAttempt(sessionID string)

	// OnConnectionEstablished fires once the handshake (TLS, plus the
	// optional credential sub-handshake) completes successfully.
	OnConnectionEstablished(sessionID string)

	// OnConnectionTerminated fires exactly once per session, raised by
	// whichever loop's token.Cancel() call returns first=true.
	OnConnectionTerminated(sessionID string)

	// OnConnectionException fires on a fatal connection-layer error.
	OnConnectionException(sessionID string, err error)

	// OnSendStart fires when a send loop iteration begins writing one
	// payload.
	OnSendStart(sessionID string)

	// OnSendComplete fires once that payload's write succeeds.
	OnSendComplete(sessionID string)

	// OnSendException fires on a write failure or a dropped payload
	// (spec's QueueOverflow is reported this way, and the session
	// continues).
	OnSendException(sessionID string, err error)

	// OnReceiveReady fires once a payload of size bytes has landed in
	// the session's receive buffer and Read is safe to call.
	OnReceiveReady(sessionID string, size int)

	// OnReceiveComplete fires with a copy of the received payload (the
	// caller may retain buf beyond the call).
	OnReceiveComplete(sessionID string, buf []byte, size int)

	// OnReceiveException fires on a recoverable receive-side error; the
	// loop attempts to resume afterward.
	OnReceiveException(sessionID string, err error)
}

// NopObserver implements Observer with no-op methods; embed it to
// implement only the events you care about.
type NopObserver struct{}

func (NopObserver) OnConnectionAttempt(string)          {}
func (NopObserver) OnConnectionEstablished(string)      {}
func (NopObserver) OnConnectionTerminated(string)       {}
func (NopObserver) OnConnectionException(string, error) {}
func (NopObserver) OnSendStart(string)                  {}
func (NopObserver) OnSendComplete(string)                {}
func (NopObserver) OnSendException(string, error)        {}
func (NopObserver) OnReceiveReady(string, int)           {}
func (NopObserver) OnReceiveComplete(string, []byte, int) {}
func (NopObserver) OnReceiveException(string, error)      {}

var _ Observer = NopObserver{}

// fanoutObserver dispatches each callback to a user Observer and mirrors it
// as a protolog.Event to a Logger. Either may be nil.
type fanoutObserver struct {
	observer Observer
	logger   Logger
}

func newFanoutObserver(cfg *SessionConfig) fanoutObserver {
	obs := cfg.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	return fanoutObserver{observer: obs, logger: cfg.Logger}
}

func (f fanoutObserver) log(ev protolog.Event) {
	if f.logger != nil {
		f.logger.Log(ev)
	}
}

func (f fanoutObserver) OnConnectionAttempt(id string) {
	f.observer.OnConnectionAttempt(id)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindConnectionAttempt})
}

func (f fanoutObserver) OnConnectionEstablished(id string) {
	f.observer.OnConnectionEstablished(id)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindConnectionEstablished})
}

func (f fanoutObserver) OnConnectionTerminated(id string) {
	f.observer.OnConnectionTerminated(id)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindConnectionTerminated})
}

func (f fanoutObserver) OnConnectionException(id string, err error) {
	f.observer.OnConnectionException(id, err)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindConnectionException, Err: err.Error()})
}

func (f fanoutObserver) OnSendStart(id string) {
	f.observer.OnSendStart(id)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindSendStart})
}

func (f fanoutObserver) OnSendComplete(id string) {
	f.observer.OnSendComplete(id)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindSendComplete})
}

func (f fanoutObserver) OnSendException(id string, err error) {
	f.observer.OnSendException(id, err)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindSendException, Err: err.Error()})
}

func (f fanoutObserver) OnReceiveReady(id string, size int) {
	f.observer.OnReceiveReady(id, size)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindReceiveReady, Size: size})
}

func (f fanoutObserver) OnReceiveComplete(id string, buf []byte, size int) {
	f.observer.OnReceiveComplete(id, buf, size)
	f.log(protolog.NewPayloadEvent(protolog.KindReceiveComplete, id, buf))
}

func (f fanoutObserver) OnReceiveException(id string, err error) {
	f.observer.OnReceiveException(id, err)
	f.log(protolog.Event{Timestamp: time.Now(), SessionID: id, Kind: protolog.KindReceiveException, Err: err.Error()})
}

var _ Observer = fanoutObserver{}
