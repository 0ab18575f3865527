package tls13d

// maxBufferedReadBytes bounds the internal DeliverAppData queue used
// while no application read callback is installed (spec.md §4.6).
const maxBufferedReadBytes = 1 << 20

// sideHooks is implemented by Client and Server to supply the handful of
// behaviors the action interpreter can't share: what "handshake success"
// means, how errors get delivered, and how the client-only/server-only
// actions are handled. Everything else in the interpreter — MutateState,
// WriteToSocket, DeliverAppData, WaitForData, ReportError's "stop
// processing" rule — is identical for both sides and lives on base.
type sideHooks interface {
	// onError is called once, after base has already moved State.Phase
	// to PhaseError, to deliver e to whichever callback(s) should see it.
	onError(e error)
	// onSpecial handles any Action not recognized by base.applyActions
	// (ReportHandshakeSuccess, ReportEarlyHandshakeSuccess,
	// ReportEarlyWriteFailed, AttemptVersionFallback). It returns true if
	// the interpreter should stop processing the rest of the action list.
	onSpecial(a Action) (stop bool)
	// failPendingOnClose fails any writes the side is holding on behalf
	// of the application (client: queued early writes) with a
	// cancellation error, and resolves the handshake callback with an
	// error if it hasn't fired yet.
	failPendingOnClose()
}

// base is the shared driver machinery: event ordering, action
// interpretation for the common actions, the read/write path against the
// transport, and close/cancellation semantics (spec.md §4.2, §4.5, §4.6,
// §5). Client and Server each embed a base and supply the sideHooks it
// needs to distinguish their action vocabularies.
type base struct {
	isClient  bool
	transport Transport
	loop      *EventLoop
	machine   StateMachine
	config    *Config
	state     State

	appReadCB     *ReadCallback
	bufferedReads [][]byte
	bufferedBytes int

	// actionInFlight is true exactly while an asynchronous Outcome from
	// the state machine is outstanding. No further events may be
	// dispatched to the state machine while it is true (spec.md §5).
	actionInFlight bool
	eventQueue     []func()

	// queuedReadBytes holds the raw bytes of SocketData events that got
	// deferred behind actionInFlight, so AttemptVersionFallback can hand
	// the fallback handler a continuous stream (spec.md §4.1).
	queuedReadBytes [][]byte

	// terminated is set by closeNow/closeWithReset and checked before
	// applying any actions from an outcome that resolves afterward, so a
	// driver torn down mid-flight never touches state or callbacks again
	// (spec.md §5, §9's destruction guard).
	terminated bool

	replaySafe bool
	replayCB   func()

	// lastErr is the most recent error the state machine reported,
	// surfaced to writes submitted after the connection has already gone
	// terminal (spec.md §8 S2: such writes fail their callback with
	// writeErr(0, ...) immediately, without another round trip through
	// the state machine).
	lastErr error
}

func newBase(isClient bool, transport Transport, config *Config, machine StateMachine) base {
	config.init()
	return base{
		isClient:  isClient,
		transport: transport,
		config:    config,
		machine:   machine,
		state:     State{Phase: PhaseUninitialized},
	}
}

// dispatch runs fn immediately, unless an action is currently in flight,
// in which case fn is queued and run once the loop is free again, in
// order (spec.md §5's ordering guarantee).
func (b *base) dispatch(fn func()) {
	if b.terminated {
		return
	}
	if b.actionInFlight {
		b.eventQueue = append(b.eventQueue, fn)
		return
	}
	fn()
}

func (b *base) drainQueue() {
	if b.terminated || b.actionInFlight {
		return
	}
	if len(b.eventQueue) == 0 {
		return
	}
	next := b.eventQueue[0]
	b.eventQueue = b.eventQueue[1:]
	next()
}

// runOutcome applies oc's actions (waiting first if oc is not yet ready),
// then invokes after, then drains whatever queued up behind it. If the
// driver is terminated before an asynchronous oc resolves, its actions
// are silently dropped (spec.md §5's cancellation semantics: "suppress,
// do not abort").
func (b *base) runOutcome(oc Outcome, side sideHooks, after func()) {
	apply := func(actions Actions) {
		if b.terminated {
			return
		}
		b.applyActions(actions, side)
		if after != nil {
			after()
		}
	}
	if oc.Ready {
		apply(oc.Actions)
		b.drainQueue()
		return
	}
	b.actionInFlight = true
	oc.Await(func(actions Actions, err error) {
		if b.terminated {
			return
		}
		b.actionInFlight = false
		if err != nil {
			b.applyActions(Actions{ReportError{Err: err}}, side)
			b.drainQueue()
			return
		}
		apply(actions)
		b.drainQueue()
	})
}

// applyActions is the visitor from spec.md §4.2: it applies every action
// in order and in full, unless a ReportError appears, in which case
// nothing after it executes (Testable Property 1).
func (b *base) applyActions(actions Actions, side sideHooks) {
	for _, a := range actions {
		if b.terminated {
			return
		}
		switch act := a.(type) {
		case MutateState:
			act.Fn(&b.state)
		case WriteToSocket:
			b.transport.WriteChain(act.Callback, act.Bytes, act.Flags)
		case DeliverAppData:
			if b.deliverAppData(act.Data, side) {
				return
			}
		case WaitForData:
			// Control returns to the transport's read loop.
		case ReportError:
			b.state.Phase = PhaseError
			b.lastErr = act.Err
			driverLog(b.sideLabel()).WithError(act.Err).Warn("handshake reported error")
			side.onError(act.Err)
			return
		default:
			if side.onSpecial(a) {
				return
			}
		}
	}
}

// deliverAppData hands data to the installed read callback, or buffers it
// (bounded) until one is installed (spec.md §4.2, §4.6). It reports
// whether the caller should stop processing the rest of the action list
// (true only on buffer overflow, which is treated like a driver-raised
// ReportError).
func (b *base) deliverAppData(data []byte, side sideHooks) bool {
	if b.appReadCB != nil && b.appReadCB.OnData != nil {
		b.appReadCB.OnData(data)
		return false
	}
	if b.bufferedBytes+len(data) > maxBufferedReadBytes {
		b.state.Phase = PhaseError
		side.onError(ErrReadBufferOverflow)
		return true
	}
	b.bufferedReads = append(b.bufferedReads, data)
	b.bufferedBytes += len(data)
	return false
}

// setReadCallback installs (or clears) the application read callback,
// flushing any buffered decrypted data in arrival order the moment a
// non-nil callback is installed (spec.md §4.6).
func (b *base) setReadCallback(cb *ReadCallback) {
	b.appReadCB = cb
	if cb == nil || cb.OnData == nil {
		return
	}
	for _, buf := range b.bufferedReads {
		cb.OnData(buf)
	}
	b.bufferedReads = nil
	b.bufferedBytes = 0
}

// onSocketData is wired as the transport's ReadCallback.OnData and feeds
// SocketData events to the state machine, respecting the in-flight
// ordering rule.
func (b *base) onSocketData(data []byte, side sideHooks) {
	if b.actionInFlight {
		b.queuedReadBytes = append(b.queuedReadBytes, data)
	}
	b.dispatch(func() {
		oc := b.machine.SocketData(&b.state, data)
		b.runOutcome(oc, side, nil)
	})
}

// takeQueuedReadBytes drains and concatenates whatever raw bytes arrived
// from the transport while an action was in flight, for use by
// AttemptVersionFallback (spec.md §4.1: the fallback handler must see a
// continuous stream).
func (b *base) takeQueuedReadBytes() []byte {
	var total int
	for _, c := range b.queuedReadBytes {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range b.queuedReadBytes {
		out = append(out, c...)
	}
	b.queuedReadBytes = nil
	return out
}

func (b *base) onTransportEOF(side sideHooks) {
	if b.appReadCB != nil && b.appReadCB.OnEOF != nil {
		b.appReadCB.OnEOF()
	}
}

func (b *base) onTransportError(err error, side sideHooks) {
	if b.appReadCB != nil && b.appReadCB.OnError != nil {
		b.appReadCB.OnError(err)
	}
}

// closeGraceful implements close(): if an action is outstanding, the
// AppClose event waits behind it (via dispatch); once applied, the
// resulting close_notify write is allowed to flush before the transport
// closes (spec.md §4.5).
func (b *base) closeGraceful(side sideHooks) {
	b.dispatch(func() {
		oc := b.machine.AppClose(&b.state)
		b.runOutcome(oc, side, func() {
			if b.transport != nil {
				b.transport.Close()
			}
		})
	})
}

// closeImmediate implements close_now()/close_with_reset(): synchronously
// emits AppClose, makes a best-effort attempt to flush its close_notify,
// fails pending writes and the read/handshake callbacks, then forces the
// transport down (spec.md §4.5).
func (b *base) closeImmediate(withReset bool, side sideHooks) {
	if b.terminated {
		return
	}
	b.terminated = true

	oc := b.machine.AppClose(&b.state)
	if oc.Ready {
		for _, a := range oc.Actions {
			switch act := a.(type) {
			case MutateState:
				act.Fn(&b.state)
			case WriteToSocket:
				if b.transport != nil {
					b.transport.WriteChain(nil, act.Bytes, act.Flags)
				}
			}
		}
	}
	// AppClose's own MutateState moves phase to Error (spec.md §4.5); a
	// forced close additionally means no further transitions ever occur.
	b.state.Phase = PhaseClosed

	side.failPendingOnClose()

	if b.appReadCB != nil && b.appReadCB.OnEOF != nil {
		b.appReadCB.OnEOF()
	}

	driverLog(b.sideLabel()).WithField("reset", withReset).Info("driver closed immediately")

	if b.transport == nil {
		return
	}
	if withReset {
		b.transport.CloseWithReset()
	} else {
		b.transport.CloseNow()
	}
}

// signalReplaySafe fires the replay-safety callback exactly once, at the
// monotone false→true transition (spec.md §4.4, Testable Property 3).
func (b *base) signalReplaySafe() {
	if b.replaySafe {
		return
	}
	b.replaySafe = true
	if b.replayCB != nil {
		cb := b.replayCB
		cb()
	}
}

func (b *base) isReplaySafe() bool { return b.replaySafe }

// good reports false, rather than panicking, while a Client dials its
// underlying transport: there is nothing "good" about a connection whose
// socket isn't open yet.
func (b *base) good() bool {
	if b.transport == nil {
		return false
	}
	return b.state.Phase != PhaseError && b.state.Phase != PhaseClosed && b.transport.Good()
}

func (b *base) errored() bool { return b.state.Phase == PhaseError }

func (b *base) connecting() bool {
	if b.transport == nil {
		return true
	}
	return b.transport.Connecting()
}

// lastError returns the most recent state-machine error, or ErrClosed if
// the connection went terminal without one (e.g. a graceful close).
func (b *base) lastError() error {
	if b.lastErr != nil {
		return b.lastErr
	}
	return ErrClosed
}

func (b *base) sideLabel() string {
	if b.isClient {
		return "client"
	}
	return "server"
}
