package tls13d

// Action is the declarative intent a StateMachine invocation returns to
// the driver. It is a closed set of concrete types (spec.md §3); the
// driver's interpreter switches on the concrete type rather than calling
// back into the action, so the state machine stays free of any
// dependency on the driver or the transport (spec.md §9's replacement for
// the source's static-visitor polymorphism).
type Action interface {
	isAction()
}

// DeliverAppData hands decrypted application bytes to the read callback,
// or to the internal buffer if none is installed (spec.md §4.2/§4.6).
type DeliverAppData struct {
	Data []byte
}

// WriteFlags carries transport write hints (currently just whether the
// write may be coalesced with the next one); it exists as its own type
// so the Transport contract doesn't need to grow parameters over time.
type WriteFlags struct {
	CorkNext bool
}

// WriteToSocket enqueues bytes on the transport, with an optional
// completion callback threaded through to the transport's write-chain.
type WriteToSocket struct {
	Bytes    []byte
	Flags    WriteFlags
	Callback func(error)
}

// ReportHandshakeSuccess signals that the full handshake has completed.
// EarlyDataAccepted only has meaning for the client driver.
type ReportHandshakeSuccess struct {
	EarlyDataAccepted bool
}

// ReportEarlyHandshakeSuccess signals that the client may now start
// sending 0-RTT data, up to MaxEarlyDataSize bytes.
type ReportEarlyHandshakeSuccess struct {
	MaxEarlyDataSize uint32
}

// ReportEarlyWriteFailed signals that an early write never made it onto
// the wire (client only): the write itself is not an error, just not
// early.
type ReportEarlyWriteFailed struct {
	Write PendingEarlyWrite
}

// ReportError terminates the current action list: no action after this
// one in the same list is applied (spec.md §4.2, Testable Property 1).
type ReportError struct {
	Err error
}

// WaitForData tells the driver control returns to the transport's read
// loop; no further actions are expected until more bytes arrive.
type WaitForData struct{}

// MutateState applies Fn to the driver's State. It is the only path by
// which State changes (spec.md §3, §9).
type MutateState struct {
	Fn Mutator
}

// AttemptVersionFallback (server only) signals that the client asked for
// a pre-1.3 version; ClientHello carries the original bytes the fallback
// handler needs, which the driver must prepend to any bytes already
// buffered from the transport (spec.md §4.1/§4.2).
type AttemptVersionFallback struct {
	ClientHello []byte
}

func (DeliverAppData) isAction()              {}
func (WriteToSocket) isAction()               {}
func (ReportHandshakeSuccess) isAction()      {}
func (ReportEarlyHandshakeSuccess) isAction() {}
func (ReportEarlyWriteFailed) isAction()      {}
func (ReportError) isAction()                 {}
func (WaitForData) isAction()                 {}
func (MutateState) isAction()                 {}
func (AttemptVersionFallback) isAction()      {}

// Actions is the ordered action list a single StateMachine invocation
// returns.
type Actions []Action
