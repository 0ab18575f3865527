package tls13d

// ConnectOptions carries the per-connection parameters the client passes
// into the state machine's Connect event (spec.md §4.1's connect(...)).
type ConnectOptions struct {
	ServerName  string
	PSKIdentity string
	NextProtos  []string
}

// AppWrite is a request to send application bytes once the connection is
// past the handshake (or, as EarlyAppWrite, during 0-RTT).
type AppWrite struct {
	Bytes    []byte
	Callback func(error)
	Flags    WriteFlags
}

// EarlyAppWrite is the 0-RTT counterpart of AppWrite.
type EarlyAppWrite struct {
	Bytes    []byte
	Callback func(error)
	Flags    WriteFlags
}

// PendingEarlyWrite is a write the client driver is holding because it
// would overflow the early-data budget, or because an earlier write in
// the same connection was already held (spec.md §3/§4.3: once a write is
// held, every later write is held too, to preserve send order across the
// early/post-handshake boundary).
type PendingEarlyWrite struct {
	Bytes    []byte
	Callback func(error)
	Flags    WriteFlags
}

// Outcome is what a single StateMachine invocation returns: either an
// Actions list ready right now, or a registration point for one that
// will be ready later on the same event loop (spec.md §5's "asynchronous
// action futures"). Exactly one of the two modes applies:
//   - Ready == true: Actions is valid immediately.
//   - Ready == false: the driver must call Await exactly once, and must
//     not dispatch further events to the state machine until the
//     callback passed to Await fires.
type Outcome struct {
	Ready   bool
	Actions Actions

	// Await registers cb to be invoked exactly once when the actions are
	// available. Only valid to call when Ready is false.
	Await func(cb func(Actions, error))
}

// Now wraps an already-known Actions list as a ready Outcome.
func Now(actions Actions) Outcome {
	return Outcome{Ready: true, Actions: actions}
}

// StateMachine is the pure handshake collaborator: a function from
// (current State, event) to (Actions or a future of Actions). It never
// touches the transport and never mutates State directly — it only
// describes intent, via the Actions it returns (spec.md §2, §6).
type StateMachine interface {
	Connect(state *State, opts ConnectOptions) Outcome
	Accept(state *State) Outcome
	SocketData(state *State, buf []byte) Outcome
	AppWrite(state *State, write AppWrite) Outcome
	EarlyAppWrite(state *State, write EarlyAppWrite) Outcome
	AppClose(state *State) Outcome
}

// Future is a minimal resolve-once primitive backing Outcome.Await for
// state machines that genuinely need to suspend (e.g. waiting on an
// external certificate verifier). It is intentionally not goroutine-safe:
// the whole core is single-threaded/run-to-completion, and Resolve is
// expected to be called from the same event loop that created the
// Future (spec.md §5).
type Future struct {
	resolved bool
	actions  Actions
	err      error
	waiter   func(Actions, error)
}

// NewFuture returns an unresolved Future paired with an Outcome that
// waits on it.
func NewFuture() (*Future, Outcome) {
	f := &Future{}
	outcome := Outcome{
		Ready: false,
		Await: func(cb func(Actions, error)) {
			if f.resolved {
				cb(f.actions, f.err)
				return
			}
			f.waiter = cb
		},
	}
	return f, outcome
}

// Resolve makes the future's result available, invoking the waiter if
// one has already been registered.
func (f *Future) Resolve(actions Actions, err error) {
	f.resolved = true
	f.actions = actions
	f.err = err
	if f.waiter != nil {
		w := f.waiter
		f.waiter = nil
		w(actions, err)
	}
}
