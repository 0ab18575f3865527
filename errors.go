package tls13d

import "errors"

// Misuse and lifecycle errors surfaced directly to callbacks, never routed
// through the handshake state machine (spec.md §7, "Misuse errors").
var (
	ErrAlreadyOpen          = errors.New("tls13d: connect called on a driver whose transport is already open")
	ErrNoUnderlyingSocket   = errors.New("tls13d: no underlying transport and no address to dial")
	ErrHandshakeNotComplete = errors.New("tls13d: operation requires a completed handshake")
	ErrEarlyDataRejected    = errors.New("tls13d: 0-RTT data was rejected by the peer")
	ErrClosed               = errors.New("tls13d: driver is closed")
	ErrReadBufferOverflow   = errors.New("tls13d: undelivered application data exceeded the internal buffer bound")
)

// writeErr pairs a byte offset with the underlying cause, mirroring the
// teacher's write-completion error shape (mint's RecordLayer write
// errors report a partial-write count; fizz's WriteCallback::writeErr
// reports the same).
type writeErr struct {
	bytesWritten int
	cause        error
}

func (e *writeErr) Error() string {
	return e.cause.Error()
}

func (e *writeErr) Unwrap() error { return e.cause }

func newWriteErr(n int, cause error) *writeErr {
	return &writeErr{bytesWritten: n, cause: cause}
}
