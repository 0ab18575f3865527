package tls13d

import (
	"io"
	"net"
	"sync/atomic"
)

// ReadCallback is the set of deliveries a Transport makes to whoever is
// currently reading it: owned byte buffers, EOF, or a transport error
// (spec.md §6's transport contract). Grouping them in one struct instead
// of three separately-registered callbacks keeps the "exactly one
// listener at a time" invariant obvious at the call site.
type ReadCallback struct {
	OnData  func([]byte)
	OnEOF   func()
	OnError func(error)
}

// Transport is the asynchronous byte transport the driver sits on top
// of. It is a below-the-driver adapter, not the driver itself: it knows
// nothing about handshakes or application semantics (spec.md §4.1/§6).
type Transport interface {
	SetReadCallback(cb *ReadCallback)
	WriteChain(cb func(error), bytes []byte, flags WriteFlags)

	Good() bool
	Connecting() bool
	Error() bool
	IsDetachable() bool

	Close()
	CloseNow()
	CloseWithReset()

	AttachEventLoop(loop *EventLoop)
	Unwrap() interface{}
}

// NetTransport is the default Transport, adapting a net.Conn. Reads run
// on a dedicated background goroutine (net.Conn.Read is blocking) that
// posts each delivery onto the owning EventLoop, so all callback
// invocation still happens on the loop, run to completion, per the
// concurrency model in spec.md §5. Writes are not posted: WriteChain
// calls net.Conn.Write synchronously on the caller's goroutine, while the
// reader goroutine may be reading the same connection.
type NetTransport struct {
	conn net.Conn
	loop *EventLoop

	cb *ReadCallback

	connecting int32
	closed     int32
	erred      int32

	readDone chan struct{}
}

// NewNetTransport wraps an already-connected net.Conn.
func NewNetTransport(conn net.Conn) *NetTransport {
	return &NetTransport{conn: conn, readDone: make(chan struct{})}
}

func (t *NetTransport) AttachEventLoop(loop *EventLoop) {
	t.loop = loop
}

func (t *NetTransport) SetReadCallback(cb *ReadCallback) {
	t.cb = cb
	if cb != nil {
		t.startReading()
	}
}

func (t *NetTransport) startReading() {
	go func() {
		buf := make([]byte, 16384)
		for {
			n, err := t.conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				t.deliver(func() {
					if t.cb != nil && t.cb.OnData != nil {
						t.cb.OnData(data)
					}
				})
			}
			if err != nil {
				if err == io.EOF {
					t.deliver(func() {
						if t.cb != nil && t.cb.OnEOF != nil {
							t.cb.OnEOF()
						}
					})
				} else {
					atomic.StoreInt32(&t.erred, 1)
					t.deliver(func() {
						if t.cb != nil && t.cb.OnError != nil {
							t.cb.OnError(err)
						}
					})
				}
				close(t.readDone)
				return
			}
		}
	}()
}

func (t *NetTransport) deliver(f func()) {
	if t.loop == nil {
		f()
		return
	}
	t.loop.Post(f)
}

func (t *NetTransport) WriteChain(cb func(error), bytes []byte, flags WriteFlags) {
	if atomic.LoadInt32(&t.closed) == 1 {
		if cb != nil {
			cb(newWriteErr(0, ErrClosed))
		}
		return
	}
	n, err := t.conn.Write(bytes)
	if err != nil {
		atomic.StoreInt32(&t.erred, 1)
	}
	if cb != nil {
		if err != nil {
			cb(newWriteErr(n, err))
		} else {
			cb(nil)
		}
	}
}

func (t *NetTransport) Good() bool       { return atomic.LoadInt32(&t.closed) == 0 && atomic.LoadInt32(&t.erred) == 0 }
func (t *NetTransport) Connecting() bool { return atomic.LoadInt32(&t.connecting) == 1 }
func (t *NetTransport) Error() bool      { return atomic.LoadInt32(&t.erred) == 1 }
func (t *NetTransport) IsDetachable() bool {
	return atomic.LoadInt32(&t.closed) == 0
}

func (t *NetTransport) Close() {
	atomic.StoreInt32(&t.closed, 1)
	t.conn.Close()
}

func (t *NetTransport) CloseNow() {
	atomic.StoreInt32(&t.closed, 1)
	t.conn.Close()
}

func (t *NetTransport) CloseWithReset() {
	atomic.StoreInt32(&t.closed, 1)
	if tcp, ok := t.conn.(*net.TCPConn); ok {
		tcp.SetLinger(0)
	}
	t.conn.Close()
}

func (t *NetTransport) Unwrap() interface{} { return t.conn }

var _ Transport = (*NetTransport)(nil)
