package tls13d

// EventLoop is the minimal "one thread, run tasks to completion"
// scheduler the concurrency model assumes (spec.md §5): every callback,
// state-machine invocation and transport operation for a given driver
// runs as one task on its EventLoop, never concurrently with another
// task from the same loop. The drivers deliberately do no locking of
// their own (only Config guards its fields with a mutex); that invariant
// is what makes the omission safe.
type EventLoop struct {
	tasks chan func()
	done  chan struct{}
}

// NewEventLoop returns a loop with a bounded task queue. Posting past the
// bound blocks the poster, which in practice is the transport's
// background reader goroutine applying backpressure.
func NewEventLoop() *EventLoop {
	return &EventLoop{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
}

// Post schedules f to run on the loop. It is the only thread-safe entry
// point into this package: everything else assumes it is only ever
// called from within a task the loop itself is running.
func (l *EventLoop) Post(f func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.tasks <- f:
	case <-l.done:
	}
}

// Run drains the task queue until Stop is called. Callers typically run
// this on a dedicated goroutine, or pump it manually from an existing
// loop (e.g. as one iteration of a larger select).
func (l *EventLoop) Run() {
	for {
		select {
		case f := <-l.tasks:
			f()
		case <-l.done:
			return
		}
	}
}

// RunOne runs at most one pending task, returning whether it ran one.
// Exposed for tests and for embedding this loop inside a larger select
// loop.
func (l *EventLoop) RunOne() bool {
	select {
	case f := <-l.tasks:
		f()
		return true
	default:
		return false
	}
}

// Stop terminates Run and causes further Post calls to be dropped.
func (l *EventLoop) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}
