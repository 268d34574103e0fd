// Package workerpool implements the bounded task queue and fixed worker
// goroutines that serve TCP clients: the accept loop submits accepted
// connections into a channel of fixed capacity, and a fixed number of
// worker goroutines drain it, each running one client connection to
// completion before taking the next.
package workerpool

import (
	"net"
	"sync"
)

// Handler runs one client connection to completion. It must close conn
// before returning.
type Handler func(conn net.Conn)

// Pool is a fixed-size worker pool fed by a bounded queue of accepted
// connections.
type Pool struct {
	queue      chan net.Conn
	handler    Handler
	disconnect func()
	wg         sync.WaitGroup
}

// New creates a Pool with workers goroutines draining a queue of the given
// depth, each running handler on the connections it pops. disconnect, if
// non-nil, is invoked once by Shutdown to close the listener feeding this
// pool before the queue is drained; it may be nil for pools fed some other
// way (e.g. in tests).
func New(workers, queueDepth int, handler Handler, disconnect func()) *Pool {
	p := &Pool{
		queue:      make(chan net.Conn, queueDepth),
		handler:    handler,
		disconnect: disconnect,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for conn := range p.queue {
		p.handler(conn)
	}
}

// Submit enqueues conn for handling. If the queue is full, Submit blocks
// the caller (the accept loop) until a worker frees a slot.
func (p *Pool) Submit(conn net.Conn) {
	p.queue <- conn
}

// Shutdown calls the pool's disconnect callback to close the listener
// feeding it, then closes the queue so all workers drain whatever
// connections were already queued and exit, and waits for them to finish.
// Shutdown must be called at most once and after the last Submit.
func (p *Pool) Shutdown() {
	if p.disconnect != nil {
		p.disconnect()
	}
	close(p.queue)
	p.wg.Wait()
}
