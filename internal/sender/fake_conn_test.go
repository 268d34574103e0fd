package sender

import (
	"sync"
	"time"

	"filexfer/internal/xferpkt"
)

// fakeConn is an in-memory stand-in for a connected *net.UDPConn. It records
// every datagram written by the sender (optionally dropping a scripted set
// of sequence numbers exactly once) and lets the test feed back ACK
// datagrams on a schedule the sender's Read calls drain.
type fakeConn struct {
	mu sync.Mutex

	written   []xferpkt.Packet // every packet the sender attempted to write, including dropped ones
	delivered []xferpkt.Packet // the packets of written that were not dropped
	dropOnce  map[uint32]bool  // sequence numbers to silently drop on their first transmission

	inbound chan []byte // datagrams available to be Read by the sender
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		dropOnce: make(map[uint32]bool),
		inbound:  make(chan []byte, 64),
	}
}

func (c *fakeConn) Write(b []byte) (int, error) {
	p, err := xferpkt.Parse(b)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.written = append(c.written, p)
	drop := p.Flag == xferpkt.FlagDATA && c.dropOnce[p.SequenceNo]
	if drop {
		delete(c.dropOnce, p.SequenceNo)
	} else {
		c.delivered = append(c.delivered, p)
	}
	c.mu.Unlock()
	if drop {
		return len(b), nil // datagram vanishes: simulated network loss
	}
	return len(b), nil
}

func (c *fakeConn) Read(b []byte) (int, error) {
	select {
	case data := <-c.inbound:
		return copy(b, data), nil
	case <-time.After(20 * time.Millisecond):
		return 0, timeoutErr{}
	}
}

func (c *fakeConn) SetReadDeadline(t time.Time) error { return nil }

// deliverACK enqueues an ACK datagram for the sender's next Read.
func (c *fakeConn) deliverACK(seq uint32) {
	ack := xferpkt.Packet{Flag: xferpkt.FlagACK, SequenceNo: seq}
	c.inbound <- ack.Serialize()
}

func (c *fakeConn) writtenDataSeqs() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var seqs []uint32
	for _, p := range c.written {
		if p.Flag == xferpkt.FlagDATA {
			seqs = append(seqs, p.SequenceNo)
		}
	}
	return seqs
}

// deliveredDataSeqs lists the sequence numbers of DATA datagrams that were
// not dropped, i.e. the ones a real receiver would have seen.
func (c *fakeConn) deliveredDataSeqs() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var seqs []uint32
	for _, p := range c.delivered {
		if p.Flag == xferpkt.FlagDATA {
			seqs = append(seqs, p.SequenceNo)
		}
	}
	return seqs
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
