// Package receiver implements the per-session windowed receiver: the
// client-side loop that receives DATA packets, reorders them through a
// sequence-number-keyed priority queue, emits (and duplicate-replays) ACKs
// subject to a configurable loss probability, and reassembles the file on
// FIN.
package receiver

import (
	"container/heap"
	"math/rand"

	"github.com/sirupsen/logrus"

	"filexfer/internal/xferpkt"
)

// Conn is the subset of *net.UDPConn the receiver needs. Tests substitute a
// fake implementation to inject deterministic reordering and ACK loss.
type Conn interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
}

// Config parameterizes one session's receive loop.
type Config struct {
	SessionID uint32
	LossRate  float64 // probability that an outgoing ACK is itself dropped
	Seed      int64
}

// Receiver owns one session's reassembly state. It is not safe for
// concurrent use.
type Receiver struct {
	conn Conn
	cfg  Config
	rnd  *rand.Rand
	log  *logrus.Entry

	expected  uint32
	pq        packetHeap
	delivered []xferpkt.Packet
}

// New returns a Receiver bound to conn, already dialed to the server's UDP
// endpoint for this session.
func New(conn Conn, cfg Config, log *logrus.Entry) *Receiver {
	r := &Receiver{conn: conn, cfg: cfg, rnd: rand.New(rand.NewSource(cfg.Seed)), log: log}
	heap.Init(&r.pq)
	return r
}

// Run sends the session's START datagram, then receives until FIN,
// returning the packets delivered in ascending sequence-number order.
func (r *Receiver) Run() ([]xferpkt.Packet, error) {
	start := xferpkt.Packet{Flag: xferpkt.FlagSTART}
	if _, err := r.conn.Write(start.Serialize()); err != nil {
		return nil, err
	}

	buf := make([]byte, 17+xferpkt.PacketSize)
	for {
		n, err := r.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		p, err := xferpkt.Parse(buf[:n])
		if err != nil {
			continue // malformed datagram: discard silently
		}
		switch p.Flag {
		case xferpkt.FlagFIN:
			return r.delivered, nil
		case xferpkt.FlagDATA:
			r.handleData(p)
		default:
			// ACK/START arriving here would be a protocol misuse; discard.
		}
	}
}

func (r *Receiver) handleData(p xferpkt.Packet) {
	if p.SequenceNo < r.expected {
		// Already delivered: the sender likely missed our ACK. Re-ACK to
		// help it recover.
		r.sendACK(p.SequenceNo)
		return
	}
	heap.Push(&r.pq, p)
	for r.pq.Len() > 0 && r.pq[0].SequenceNo <= r.expected {
		next := heap.Pop(&r.pq).(xferpkt.Packet)
		if next.SequenceNo < r.expected {
			continue // stale duplicate of an already-delivered packet
		}
		r.delivered = append(r.delivered, next)
		r.sendACK(r.expected)
		r.expected++
	}
}

func (r *Receiver) sendACK(seq uint32) {
	if r.rnd.Float64() < r.cfg.LossRate {
		if r.log != nil {
			r.log.WithField("seq", seq).Debug("simulated ACK loss")
		}
		return
	}
	ack := xferpkt.Packet{Flag: xferpkt.FlagACK, SessionID: r.cfg.SessionID, SequenceNo: seq}
	_, _ = r.conn.Write(ack.Serialize())
}
