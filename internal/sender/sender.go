// Package sender implements the per-session sliding-window sender: the
// server-side loop that transmits a session's DATA packets within a window
// of W slots, retransmits on timeout, advances the window on an in-order
// ACK prefix, optionally simulates packet loss, and terminates with FIN.
package sender

import (
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"filexfer/internal/metrics"
	"filexfer/internal/xferpkt"
)

// finRetryCap is how many times FIN is sent once the window is fully
// acknowledged; each send is followed by one ACK-timeout wait.
const finRetryCap = 5

// ErrAborted is returned by Run when cfg.Abort is closed before the
// transfer completes, e.g. because the owning TCP control connection was
// closed by the peer.
var ErrAborted = errors.New("sender: aborted")

// Conn is the subset of *net.UDPConn the sender needs: a connected,
// datagram-oriented read/write stream with a settable read deadline. Tests
// substitute a fake implementation to inject deterministic loss/reordering
// without binding real sockets.
type Conn interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
}

// Config parameterizes one session's sender loop.
type Config struct {
	SessionID uint32
	Window    int           // W, 1..100
	Timeout   time.Duration // ACK timer, 10..500ms
	LossRate  float64       // 0.0..1.0
	Seed      int64         // loss-injection PRNG seed

	// Abort, when non-nil, is checked once per loop iteration; Run
	// returns ErrAborted promptly once it is closed. A nil channel never
	// fires, matching the zero value's "no cancellation" behavior.
	Abort <-chan struct{}
}

// Sender owns one session's window state. It is not safe for concurrent
// use; exactly one worker goroutine drives it for the session's lifetime.
type Sender struct {
	conn    Conn
	packets []xferpkt.Packet
	cfg     Config
	rnd     *rand.Rand
	metrics *metrics.Registry
	log     *logrus.Entry

	base uint32 // window_base: lowest unacknowledged sequence number
	next uint32 // next_to_send: next sequence number to transmit

	sent     []bool
	acked    []bool
	sentTime []time.Time
}

// New returns a Sender bound to conn (already dialed to the client's UDP
// endpoint for this session) that will transmit packets.
func New(conn Conn, packets []xferpkt.Packet, cfg Config, reg *metrics.Registry, log *logrus.Entry) *Sender {
	n := len(packets)
	return &Sender{
		conn:     conn,
		packets:  packets,
		cfg:      cfg,
		rnd:      rand.New(rand.NewSource(cfg.Seed)),
		metrics:  reg,
		log:      log,
		sent:     make([]bool, n),
		acked:    make([]bool, n),
		sentTime: make([]time.Time, n),
	}
}

// Run drives the sender loop to completion: all packets acknowledged, then
// FIN sent finRetryCap times. Nothing acknowledges FIN, so every run sends
// all finRetryCap copies.
func (s *Sender) Run() error {
	total := uint32(len(s.packets))
	finAttempts := 0

	for {
		select {
		case <-s.cfg.Abort:
			return ErrAborted
		default:
		}

		if s.base >= total {
			if finAttempts >= finRetryCap {
				return nil
			}
			if err := s.sendFIN(); err != nil {
				return err
			}
			finAttempts++
		} else {
			s.transmitDue()
		}

		ackSeq, ok, err := s.receiveACK()
		if err != nil {
			return err
		}
		if ok {
			s.applyACK(ackSeq)
			s.advanceWindow()
		}
	}
}

// transmitDue sends (or simulates the loss of) every window slot that has
// never been sent, or whose retransmission timer has elapsed.
func (s *Sender) transmitDue() {
	now := time.Now()
	upper := s.base + uint32(s.cfg.Window)
	total := uint32(len(s.packets))
	if upper > total {
		upper = total
	}
	for seq := s.base; seq < upper; seq++ {
		retransmit := s.sent[seq] && !s.acked[seq] && now.Sub(s.sentTime[seq]) >= s.cfg.Timeout
		due := !s.sent[seq] || retransmit
		if !due {
			continue
		}
		s.sentTime[seq] = now
		s.sent[seq] = true
		if s.rnd.Float64() < s.cfg.LossRate {
			if s.log != nil {
				s.log.WithField("seq", seq).Debug("simulated loss on transmit")
			}
			continue
		}
		if retransmit && s.metrics != nil {
			s.metrics.Retransmissions.Inc()
		}
		s.transmit(seq)
	}
}

func (s *Sender) transmit(seq uint32) {
	b := s.packets[seq].Serialize()
	n, err := s.conn.Write(b)
	if err != nil {
		if s.log != nil {
			s.log.WithField("seq", seq).WithError(err).Warn("data write failed")
		}
		return
	}
	if s.metrics != nil {
		s.metrics.BytesSent.Add(float64(n - 17))
		s.metrics.SegmentsSent.Inc()
	}
}

func (s *Sender) sendFIN() error {
	fin := xferpkt.Packet{Flag: xferpkt.FlagFIN}
	_, err := s.conn.Write(fin.Serialize())
	return err
}

// receiveACK waits up to the configured timeout for one ACK datagram.
func (s *Sender) receiveACK() (seq uint32, ok bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		return 0, false, err
	}
	buf := make([]byte, 64)
	n, rerr := s.conn.Read(buf)
	if rerr != nil {
		if ne, isNet := rerr.(net.Error); isNet && ne.Timeout() {
			return 0, false, nil
		}
		return 0, false, rerr
	}
	p, perr := xferpkt.Parse(buf[:n])
	if perr != nil || !p.IsACK() {
		return 0, false, nil
	}
	if s.metrics != nil {
		s.metrics.AcksReceived.Inc()
	}
	return p.SequenceNo, true, nil
}

func (s *Sender) applyACK(seq uint32) {
	if seq < s.base {
		return // duplicate ACK
	}
	if seq >= s.base+uint32(s.cfg.Window) {
		return // out-of-range ACK
	}
	s.acked[seq] = true
}

// advanceWindow shifts base forward over every contiguous acknowledged
// sequence number starting at base.
func (s *Sender) advanceWindow() {
	total := uint32(len(s.packets))
	for s.base < total && s.acked[s.base] {
		s.base++
	}
}
