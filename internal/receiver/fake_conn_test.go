package receiver

import (
	"filexfer/internal/xferpkt"
)

// fakeConn is an in-memory stand-in for a connected *net.UDPConn: a scripted
// sequence of inbound datagrams plus a record of everything the receiver
// writes back (START and ACK datagrams).
type fakeConn struct {
	inbound [][]byte
	pos     int

	written []xferpkt.Packet
}

func newFakeConn(datagrams ...[]byte) *fakeConn {
	return &fakeConn{inbound: datagrams}
}

func (c *fakeConn) Write(b []byte) (int, error) {
	p, err := xferpkt.Parse(b)
	if err != nil {
		return 0, err
	}
	c.written = append(c.written, p)
	return len(b), nil
}

func (c *fakeConn) Read(b []byte) (int, error) {
	if c.pos >= len(c.inbound) {
		fin := xferpkt.Packet{Flag: xferpkt.FlagFIN}
		return copy(b, fin.Serialize()), nil
	}
	data := c.inbound[c.pos]
	c.pos++
	return copy(b, data), nil
}

func (c *fakeConn) ackedSeqs() []uint32 {
	var seqs []uint32
	for _, p := range c.written {
		if p.Flag == xferpkt.FlagACK {
			seqs = append(seqs, p.SequenceNo)
		}
	}
	return seqs
}

func dataDatagram(seq uint32, payload string) []byte {
	p := xferpkt.Packet{Flag: xferpkt.FlagDATA, SequenceNo: seq, DataLength: uint32(len(payload)), Data: []byte(payload)}
	return p.Serialize()
}
