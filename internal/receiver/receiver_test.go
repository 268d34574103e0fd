package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"filexfer/internal/xferpkt"
)

func TestReceiverInOrderDelivery(t *testing.T) {
	conn := newFakeConn(
		dataDatagram(0, "aaa"),
		dataDatagram(1, "bbb"),
		dataDatagram(2, "ccc"),
	)
	r := New(conn, Config{LossRate: 0}, nil)

	delivered, err := r.Run()
	assert.NoError(t, err)
	assert.Len(t, delivered, 3)
	assert.Equal(t, uint32(0), delivered[0].SequenceNo)
	assert.Equal(t, uint32(1), delivered[1].SequenceNo)
	assert.Equal(t, uint32(2), delivered[2].SequenceNo)
	assert.ElementsMatch(t, []uint32{0, 1, 2}, conn.ackedSeqs())
}

// TestReceiverReordersOutOfOrderArrival exercises the 0,2,1,3 arrival
// ordering: ACKs for 1, 2, and 3 must only be emitted once packet 1 fills
// the gap, never before.
func TestReceiverReordersOutOfOrderArrival(t *testing.T) {
	conn := newFakeConn(
		dataDatagram(0, "aaa"),
		dataDatagram(2, "ccc"),
		dataDatagram(1, "bbb"),
		dataDatagram(3, "ddd"),
	)
	r := New(conn, Config{LossRate: 0}, nil)

	delivered, err := r.Run()
	assert.NoError(t, err)
	assert.Len(t, delivered, 4)
	for i, p := range delivered {
		assert.Equal(t, uint32(i), p.SequenceNo, "delivered packets must be in ascending sequence order")
	}
	assert.Equal(t, []uint32{0, 1, 2, 3}, conn.ackedSeqs(), "ACKs must be emitted strictly in the order gaps close")
}

func TestReceiverDuplicateDataIsReacked(t *testing.T) {
	conn := newFakeConn(
		dataDatagram(0, "aaa"),
		dataDatagram(0, "aaa"), // duplicate: sender retransmitted before seeing our ACK
		dataDatagram(1, "bbb"),
	)
	r := New(conn, Config{LossRate: 0}, nil)

	delivered, err := r.Run()
	assert.NoError(t, err)
	assert.Len(t, delivered, 2, "a duplicate datagram must not be delivered twice")
	assert.Equal(t, []uint32{0, 0, 1}, conn.ackedSeqs(), "the duplicate must still be re-acked")
}

func TestReceiverSendsStartBeforeReadingData(t *testing.T) {
	conn := newFakeConn(dataDatagram(0, "aaa"))
	r := New(conn, Config{LossRate: 0}, nil)

	_, err := r.Run()
	assert.NoError(t, err)
	assert.NotEmpty(t, conn.written)
	assert.Equal(t, xferpkt.FlagSTART, conn.written[0].Flag, "the first outbound datagram must be the START handshake")
}
