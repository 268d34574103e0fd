package receiver

import (
	"container/heap"

	"filexfer/internal/xferpkt"
)

// packetHeap is a min-heap of DATA packets keyed by sequence number. It may
// hold duplicate sequence numbers; the receiver discards a popped entry
// silently if its sequence number is already below `expected`.
type packetHeap []xferpkt.Packet

func (h packetHeap) Len() int            { return len(h) }
func (h packetHeap) Less(i, j int) bool  { return h[i].SequenceNo < h[j].SequenceNo }
func (h packetHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *packetHeap) Push(x interface{}) { *h = append(*h, x.(xferpkt.Packet)) }
func (h *packetHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ = heap.Interface(&packetHeap{})
