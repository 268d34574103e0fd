package xferpkt

import (
	"errors"

	"filexfer/internal/wire"
)

// segmentHeaderSize is the byte count of the four fixed Segment header
// fields: source_port(2), dest_port(2), length(2), checksum(2).
const segmentHeaderSize = 8

// ErrSegmentTruncated is returned when a Segment header cannot be decoded.
var ErrSegmentTruncated = errors.New("xferpkt: truncated segment")

// Segment is the optional outer frame that protects a Packet with a
// one's-complement checksum, in the style of a UDP header. It is not used
// on the reference DATA/ACK/START/FIN path (bare Packets are canonical)
// but is available whenever both endpoints opt into checksum framing.
type Segment struct {
	SourcePort uint16
	DestPort   uint16
	Length     uint16
	Checksum   uint16
	Packet     Packet
}

// SerializeNetwork writes the four header fields with Checksum initially
// zero, appends the serialized Packet, then patches the checksum computed
// over the whole result back into its fixed offset.
func (s Segment) SerializeNetwork() []byte {
	payload := s.Packet.Serialize()
	buf := make([]byte, 0, segmentHeaderSize+len(payload))
	buf = wire.EncodeUint16(buf, s.SourcePort)
	buf = wire.EncodeUint16(buf, s.DestPort)
	buf = wire.EncodeUint16(buf, uint16(segmentHeaderSize+len(payload)))
	buf = wire.EncodeUint16(buf, 0) // checksum placeholder
	buf = append(buf, payload...)

	sum := wire.Checksum16(buf)
	buf[6] = byte(sum >> 8)
	buf[7] = byte(sum)
	return buf
}

// ParseNetwork decodes a Segment from b and reports whether the checksum
// transmitted in the header matches one recomputed over b with the
// checksum field cleared.
func ParseNetwork(b []byte) (seg Segment, checksumValid bool, err error) {
	if len(b) < segmentHeaderSize {
		return Segment{}, false, ErrSegmentTruncated
	}
	srcPort, _ := wire.DecodeUint16(b[0:2])
	dstPort, _ := wire.DecodeUint16(b[2:4])
	length, _ := wire.DecodeUint16(b[4:6])
	checksum, _ := wire.DecodeUint16(b[6:8])

	verify := append([]byte(nil), b...)
	verify[6], verify[7] = 0, 0
	computed := wire.Checksum16(verify)

	pkt, err := Parse(b[segmentHeaderSize:])
	if err != nil {
		return Segment{}, false, err
	}
	seg = Segment{SourcePort: srcPort, DestPort: dstPort, Length: length, Checksum: checksum, Packet: pkt}
	return seg, computed == checksum, nil
}
