// Package xferpkt defines the wire representation of UDP control and data
// packets (DATA/ACK/START/FIN) and the optional checksummed Segment frame
// that can enclose one. All multi-byte integer fields are big-endian on the
// wire; in memory every field is native.
package xferpkt

import (
	"errors"

	"filexfer/internal/wire"
)

// PacketSize is the canonical maximum payload length of a DATA packet.
const PacketSize = 1000

// Flag identifies the kind of packet carried by a UDP datagram.
type Flag byte

const (
	FlagDATA  Flag = 0x00
	FlagACK   Flag = 0x01
	FlagSTART Flag = 0x03
	FlagFIN   Flag = 0x04
)

func (f Flag) String() string {
	switch f {
	case FlagDATA:
		return "DATA"
	case FlagACK:
		return "ACK"
	case FlagSTART:
		return "START"
	case FlagFIN:
		return "FIN"
	default:
		return "UNKNOWN"
	}
}

// ErrTruncated is returned by Parse when fewer bytes are present than the
// packet's flag says it should carry.
var ErrTruncated = errors.New("xferpkt: truncated packet")

// Packet is the application-level unit exchanged over UDP. FileOffset,
// DataLength and Data are meaningful only when Flag == FlagDATA.
type Packet struct {
	Flag       Flag
	SessionID  uint32
	SequenceNo uint32
	FileOffset uint32
	DataLength uint32
	Data       []byte
}

// IsACK reports whether p is an acknowledgement packet.
func (p Packet) IsACK() bool { return p.Flag == FlagACK }

// Serialize writes p in network byte order: flag, then (for everything but
// START/FIN) session id and sequence number, then for DATA the file offset,
// data length and payload bytes.
func (p Packet) Serialize() []byte {
	buf := make([]byte, 0, 17+len(p.Data))
	buf = append(buf, byte(p.Flag))
	if p.Flag == FlagSTART || p.Flag == FlagFIN {
		return buf
	}
	buf = wire.EncodeUint32(buf, p.SessionID)
	buf = wire.EncodeUint32(buf, p.SequenceNo)
	if p.Flag == FlagDATA {
		buf = wire.EncodeUint32(buf, p.FileOffset)
		buf = wire.EncodeUint32(buf, p.DataLength)
		buf = append(buf, p.Data...)
	}
	return buf
}

// Parse decodes a Packet from b. START and FIN packets are a single flag
// byte; ACK additionally carries session id and sequence number; DATA
// additionally carries file offset, data length and exactly that many
// payload bytes. Any missing bytes yield ErrTruncated.
func Parse(b []byte) (Packet, error) {
	if len(b) < 1 {
		return Packet{}, ErrTruncated
	}
	p := Packet{Flag: Flag(b[0])}
	if p.Flag == FlagSTART || p.Flag == FlagFIN {
		return p, nil
	}
	rest := b[1:]
	sid, err := wire.DecodeUint32(rest)
	if err != nil {
		return Packet{}, ErrTruncated
	}
	p.SessionID = sid
	rest = rest[4:]
	seq, err := wire.DecodeUint32(rest)
	if err != nil {
		return Packet{}, ErrTruncated
	}
	p.SequenceNo = seq
	rest = rest[4:]
	if p.Flag != FlagDATA {
		return p, nil
	}
	offset, err := wire.DecodeUint32(rest)
	if err != nil {
		return Packet{}, ErrTruncated
	}
	rest = rest[4:]
	length, err := wire.DecodeUint32(rest)
	if err != nil {
		return Packet{}, ErrTruncated
	}
	rest = rest[4:]
	if uint32(len(rest)) < length {
		return Packet{}, ErrTruncated
	}
	p.FileOffset = offset
	p.DataLength = length
	p.Data = append([]byte(nil), rest[:length]...)
	return p, nil
}
