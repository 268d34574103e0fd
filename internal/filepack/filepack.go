// Package filepack splits a file into an ordered sequence of DATA packets
// for transmission and reassembles a received sequence of DATA packets back
// into a file, in ascending sequence-number order.
package filepack

import (
	"io"
	"os"

	"filexfer/internal/xferpkt"
)

// Pack opens path for reading and splits it into an ordered sequence of DATA
// packets belonging to sessionID, each holding up to xferpkt.PacketSize
// bytes; the final packet is shorter whenever the file size is not a
// multiple of xferpkt.PacketSize. It returns nil if the file cannot be
// opened (and also for an empty file).
func Pack(sessionID uint32, path string) []xferpkt.Packet {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var packets []xferpkt.Packet
	var seq uint32
	buf := make([]byte, xferpkt.PacketSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			packets = append(packets, xferpkt.Packet{
				Flag:       xferpkt.FlagDATA,
				SessionID:  sessionID,
				SequenceNo: seq,
				FileOffset: seq * xferpkt.PacketSize,
				DataLength: uint32(n),
				Data:       data,
			})
			seq++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return packets
		}
	}
	return packets
}

// Unpack truncates (or creates) outPath and writes the data of each packet
// in ascending sequence-number order. Callers are responsible for
// delivering packets already in order; Unpack itself performs no
// reordering or duplicate suppression.
func Unpack(packets []xferpkt.Packet, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, p := range packets {
		if _, err := f.Write(p.Data); err != nil {
			return err
		}
	}
	return nil
}
