// Package ctrlproto implements the TCP control protocol: single-byte
// command codes followed by typed payloads, framed length-implicitly (one
// net.Conn.Read is assumed to deliver one full command, per the
// specification's own acknowledged oddity rather than an explicit
// message-length prefix).
package ctrlproto

import (
	"errors"
	"net"

	"filexfer/internal/wire"
)

// Code identifies a TCP control command.
type Code byte

const (
	ReqQuit       Code = 0x01
	ReqDownload   Code = 0x02
	RspDownload   Code = 0x03
	ReqListFiles  Code = 0x04
	RspListFiles  Code = 0x05
	DownloadError Code = 0x30
)

// ErrUnknownCommand is returned by Decode when the leading byte does not
// match any known Code; the server closes the connection on this error.
var ErrUnknownCommand = errors.New("ctrlproto: unknown command code")

// ErrTruncated is returned when a payload is shorter than its declared
// shape requires.
var ErrTruncated = errors.New("ctrlproto: truncated payload")

// ReqDownloadPayload is the REQ_DOWNLOAD command body.
type ReqDownloadPayload struct {
	ClientUDPIP   net.IP
	ClientUDPPort uint16
	Filename      string
}

// RspDownloadPayload is the RSP_DOWNLOAD command body. FileLength is kept
// as its original ASCII-decimal wire form in FileLengthASCII in addition to
// the parsed value.
type RspDownloadPayload struct {
	ServerUDPIP     net.IP
	ServerUDPPort   uint16
	SessionID       uint32
	FileLength      uint64
	FileLengthASCII string
}

// RspListFilesPayload is the RSP_LISTFILES command body: a list of file
// names (no size field on the wire).
type RspListFilesPayload struct {
	Names []string
}

// DownloadErrorPayload carries no fields; DOWNLOAD_ERROR has no payload.
type DownloadErrorPayload struct{}

// EncodeReqQuit returns the single-byte REQ_QUIT command.
func EncodeReqQuit() []byte { return []byte{byte(ReqQuit)} }

// EncodeReqListFiles returns the single-byte REQ_LISTFILES command.
func EncodeReqListFiles() []byte { return []byte{byte(ReqListFiles)} }

// EncodeReqDownload encodes a REQ_DOWNLOAD command.
func EncodeReqDownload(p ReqDownloadPayload) []byte {
	ip4 := p.ClientUDPIP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	buf := make([]byte, 0, 1+4+2+4+len(p.Filename))
	buf = append(buf, byte(ReqDownload))
	buf = append(buf, ip4...)
	buf = wire.EncodeUint16(buf, p.ClientUDPPort)
	buf = wire.EncodeUint32(buf, uint32(len(p.Filename)))
	buf = append(buf, p.Filename...)
	return buf
}

// EncodeRspDownload encodes a RSP_DOWNLOAD command. FileLength is rendered
// as ASCII decimal digits occupying the rest of the message, per the
// protocol table.
func EncodeRspDownload(p RspDownloadPayload) []byte {
	ip4 := p.ServerUDPIP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	ascii := p.FileLengthASCII
	if ascii == "" {
		ascii = formatUint(p.FileLength)
	}
	buf := make([]byte, 0, 1+4+2+4+len(ascii))
	buf = append(buf, byte(RspDownload))
	buf = append(buf, ip4...)
	buf = wire.EncodeUint16(buf, p.ServerUDPPort)
	buf = wire.EncodeUint32(buf, p.SessionID)
	buf = append(buf, ascii...)
	return buf
}

// EncodeRspListFiles encodes a RSP_LISTFILES command: a u16 count, a u32
// total payload-list length, then repeated (u32 name length, name) tuples.
func EncodeRspListFiles(p RspListFilesPayload) []byte {
	listLen := 0
	for _, n := range p.Names {
		listLen += 4 + len(n)
	}
	buf := make([]byte, 0, 1+2+4+listLen)
	buf = append(buf, byte(RspListFiles))
	buf = wire.EncodeUint16(buf, uint16(len(p.Names)))
	buf = wire.EncodeUint32(buf, uint32(listLen))
	for _, n := range p.Names {
		buf = wire.EncodeUint32(buf, uint32(len(n)))
		buf = append(buf, n...)
	}
	return buf
}

// EncodeDownloadError encodes the no-payload DOWNLOAD_ERROR command.
func EncodeDownloadError() []byte { return []byte{byte(DownloadError)} }

// Decode reads the command code from b and, for download-related commands,
// decodes the typed payload. v is one of ReqDownloadPayload,
// RspDownloadPayload, RspListFilesPayload, DownloadErrorPayload, or nil for
// the no-payload REQ_QUIT/REQ_LISTFILES commands.
func Decode(b []byte) (code Code, v interface{}, err error) {
	if len(b) < 1 {
		return 0, nil, ErrTruncated
	}
	code = Code(b[0])
	rest := b[1:]
	switch code {
	case ReqQuit, ReqListFiles:
		return code, nil, nil
	case ReqDownload:
		p, err := decodeReqDownload(rest)
		return code, p, err
	case RspDownload:
		p, err := decodeRspDownload(rest)
		return code, p, err
	case RspListFiles:
		p, err := decodeRspListFiles(rest)
		return code, p, err
	case DownloadError:
		return code, DownloadErrorPayload{}, nil
	default:
		return code, nil, ErrUnknownCommand
	}
}

func decodeReqDownload(b []byte) (ReqDownloadPayload, error) {
	if len(b) < 4+2+4 {
		return ReqDownloadPayload{}, ErrTruncated
	}
	ip := net.IPv4(b[0], b[1], b[2], b[3])
	port, _ := wire.DecodeUint16(b[4:6])
	nameLen, err := wire.DecodeUint32(b[6:10])
	if err != nil {
		return ReqDownloadPayload{}, ErrTruncated
	}
	if uint32(len(b)-10) < nameLen {
		return ReqDownloadPayload{}, ErrTruncated
	}
	name := string(b[10 : 10+nameLen])
	return ReqDownloadPayload{ClientUDPIP: ip, ClientUDPPort: port, Filename: name}, nil
}

func decodeRspDownload(b []byte) (RspDownloadPayload, error) {
	if len(b) < 4+2+4 {
		return RspDownloadPayload{}, ErrTruncated
	}
	ip := net.IPv4(b[0], b[1], b[2], b[3])
	port, _ := wire.DecodeUint16(b[4:6])
	sessionID, _ := wire.DecodeUint32(b[6:10])
	ascii := string(b[10:])
	length := parseUint(ascii)
	return RspDownloadPayload{
		ServerUDPIP:     ip,
		ServerUDPPort:   port,
		SessionID:       sessionID,
		FileLength:      length,
		FileLengthASCII: ascii,
	}, nil
}

func decodeRspListFiles(b []byte) (RspListFilesPayload, error) {
	if len(b) < 2+4 {
		return RspListFilesPayload{}, ErrTruncated
	}
	count, _ := wire.DecodeUint16(b[0:2])
	rest := b[6:]
	names := make([]string, 0, count)
	for i := uint16(0); i < count; i++ {
		if len(rest) < 4 {
			return RspListFilesPayload{}, ErrTruncated
		}
		nameLen, _ := wire.DecodeUint32(rest[0:4])
		rest = rest[4:]
		if uint32(len(rest)) < nameLen {
			return RspListFilesPayload{}, ErrTruncated
		}
		names = append(names, string(rest[:nameLen]))
		rest = rest[nameLen:]
	}
	return RspListFilesPayload{Names: names}, nil
}

func formatUint(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func parseUint(s string) uint64 {
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return v
		}
		v = v*10 + uint64(c-'0')
	}
	return v
}
