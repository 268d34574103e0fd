// Package client drives control and transfer sessions from the requesting
// side: it holds one persistent TCP control connection open across
// multiple commands (list, download, quit), and runs the windowed UDP
// receiver against the session the server hands back for each download.
package client

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"filexfer/internal/config"
	"filexfer/internal/ctrlproto"
	"filexfer/internal/filepack"
	"filexfer/internal/logging"
	"filexfer/internal/receiver"
)

// ErrDownloadRefused is returned when the server answers REQ_DOWNLOAD with
// DOWNLOAD_ERROR instead of RSP_DOWNLOAD.
var ErrDownloadRefused = errors.New("client: server refused the download request")

// Client holds one process's connection parameters and, once Connect has
// been called, the single TCP control connection that persists across
// every command issued until Quit or Close.
type Client struct {
	cfg  config.ClientConfig
	conn net.Conn
}

// New returns a Client configured to talk to the server named in cfg. No
// network connection is made until the first command is issued.
func New(cfg config.ClientConfig) *Client { return &Client{cfg: cfg} }

// Connect dials the control connection if it is not already open. It is
// safe to call before every command; it is a no-op once connected.
func (c *Client) Connect() error {
	if c.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(c.cfg.ServerHost, itoa(c.cfg.ServerTCP))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Close closes the control connection without notifying the server, for
// abrupt termination (e.g. an unrecoverable transport error). Quit is the
// cooperative equivalent.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Quit sends the single-byte REQ_QUIT cooperative cancellation command on
// the control connection, then closes it.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}
	_, werr := c.conn.Write(ctrlproto.EncodeReqQuit())
	cerr := c.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// ListFiles issues REQ_LISTFILES over the persistent control connection
// and returns the names the server reports.
func (c *Client) ListFiles() ([]string, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(ctrlproto.EncodeReqListFiles()); err != nil {
		return nil, err
	}
	buf := make([]byte, 64*1024)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	code, v, err := ctrlproto.Decode(buf[:n])
	if err != nil {
		return nil, err
	}
	if code != ctrlproto.RspListFiles {
		return nil, fmt.Errorf("client: unexpected response code %v to REQ_LISTFILES", code)
	}
	return v.(ctrlproto.RspListFilesPayload).Names, nil
}

// Download issues REQ_DOWNLOAD over the persistent control connection,
// declaring clientIP and the locally bound UDP port as the endpoint the
// server should stream to (the endpoint named in the interactive
// /d <ip>:<port> command). The port declared is clientPort when it can be
// bound, otherwise an OS-assigned port. It then runs the windowed receiver
// to completion and writes the reassembled file under cfg.DownloadDir. It
// returns the path written.
func (c *Client) Download(clientIP net.IP, clientPort uint16, filename string) (string, error) {
	if err := c.Connect(); err != nil {
		return "", err
	}

	udpConn, localPort, err := bindClientUDP(int(clientPort))
	if err != nil {
		return "", err
	}
	defer udpConn.Close()

	req := ctrlproto.ReqDownloadPayload{
		ClientUDPIP:   clientIP,
		ClientUDPPort: uint16(localPort),
		Filename:      filename,
	}
	if _, err := c.conn.Write(ctrlproto.EncodeReqDownload(req)); err != nil {
		return "", err
	}

	buf := make([]byte, 64*1024)
	n, err := c.conn.Read(buf)
	if err != nil {
		return "", err
	}
	code, v, err := ctrlproto.Decode(buf[:n])
	if err != nil {
		return "", err
	}
	if code == ctrlproto.DownloadError {
		return "", ErrDownloadRefused
	}
	if code != ctrlproto.RspDownload {
		return "", fmt.Errorf("client: unexpected response code %v to REQ_DOWNLOAD", code)
	}
	rsp := v.(ctrlproto.RspDownloadPayload)

	raddr := &net.UDPAddr{IP: rsp.ServerUDPIP, Port: int(rsp.ServerUDPPort)}
	if err := udpConn.Close(); err != nil {
		return "", err
	}
	udpConn, err = net.DialUDP("udp", &net.UDPAddr{Port: localPort}, raddr)
	if err != nil {
		return "", err
	}
	defer udpConn.Close()

	sessionLog := logging.Session(rsp.SessionID)
	recv := receiver.New(udpConn, receiver.Config{
		SessionID: rsp.SessionID,
		LossRate:  c.cfg.LossRate,
		Seed:      time.Now().UnixNano(),
	}, sessionLog)

	packets, err := recv.Run()
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(c.cfg.DownloadDir, filepath.Base(filename))
	if err := filepack.Unpack(packets, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// bindClientUDP binds the client's receive socket at the preferred port,
// falling back to an OS-assigned ephemeral port if it is unavailable.
func bindClientUDP(preferredPort int) (*net.UDPConn, int, error) {
	laddr := &net.UDPAddr{Port: preferredPort}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		conn, err = net.ListenUDP("udp", &net.UDPAddr{Port: 0})
		if err != nil {
			return nil, 0, err
		}
	}
	return conn, conn.LocalAddr().(*net.UDPAddr).Port, nil
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
