// Package server wires together the TCP control listener, the bounded
// worker pool, session allocation and the per-session UDP sender into one
// running file-download service.
package server

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"filexfer/internal/config"
	"filexfer/internal/ctrlproto"
	"filexfer/internal/filepack"
	"filexfer/internal/logging"
	"filexfer/internal/metrics"
	"filexfer/internal/sender"
	"filexfer/internal/sessionmgr"
	"filexfer/internal/workerpool"
	"filexfer/internal/xferpkt"
)

// startHandshakeTimeout bounds how long the server waits for the client's
// START datagram once RSP_DOWNLOAD has been sent.
const startHandshakeTimeout = 10 * time.Second

// Server holds the configuration and shared state one running process
// needs to accept TCP control connections and drive UDP transfers.
type Server struct {
	cfg      config.ServerConfig
	sessions *sessionmgr.Manager
	metrics  *metrics.Registry
	pool     *workerpool.Pool
	ln       net.Listener
}

// New returns a Server ready to ListenAndServe. reg may be nil to disable
// metrics collection.
func New(cfg config.ServerConfig, reg *prometheus.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessionmgr.NewManager(sessionSeed()),
	}
	if reg != nil {
		s.metrics = metrics.NewRegistry(reg)
	}
	s.pool = workerpool.New(config.WorkerCount, config.QueueDepth, s.handleConn, s.closeListener)
	return s
}

// ListenAndServe binds the TCP control port and serves it until the
// listener fails.
func (s *Server) ListenAndServe() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()
	return s.Serve(ln)
}

// Listen binds the TCP control port without yet accepting connections, so
// callers (tests in particular) can learn the bound address before Serve
// starts handing connections to the worker pool. The returned listener is
// also the one Shutdown's disconnect callback closes.
func (s *Server) Listen() (net.Listener, error) {
	addr := net.JoinHostPort(s.cfg.TCPHost, itoa(s.cfg.TCPPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.ln = ln
	return ln, nil
}

// Shutdown stops the server: the worker pool's disconnect callback closes
// the TCP listener, which ends the accept loop in Serve/ListenAndServe,
// then the bounded queue drains its already-accepted connections before
// Shutdown returns.
func (s *Server) Shutdown() {
	s.pool.Shutdown()
}

func (s *Server) closeListener() {
	if s.ln != nil {
		s.ln.Close()
	}
}

// Serve accepts connections on ln until it fails, submitting each to the
// worker pool.
func (s *Server) Serve(ln net.Listener) error {
	logrus.WithField("addr", ln.Addr().String()).Info("control listener started")
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		s.pool.Submit(conn)
	}
}

// ActiveSessionCount reports how many downloads are currently in progress,
// for tests and diagnostics.
func (s *Server) ActiveSessionCount() int { return s.sessions.Count() }

// handleConn services control commands on conn until the peer sends
// REQ_QUIT, closes the connection, or a protocol error occurs; per the
// specification's connection lifecycle, one TCP connection persists across
// multiple commands. Each REQ_DOWNLOAD runs its sliding-window sender
// synchronously, on this same goroutine, so the worker pool's fixed size
// bounds the number of concurrent transfers.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	clientLog := logging.Client(conn.RemoteAddr().String())

	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		code, v, err := ctrlproto.Decode(buf[:n])
		if err != nil {
			clientLog.WithError(err).Warn("malformed control command")
			return
		}

		switch code {
		case ctrlproto.ReqQuit:
			return
		case ctrlproto.ReqListFiles:
			s.handleListFiles(conn, clientLog)
		case ctrlproto.ReqDownload:
			s.handleDownload(conn, v.(ctrlproto.ReqDownloadPayload), clientLog)
		default:
			clientLog.WithField("code", code).Warn("unsupported control command")
			return
		}
	}
}

func (s *Server) handleListFiles(conn net.Conn, clientLog *logrus.Entry) {
	entries, err := os.ReadDir(s.cfg.RepoDir)
	if err != nil {
		clientLog.WithError(err).Warn("could not read repository directory")
		conn.Write(ctrlproto.EncodeRspListFiles(ctrlproto.RspListFilesPayload{}))
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	conn.Write(ctrlproto.EncodeRspListFiles(ctrlproto.RspListFilesPayload{Names: names}))
}

// handleDownload validates the requested file, allocates a session and its
// dedicated UDP socket, answers RSP_DOWNLOAD, then blocks waiting for the
// client's START handshake before running the sliding-window sender.
func (s *Server) handleDownload(conn net.Conn, req ctrlproto.ReqDownloadPayload, clientLog *logrus.Entry) {
	safe := filepath.Clean(req.Filename)
	if safe == "." || safe == ".." || strings.HasPrefix(safe, "..") || filepath.IsAbs(safe) {
		conn.Write(ctrlproto.EncodeDownloadError())
		return
	}
	path := filepath.Join(s.cfg.RepoDir, safe)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		conn.Write(ctrlproto.EncodeDownloadError())
		return
	}
	packets := filepack.Pack(0, path)
	if packets == nil && info.Size() > 0 {
		conn.Write(ctrlproto.EncodeDownloadError())
		return
	}

	first := s.sessions.Count() == 0
	udpConn, err := s.dialSession(req.ClientUDPIP, req.ClientUDPPort, first)
	if err != nil {
		clientLog.WithError(err).Warn("could not bind session UDP socket")
		conn.Write(ctrlproto.EncodeDownloadError())
		return
	}

	sessionID := s.sessions.Allocate()
	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
		s.metrics.SessionsTotal.Inc()
	}
	for i := range packets {
		packets[i].SessionID = sessionID
	}

	localPort := udpConn.LocalAddr().(*net.UDPAddr).Port
	rsp := ctrlproto.RspDownloadPayload{
		ServerUDPIP:   resolveAdvertiseIP(s.cfg.UDPHost),
		ServerUDPPort: uint16(localPort),
		SessionID:     sessionID,
		FileLength:    uint64(info.Size()),
	}
	if _, err := conn.Write(ctrlproto.EncodeRspDownload(rsp)); err != nil {
		udpConn.Close()
		s.sessions.Release(sessionID)
		return
	}

	sessionLog := logging.Session(sessionID)

	// Tie this session's lifetime to the owning control connection: a
	// background watcher (bounded to this call, joined before returning)
	// blocks on a Read of conn so that a peer close or protocol violation
	// during the transfer is observed promptly and aborts the sender.
	// handleConn is blocked in this call and does not read conn
	// meanwhile, so the watcher is its only reader during the transfer;
	// the client sends nothing then, so any byte that arrives is a
	// protocol violation and is consumed by the watcher.
	abort := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		peek := make([]byte, 1)
		conn.Read(peek)
		close(abort)
	}()

	s.runSession(udpConn, sessionID, packets, sessionLog, abort)

	// The transfer is over; force the watcher's Read to return so it
	// doesn't keep straddling the connection once handleConn resumes
	// reading the next command.
	conn.SetReadDeadline(time.Now())
	<-watchDone
	conn.SetReadDeadline(time.Time{})
}

// runSession waits for the client's START datagram before transmitting, so
// the sender's first timeout window starts once the client is actually
// listening, then runs the sender to completion (or until abort is closed)
// and releases the session.
func (s *Server) runSession(conn *net.UDPConn, sessionID uint32, packets []xferpkt.Packet, log *logrus.Entry, abort <-chan struct{}) {
	defer func() {
		conn.Close()
		s.sessions.Release(sessionID)
		if s.metrics != nil {
			s.metrics.SessionsActive.Dec()
		}
	}()

	if err := s.awaitStart(conn); err != nil {
		log.WithError(err).Warn("never received START; abandoning session")
		return
	}

	snd := sender.New(conn, packets, sender.Config{
		SessionID: sessionID,
		Window:    s.cfg.Window,
		Timeout:   s.cfg.Timeout(),
		LossRate:  s.cfg.LossRate,
		Seed:      int64(sessionID),
		Abort:     abort,
	}, s.metrics, log)

	if err := snd.Run(); err != nil {
		log.WithError(err).Warn("sender loop ended with error")
		return
	}
	log.Info("transfer complete")
}

// awaitStart blocks until the client's START datagram arrives on conn, or
// the handshake window elapses.
func (s *Server) awaitStart(conn *net.UDPConn) error {
	if err := conn.SetReadDeadline(time.Now().Add(startHandshakeTimeout)); err != nil {
		return err
	}
	buf := make([]byte, 1)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		if n >= 1 {
			if p, perr := xferpkt.Parse(buf[:n]); perr == nil && p.Flag == xferpkt.FlagSTART {
				return conn.SetReadDeadline(time.Time{})
			}
		}
	}
}

// dialSession binds the session's dedicated UDP socket and connects it to
// the client's declared endpoint. The server's configured UDP port is only
// attempted when tryConfiguredPort is set (handleDownload sets it when no
// other session is live); otherwise, or if that port is already taken, it
// falls back to an OS-assigned ephemeral port so concurrent downloads never
// collide.
func (s *Server) dialSession(clientIP net.IP, clientPort uint16, tryConfiguredPort bool) (*net.UDPConn, error) {
	raddr := &net.UDPAddr{IP: clientIP, Port: int(clientPort)}

	if tryConfiguredPort {
		laddr := &net.UDPAddr{IP: net.ParseIP(s.cfg.UDPHost), Port: s.cfg.UDPPort}
		if conn, err := net.DialUDP("udp", laddr, raddr); err == nil {
			return conn, nil
		}
	}
	laddr := &net.UDPAddr{IP: net.ParseIP(s.cfg.UDPHost), Port: 0}
	return net.DialUDP("udp", laddr, raddr)
}

// resolveAdvertiseIP returns the IP clients should dial back to. An unset
// or wildcard configured host advertises the loopback address, matching the
// specification's single-host demonstration setup.
func resolveAdvertiseIP(host string) net.IP {
	ip := net.ParseIP(host)
	if ip == nil || ip.IsUnspecified() {
		return net.IPv4(127, 0, 0, 1)
	}
	return ip
}

func sessionSeed() int64 { return time.Now().UnixNano() }

func itoa(n int) string { return strconv.Itoa(n) }
