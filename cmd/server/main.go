// Command server runs the file-download service: a TCP control listener
// plus a bounded worker pool that drives one sliding-window UDP sender per
// active download session.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"filexfer/internal/config"
	"filexfer/internal/logging"
	"filexfer/internal/metrics"
	"filexfer/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to an INI file supplying server settings")
	tcpPort := flag.Int("tcp-port", 0, "TCP control port (0 = prompt/config/default)")
	udpPort := flag.Int("udp-port", 0, "UDP port a session attempts to bind when no other session is live (0 = prompt/config/default)")
	repoDir := flag.String("repo", "", "download repository directory (empty = prompt/config/default)")
	window := flag.Int("window", 0, "sliding-window size W, 1..100 (0 = prompt/config/default)")
	lossRate := flag.Float64("loss-rate", -1, "simulated packet-loss rate, 0..1 (negative = prompt/config/default)")
	timeoutMS := flag.Int("timeout-ms", 0, "ACK timer in milliseconds, 10..500 (0 = prompt/config/default)")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9100)")
	flag.Parse()

	logging.Init()

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadServerConfigFile(*configPath, cfg)
		if err != nil {
			logrus.WithError(err).Fatal("could not load config file")
		}
	}

	reader := bufio.NewReader(os.Stdin)
	if *tcpPort != 0 {
		cfg.TCPPort = *tcpPort
	} else if *configPath == "" {
		cfg.TCPPort = promptInt(reader, "TCP port", cfg.TCPPort)
	}
	if *udpPort != 0 {
		cfg.UDPPort = *udpPort
	} else if *configPath == "" {
		cfg.UDPPort = promptInt(reader, "UDP port", cfg.UDPPort)
	}
	if *repoDir != "" {
		cfg.RepoDir = *repoDir
	} else if *configPath == "" {
		cfg.RepoDir = promptString(reader, "download repository path", cfg.RepoDir)
	}
	if *window != 0 {
		cfg.Window = *window
	} else if *configPath == "" {
		cfg.Window = promptInt(reader, "window size W (1..100)", cfg.Window)
	}
	if *lossRate >= 0 {
		cfg.LossRate = *lossRate
	} else if *configPath == "" {
		cfg.LossRate = promptFloat(reader, "packet-loss rate p (0.0..1.0)", cfg.LossRate)
	}
	if *timeoutMS != 0 {
		cfg.TimeoutMS = *timeoutMS
	} else if *configPath == "" {
		cfg.TimeoutMS = promptInt(reader, "ACK timer in ms (10..500)", cfg.TimeoutMS)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	if errs := config.ValidateServer(cfg); len(errs) > 0 {
		for _, e := range errs {
			logrus.WithError(e).Error("invalid configuration")
		}
		os.Exit(1)
	}

	var reg *prometheus.Registry
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr, reg); err != nil {
				logrus.WithError(err).Warn("metrics server stopped")
			}
		}()
		logrus.WithField("addr", cfg.MetricsAddr).Info("metrics endpoint enabled")
	}

	srv := server.New(cfg, reg)
	logrus.WithFields(logrus.Fields{
		"tcp_port":   cfg.TCPPort,
		"udp_port":   cfg.UDPPort,
		"repo_dir":   cfg.RepoDir,
		"window":     cfg.Window,
		"loss_rate":  cfg.LossRate,
		"timeout_ms": cfg.TimeoutMS,
	}).Info("starting file-download server")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		logrus.WithError(err).Fatal("server stopped")
	case sig := <-sigCh:
		logrus.WithField("signal", sig).Info("shutting down")
		srv.Shutdown()
	}
}

func promptString(r *bufio.Reader, label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func promptInt(r *bufio.Reader, label string, def int) int {
	s := promptString(r, label, strconv.Itoa(def))
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func promptFloat(r *bufio.Reader, label string, def float64) float64 {
	s := promptString(r, label, strconv.FormatFloat(def, 'f', -1, 64))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
