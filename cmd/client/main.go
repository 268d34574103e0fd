// Command client drives interactive downloads against a file-download
// server: it prompts for connection parameters, then accepts /q, /l and
// /d <ip>:<port> <filename> commands on stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"filexfer/internal/client"
	"filexfer/internal/config"
	"filexfer/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to an INI file supplying client settings")
	serverHost := flag.String("server-host", "", "server IP (empty = prompt/config/default)")
	serverTCP := flag.Int("server-tcp-port", 0, "server TCP control port (0 = prompt/config/default)")
	serverUDP := flag.Int("server-udp-port", 0, "server UDP port (0 = prompt/config/default)")
	clientUDP := flag.Int("client-udp-port", 0, "local UDP port to receive on (0 = prompt/config/default)")
	downloadDir := flag.String("download-dir", "", "local download directory (empty = prompt/config/default)")
	lossRate := flag.Float64("loss-rate", -1, "simulated ACK loss rate, 0..1 (negative = prompt/config/default)")
	flag.Parse()

	logging.Init()

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadClientConfigFile(*configPath, cfg)
		if err != nil {
			logrus.WithError(err).Fatal("could not load config file")
		}
	}

	reader := bufio.NewReader(os.Stdin)
	if *serverHost != "" {
		cfg.ServerHost = *serverHost
	} else if *configPath == "" {
		cfg.ServerHost = promptString(reader, "server IP", cfg.ServerHost)
	}
	if *serverTCP != 0 {
		cfg.ServerTCP = *serverTCP
	} else if *configPath == "" {
		cfg.ServerTCP = promptInt(reader, "server TCP port", cfg.ServerTCP)
	}
	if *serverUDP != 0 {
		cfg.ServerUDP = *serverUDP
	} else if *configPath == "" {
		cfg.ServerUDP = promptInt(reader, "server UDP port", cfg.ServerUDP)
	}
	if *clientUDP != 0 {
		cfg.ClientUDP = *clientUDP
	} else if *configPath == "" {
		cfg.ClientUDP = promptInt(reader, "client UDP port", cfg.ClientUDP)
	}
	if *downloadDir != "" {
		cfg.DownloadDir = *downloadDir
	} else if *configPath == "" {
		cfg.DownloadDir = promptString(reader, "local download directory", cfg.DownloadDir)
	}
	if *lossRate >= 0 {
		cfg.LossRate = *lossRate
	} else if *configPath == "" {
		cfg.LossRate = promptFloat(reader, "packet-loss rate", cfg.LossRate)
	}

	c := client.New(cfg)
	defer c.Close()

	fmt.Println("Commands: /q (quit), /l (list files), /d <ip>:<port> <filename> (download)")
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "/q":
			if err := c.Quit(); err != nil {
				logrus.WithError(err).Warn("quit request failed")
			}
			return
		case line == "/l":
			runList(c)
		case strings.HasPrefix(line, "/d "):
			runDownload(c, strings.TrimPrefix(line, "/d "))
		case line == "":
			// ignore blank input
		default:
			fmt.Println("unrecognized command")
		}
	}
}

func runList(c *client.Client) {
	names, err := c.ListFiles()
	if err != nil {
		logrus.WithError(err).Warn("list-files request failed")
		return
	}
	if len(names) == 0 {
		fmt.Println("(no files)")
		return
	}
	for _, n := range names {
		fmt.Println("  " + n)
	}
}

// runDownload parses "<ip>:<port> <filename>" — the endpoint the client
// declares it is reachable at for this download's UDP session — and runs
// the download to completion against that declared endpoint.
func runDownload(c *client.Client, args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) != 2 {
		fmt.Println("usage: /d <ip>:<port> <filename>")
		return
	}
	host, portStr, err := net.SplitHostPort(parts[0])
	if err != nil {
		fmt.Println("usage: /d <ip>:<port> <filename>")
		return
	}
	ip := net.ParseIP(host)
	if ip == nil {
		fmt.Println("usage: /d <ip>:<port> <filename> (ip must be a dotted IPv4/IPv6 address)")
		return
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		fmt.Println("usage: /d <ip>:<port> <filename> (port must be 0..65535)")
		return
	}
	filename := strings.TrimSpace(parts[1])
	path, err := c.Download(ip, uint16(port), filename)
	if err != nil {
		logrus.WithError(err).WithField("file", filename).Warn("download failed")
		return
	}
	fmt.Printf("downloaded %s -> %s\n", filename, path)
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
