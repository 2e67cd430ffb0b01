// Command logsrvd is the daemon entrypoint: TLS+TCP listener, a
// cooperative per-connection read loop, and the wiring that selects the
// dispatch table (local or journal) every connection binds at accept
// time. This is deliberately thin — the per-connection message-
// processing engine it wires together lives in internal/dispatch and
// the packages it composes; this file is not part of that core
// (spec.md §1).
//
// Adapted from the teacher's relay/main.go: same self-signed-fallback
// TLS config shape, same signal-driven graceful shutdown draining open
// connections before exit. Unlike the teacher, configuration is loaded
// before the health server starts, since the health server's address
// comes from the configuration.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/relaysink/logsrvd/internal/config"
	"github.com/relaysink/logsrvd/internal/conn"
	"github.com/relaysink/logsrvd/internal/dispatch"
	"github.com/relaysink/logsrvd/internal/eventlog"
	"github.com/relaysink/logsrvd/internal/health"
	"github.com/relaysink/logsrvd/internal/logging"
	"github.com/relaysink/logsrvd/internal/wire"
)

var (
	sysLogger *slog.Logger
	registry  *conn.Registry
	checker   *health.Checker
	nextConn  int64
)

func main() {
	sysLogger = logging.New(os.Stdout, slog.LevelInfo)
	checker = health.NewChecker("0.1.0")
	registry = conn.NewRegistry()

	configPath := os.Getenv("LOGSRVD_CONFIG")
	if configPath == "" {
		configPath = "/etc/logsrvd/logsrvd.yaml"
	}
	source := config.NewYAMLFileSource(configPath)
	cfg, err := source.Load(context.Background())
	if err != nil {
		sysLogger.Error("failed to load configuration",
			slog.String("component", "config"),
			logging.Errno(err),
		)
		log.Fatalf("load config: %v", err)
	}
	defer source.Close()

	go startHealthServer(cfg.HealthAddr)

	evFile, err := os.OpenFile(cfg.EventLogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		sysLogger.Error("failed to open event log",
			slog.String("component", "eventlog"),
			slog.String("path", cfg.EventLogPath),
			logging.Errno(err),
		)
		log.Fatalf("open event log: %v", err)
	}
	defer evFile.Close()

	var formatter eventlog.Formatter
	if cfg.EventLogFormat == "text" {
		formatter = eventlog.TextFormatter{}
	} else {
		formatter = eventlog.JSONFormatter{}
	}
	evLog := eventlog.NewLogger(formatter, evFile)
	defer evLog.Close()

	table := buildDispatchTable(cfg, evLog)

	if err := backendReady(cfg); err != nil {
		sysLogger.Error("backend readiness check failed",
			slog.String("component", "health"),
			logging.Errno(err),
		)
		log.Fatalf("backend not ready: %v", err)
	}
	checker.SetReady(true)
	sysLogger.Info("service ready", slog.String("component", "system"))

	tlsConfig, err := loadOrGenerateTLSConfig(cfg)
	if err != nil {
		sysLogger.Error("failed to prepare TLS config",
			slog.String("component", "tls"),
			logging.Errno(err),
		)
		log.Fatalf("TLS config: %v", err)
	}

	listener, err := tls.Listen("tcp", cfg.ListenAddr, tlsConfig)
	if err != nil {
		sysLogger.Error("failed to bind listener",
			slog.String("component", "server"),
			slog.String("address", cfg.ListenAddr),
			logging.Errno(err),
		)
		log.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go acceptLoop(listener, table, cfg)

	sig := <-sigChan
	sysLogger.Info("received shutdown signal",
		slog.String("component", "system"),
		slog.String("signal", sig.String()),
	)

	checker.SetReady(false)
	listener.Close()

	drainDeadline := time.NewTimer(30 * time.Second)
	defer drainDeadline.Stop()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for registry.Count() > 0 {
		select {
		case <-drainDeadline.C:
			sysLogger.Warn("shutdown timeout reached",
				slog.String("component", "system"),
				slog.Int("remaining_connections", registry.Count()),
			)
			registry.CloseAll()
			sysLogger.Info("shutdown complete", slog.String("component", "system"))
			return
		case <-ticker.C:
		}
	}
	sysLogger.Info("shutdown complete", slog.String("component", "system"))
}

// buildDispatchTable selects the local or journal dispatch table,
// fixed for the process's whole lifetime (spec.md §4.8: "bound at
// accept time ... the table never changes during a connection").
func buildDispatchTable(cfg *config.Config, evLog *eventlog.Logger) *dispatch.Table {
	if cfg.Sink == "journal" {
		return dispatch.NewJournalTable(dispatch.JournalConfig{
			RelayDir:       cfg.RelayDir,
			Codec:          wire.JSONCodec{},
			MaxMessageSize: cfg.MessageSizeMax,
		})
	}
	return dispatch.NewLocalTable(dispatch.LocalConfig{
		IologRoot:             cfg.IologDir,
		IologMode:             cfg.IologMode,
		Compressed:            cfg.Compressed,
		RandomDropProbability: cfg.RandomDropProbability,
		EventLog:              evLog,
	})
}

func acceptLoop(listener net.Listener, table *dispatch.Table, cfg *config.Config) {
	for {
		raw, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			sysLogger.Error("accept failed",
				slog.String("component", "server"),
				logging.Errno(err),
			)
			continue
		}
		nextConn++
		id := strconv.FormatInt(nextConn, 10)
		go handleConnection(raw, id, table, cfg)
	}
}

// handleConnection drives one connection's cooperative read loop: decode
// a frame, hand it to the dispatch switch, and — for accept messages
// that opened a log — enqueue the log-id response (spec.md §6). No
// network I/O occurs inside a dispatch handler; it happens only here,
// between dispatch calls.
func handleConnection(netConn net.Conn, id string, table *dispatch.Table, cfg *config.Config) {
	defer netConn.Close()

	c := conn.New(id, sinkKind(cfg))
	registry.Add(netConn.RemoteAddr().String(), c)
	defer registry.Remove(netConn.RemoteAddr().String(), c)
	defer c.Close()

	codec := wire.JSONCodec{}
	fr := wire.NewFrameReader(netConn, cfg.MessageSizeMax)

	for {
		raw, err := fr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			sysLogger.Debug("frame read failed",
				slog.String("component", "server"),
				slog.String("connection", id),
				logging.Errno(err),
			)
			c.Fail(err)
			return
		}
		if raw == nil {
			continue
		}

		msg, err := codec.Decode(raw)
		if err != nil {
			sysLogger.Debug("decode failed",
				slog.String("component", "server"),
				slog.String("connection", id),
				logging.Errno(err),
			)
			c.Fail(err)
			return
		}

		logIDBefore := c.LogID
		if err := table.Dispatch(c, raw, msg); err != nil {
			sysLogger.Debug("dispatch failed",
				slog.String("component", "server"),
				slog.String("connection", id),
				logging.Errno(err),
			)
			return
		}

		accept, isAccept := msg.(wire.AcceptMessage)
		if isAccept && accept.ExpectIOBufs && c.LogID != "" && c.LogID != logIDBefore {
			if cfg.ServerTimeout > 0 {
				netConn.SetWriteDeadline(time.Now().Add(cfg.ServerTimeout))
			}
			err := wire.WriteLogIDMessage(netConn, c.LogID)
			netConn.SetWriteDeadline(time.Time{})
			if err != nil {
				sysLogger.Debug("write log-id message failed",
					slog.String("component", "server"),
					slog.String("connection", id),
					logging.Errno(err),
				)
				return
			}
		}

		if msg.Kind() == wire.KindExit {
			return
		}
	}
}

func sinkKind(cfg *config.Config) conn.SinkKind {
	if cfg.Sink == "journal" {
		return conn.SinkJournal
	}
	return conn.SinkLocal
}

// backendReady verifies the log backends this daemon depends on are
// actually usable before advertising readiness: the sink-specific
// storage root (iolog_dir for the local sink, relay_dir for the
// journal sink) must exist and be a directory. This is the genuine
// readiness signal health.Checker's SetReady gates on, rather than the
// unconditional "ready once we got this far" the teacher's relay/main.go
// used for its IPAM/ACL check.
func backendReady(cfg *config.Config) error {
	root := cfg.IologDir
	if cfg.Sink == "journal" {
		root = cfg.RelayDir
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat storage root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", root)
	}
	return nil
}

func startHealthServer(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.LivenessHandler)
	mux.HandleFunc("/ready", checker.ReadinessHandler)

	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{Addr: addr, Handler: mux}

	sysLogger.Info("starting health check server",
		slog.String("component", "health"),
		slog.String("address", addr),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sysLogger.Error("health server failed",
			slog.String("component", "health"),
			logging.Errno(err),
		)
	}
}

// loadOrGenerateTLSConfig loads a configured cert/key pair, or falls
// back to a self-signed certificate, the same compatibility shape the
// teacher's generateTLSConfig/loadTLSConfig pair uses.
func loadOrGenerateTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
		sysLogger.Warn("using self-signed certificate (no tls_cert_file/tls_key_file configured)",
			slog.String("component", "tls"),
		)
		return generateSelfSignedTLSConfig()
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server cert: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func generateSelfSignedTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"logsrvd self-signed"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("0.0.0.0")},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("build tls certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{tlsCert}, MinVersion: tls.VersionTLS13}, nil
}
