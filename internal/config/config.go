// Package config is the ambient collaborator spec.md §6 lists as
// external: relay_dir(), iolog_mode(), server_timeout(), and the
// random-drop test knob. Its YAML loading shape (Source interface,
// Load/Close; the teacher's Watch is not carried over) is adapted from
// the teacher's relay/policy/yaml_storage.go PolicyStorage abstraction.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Errors returned by Source implementations.
var (
	ErrConfigNotFound = errors.New("config not found")
	ErrConfigInvalid  = errors.New("config validation failed")
)

// Config holds every process-wide, read-only-during-a-connection setting
// the core's handlers consult (spec.md §5: "Process-wide configuration
// ... is read-only during a connection's lifetime; updates apply to
// subsequent connections").
type Config struct {
	// RelayDir is the root directory under which incoming/ and
	// outgoing/ journal directories live (C3).
	RelayDir string `yaml:"relay_dir"`

	// IologDir is the root directory under which per-session I/O-log
	// trees are created (C5).
	IologDir string `yaml:"iolog_dir"`

	// IologMode is the base permission mode new I/O-log stream files
	// and the timing file are created with; the exit handler clears
	// write bits from this mode on the timing file to mark completion
	// (spec.md §4.8, SPEC_FULL.md §12 item 5).
	IologMode fs.FileMode `yaml:"iolog_mode"`

	// MessageSizeMax bounds a single framed record (C2).
	MessageSizeMax uint32 `yaml:"message_size_max"`

	// ServerTimeout bounds how long the event loop waits for an
	// outbound write (e.g. the log-id response) to complete.
	ServerTimeout time.Duration `yaml:"server_timeout"`

	// RandomDropProbability randomly fails an I/O-buffer write after
	// it has already taken effect, to exercise restart paths in test
	// harnesses. Must be zero in production (spec.md §9).
	RandomDropProbability float64 `yaml:"random_drop_probability"`

	// EventLogFormat selects the event-log emitter's formatter:
	// "json" (default, canonicalized via RFC 8785) or "text".
	EventLogFormat string `yaml:"event_log_format"`

	// ListenAddr is the TCP address the daemon's framed-message
	// listener binds to.
	ListenAddr string `yaml:"listen_addr"`

	// TLSCertFile/TLSKeyFile name the daemon's server certificate and
	// key; when either is empty, cmd/logsrvd falls back to a
	// self-signed certificate generated at startup.
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`

	// HealthAddr is the address the liveness/readiness HTTP endpoint
	// binds to.
	HealthAddr string `yaml:"health_addr"`

	// Compressed enables zstd compression on I/O-log stream files.
	Compressed bool `yaml:"compressed"`

	// Sink selects which dispatch table every connection binds at
	// accept time: "local" (the daemon is the terminal sink) or
	// "journal" (the daemon is a relaying intermediary). Fixed
	// process-wide; never varies per connection (spec.md §4.8).
	Sink string `yaml:"sink"`

	// EventLogPath is the file the administrative event log (C7)
	// appends records to; one shared stream for the whole daemon, not
	// duplicated per session (spec.md's testable property that an
	// accept record exists even when no I/O-log directory is created).
	EventLogPath string `yaml:"event_log_path"`
}

// DefaultMessageSizeMax is used when a loaded config leaves
// MessageSizeMax unset.
const DefaultMessageSizeMax = 256 * 1024

// Validate checks structural invariants and fills in defaults that are
// safe to infer (mirrors the teacher's Policy.Validate shape).
func (c *Config) Validate() error {
	if c.RelayDir == "" && c.IologDir == "" {
		return fmt.Errorf("%w: at least one of relay_dir or iolog_dir must be set", ErrConfigInvalid)
	}
	if c.MessageSizeMax == 0 {
		c.MessageSizeMax = DefaultMessageSizeMax
	}
	if c.IologMode == 0 {
		c.IologMode = 0640
	}
	if c.ServerTimeout == 0 {
		c.ServerTimeout = 10 * time.Second
	}
	if c.RandomDropProbability < 0 || c.RandomDropProbability > 1 {
		return fmt.Errorf("%w: random_drop_probability must be in [0,1], got %v", ErrConfigInvalid, c.RandomDropProbability)
	}
	switch c.EventLogFormat {
	case "":
		c.EventLogFormat = "json"
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown event_log_format %q", ErrConfigInvalid, c.EventLogFormat)
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:4433"
	}
	if c.HealthAddr == "" {
		c.HealthAddr = ":8080"
	}
	switch c.Sink {
	case "":
		c.Sink = "local"
	case "local", "journal":
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrConfigInvalid, c.Sink)
	}
	if c.EventLogPath == "" {
		base := c.IologDir
		if base == "" {
			base = c.RelayDir
		}
		c.EventLogPath = filepath.Join(base, "events.log")
	}
	return nil
}

// Source abstracts the configuration backend, the way the teacher's
// PolicyStorage abstracts ACL policy storage.
type Source interface {
	Load(ctx context.Context) (*Config, error)
	Close() error
}

// YAMLFileSource loads Config from a local YAML file.
type YAMLFileSource struct {
	path string

	mu     sync.RWMutex
	cached *Config
}

// NewYAMLFileSource creates a YAML-backed config source.
func NewYAMLFileSource(path string) *YAMLFileSource {
	return &YAMLFileSource{path: path}
}

func (s *YAMLFileSource) Load(ctx context.Context) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, s.path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s.cached = &c
	return &c, nil
}

func (s *YAMLFileSource) Close() error { return nil }
