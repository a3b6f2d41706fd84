// Package config manages meshd daemon configuration using koanf/v2.
//
// Supports compiled-in defaults, YAML files, and environment variables,
// layered in that order: each later layer overrides the earlier ones.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete meshd configuration.
type Config struct {
	Node    NodeConfig    `koanf:"node"`
	Radio   RadioConfig   `koanf:"radio"`
	Timers  TimersConfig  `koanf:"timers"`
	Limits  LimitsConfig  `koanf:"limits"`
	Admin   AdminConfig   `koanf:"admin"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

// NodeConfig identifies this mesh participant.
type NodeConfig struct {
	// MeshID tags the logical mesh this node belongs to; frames tagged
	// with any other mesh ID are silently dropped.
	MeshID uint16 `koanf:"mesh_id"`

	// ID is this node's 16-bit mesh address, used when IDSource is
	// "static".
	ID uint16 `koanf:"id"`

	// IDSource selects how the node ID is resolved at startup: "env" reads
	// identity.EnvVar and ignores ID, "static" uses ID as configured.
	IDSource string `koanf:"id_source"`

	// AllowedNeighbors restricts which node IDs may be tracked in the
	// neighbor table. A single 0 entry (or an empty list) disables the
	// filter.
	AllowedNeighbors []uint16 `koanf:"allowed_neighbors"`
}

// RadioConfig selects and configures the radio transport.
type RadioConfig struct {
	// Transport is "bus" (in-process, for simulation/tests) or "udp"
	// (multicast UDP, for multi-process demos).
	Transport string `koanf:"transport"`

	// MulticastGroup and MulticastPort configure the udp transport.
	MulticastGroup string `koanf:"multicast_group"`
	MulticastPort  int    `koanf:"multicast_port"`
	Interface      string `koanf:"interface"`
}

// TimersConfig holds the protocol's timing constants. Defaults mirror the
// original firmware's config.h exactly. Only HelloInterval is passed to the
// mesh node; the mesh package uses its own compile-time constants for the
// other timers, so overriding them does not change link-layer behavior.
type TimersConfig struct {
	AckTimeout       time.Duration `koanf:"ack_timeout"`
	AckReplayTTL     time.Duration `koanf:"ack_replay_ttl"`
	InitialWaitLower time.Duration `koanf:"initial_wait_lower"`
	InitialWaitUpper time.Duration `koanf:"initial_wait_upper"`
	BackoffLower     time.Duration `koanf:"backoff_lower"`
	BackoffUpper     time.Duration `koanf:"backoff_upper"`
	ListenWindow     time.Duration `koanf:"listen_window"`
	HelloInterval    time.Duration `koanf:"hello_interval"`
	NeighborExpiry   time.Duration `koanf:"neighbor_expiry"`
}

// LimitsConfig holds the protocol's fixed-capacity constants. These values
// are not passed to the mesh node, which uses its own compile-time limits.
type LimitsConfig struct {
	MaxNeighbors         int `koanf:"max_neighbors"`
	MaxPendingAcks       int `koanf:"max_pending_acks"`
	MaxRetries           int `koanf:"max_retries"`
	MaxQueueSize         int `koanf:"max_queue_size"`
	MaxWindowRetries     int `koanf:"max_window_retries"`
	RoutingMaxCandidates int `koanf:"routing_max_candidates"`
	RouteMaxAlternates   int `koanf:"route_max_alternates"`
	AltMaxPerMessage     int `koanf:"alt_max_per_message"`
}

// AdminConfig holds the JSON admin HTTP surface configuration.
type AdminConfig struct {
	// Addr is the HTTP listen address for the admin endpoint (e.g., ":8081").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with the original firmware's
// compile-time constants (config.h), translated into runtime defaults.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			MeshID:   0x1234,
			IDSource: "env",
		},
		Radio: RadioConfig{
			Transport:      "bus",
			MulticastGroup: "239.192.10.10",
			MulticastPort:  17761,
		},
		Timers: TimersConfig{
			AckTimeout:       15 * time.Second,
			AckReplayTTL:     15 * time.Second,
			InitialWaitLower: 3 * time.Second,
			InitialWaitUpper: 7 * time.Second,
			BackoffLower:     500 * time.Millisecond,
			BackoffUpper:     1 * time.Second,
			ListenWindow:     500 * time.Millisecond,
			HelloInterval:    60 * time.Second,
			NeighborExpiry:   120 * time.Second,
		},
		Limits: LimitsConfig{
			MaxNeighbors:         10,
			MaxPendingAcks:       10,
			MaxRetries:           3,
			MaxQueueSize:         10,
			MaxWindowRetries:     5,
			RoutingMaxCandidates: 3,
			RouteMaxAlternates:   5,
			AltMaxPerMessage:     1,
		},
		Admin: AdminConfig{
			Addr: ":8081",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for meshd configuration.
// Variables are named MESHD_<section>_<key>, e.g., MESHD_ADMIN_ADDR.
const envPrefix = "MESHD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (MESHD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults. path may be empty to skip the file layer.
//
// Environment variable mapping:
//
//	MESHD_NODE_MESH_ID     -> node.mesh_id
//	MESHD_ADMIN_ADDR       -> admin.addr
//	MESHD_METRICS_ADDR     -> metrics.addr
//	MESHD_LOG_LEVEL        -> log.level
//
// Uses koanf/v2 with file + env providers and a YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms MESHD_ADMIN_ADDR -> admin.addr.
// Strips the MESHD_ prefix, lowercases, and replaces only the first _ (the
// section separator) with ., so MESHD_NODE_MESH_ID -> node.mesh_id.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"node.mesh_id":                  defaults.Node.MeshID,
		"node.id":                       defaults.Node.ID,
		"node.id_source":                defaults.Node.IDSource,
		"radio.transport":               defaults.Radio.Transport,
		"radio.multicast_group":         defaults.Radio.MulticastGroup,
		"radio.multicast_port":          defaults.Radio.MulticastPort,
		"timers.ack_timeout":            defaults.Timers.AckTimeout.String(),
		"timers.ack_replay_ttl":         defaults.Timers.AckReplayTTL.String(),
		"timers.initial_wait_lower":     defaults.Timers.InitialWaitLower.String(),
		"timers.initial_wait_upper":     defaults.Timers.InitialWaitUpper.String(),
		"timers.backoff_lower":          defaults.Timers.BackoffLower.String(),
		"timers.backoff_upper":          defaults.Timers.BackoffUpper.String(),
		"timers.listen_window":          defaults.Timers.ListenWindow.String(),
		"timers.hello_interval":         defaults.Timers.HelloInterval.String(),
		"timers.neighbor_expiry":        defaults.Timers.NeighborExpiry.String(),
		"limits.max_neighbors":          defaults.Limits.MaxNeighbors,
		"limits.max_pending_acks":       defaults.Limits.MaxPendingAcks,
		"limits.max_retries":            defaults.Limits.MaxRetries,
		"limits.max_queue_size":         defaults.Limits.MaxQueueSize,
		"limits.max_window_retries":     defaults.Limits.MaxWindowRetries,
		"limits.routing_max_candidates": defaults.Limits.RoutingMaxCandidates,
		"limits.route_max_alternates":   defaults.Limits.RouteMaxAlternates,
		"limits.alt_max_per_message":    defaults.Limits.AltMaxPerMessage,
		"admin.addr":                    defaults.Admin.Addr,
		"metrics.addr":                  defaults.Metrics.Addr,
		"metrics.path":                  defaults.Metrics.Path,
		"log.level":                     defaults.Log.Level,
		"log.format":                    defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyAdminAddr indicates the admin listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrInvalidMeshID indicates the mesh ID is zero.
	ErrInvalidMeshID = errors.New("node.mesh_id must be nonzero")

	// ErrInvalidIDSource indicates node.id_source is not recognized.
	ErrInvalidIDSource = errors.New("node.id_source must be env or static")

	// ErrMissingStaticID indicates id_source=static but node.id is zero.
	ErrMissingStaticID = errors.New("node.id must be set when id_source is static")

	// ErrInvalidTransport indicates radio.transport is not recognized.
	ErrInvalidTransport = errors.New("radio.transport must be bus or udp")

	// ErrInvalidAckTimeout indicates the ACK timeout is non-positive.
	ErrInvalidAckTimeout = errors.New("timers.ack_timeout must be > 0")
)

// ValidIDSources lists the recognized node.id_source values.
var ValidIDSources = map[string]bool{"env": true, "static": true}

// ValidTransports lists the recognized radio.transport values.
var ValidTransports = map[string]bool{"bus": true, "udp": true}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}

	if cfg.Node.MeshID == 0 {
		return ErrInvalidMeshID
	}

	if !ValidIDSources[cfg.Node.IDSource] {
		return fmt.Errorf("%q: %w", cfg.Node.IDSource, ErrInvalidIDSource)
	}

	if cfg.Node.IDSource == "static" && cfg.Node.ID == 0 {
		return ErrMissingStaticID
	}

	if !ValidTransports[cfg.Radio.Transport] {
		return fmt.Errorf("%q: %w", cfg.Radio.Transport, ErrInvalidTransport)
	}

	if cfg.Timers.AckTimeout <= 0 {
		return ErrInvalidAckTimeout
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
