// Package config loads a node's TOML configuration file: cluster
// identity, bind address, protocol tunables, and the optional debug
// HTTP listener.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/coreswim/swim/internal/swim"
)

// ClusterConfig describes the cluster a node joins or creates.
type ClusterConfig struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Namespace   string   `toml:"namespace"`
	Tags        []string `toml:"tags"`
	Password    string   `toml:"password"`
	ClusterSize int      `toml:"cluster_size"`
}

// NodeConfig describes this process's own identity and bind address.
type NodeConfig struct {
	ID   string `toml:"id"`
	Host string `toml:"host"`
	Port uint16 `toml:"port"`
}

// Duration wraps time.Duration so it can be written in a TOML file as
// a plain string ("500ms", "1s") instead of a raw integer of
// nanoseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// SwimConfig mirrors swim.Config in TOML-friendly form; fields the file
// leaves unset keep swim.DefaultConfig()'s values (Load overlays the file
// onto DefaultConfig), while a field set to zero in the file stays zero.
type SwimConfig struct {
	EnableDiagTap                  bool     `toml:"enable_diag_tap"`
	MaxUDPSize                     int      `toml:"max_udp_size"`
	IgnoreMaxUDPSize               bool     `toml:"ignore_max_udp_size"`
	MaxPayloadSize                 int      `toml:"max_payload_size"`
	MaxAntiEntropyItems            int      `toml:"max_anti_entropy_items"`
	MaxPingWithoutAckBeforeSuspect int      `toml:"max_ping_without_ack_before_suspect"`
	MaxPingWithoutAckBeforeDead    int      `toml:"max_ping_without_ack_before_dead"`
	PingHeartbeat                  Duration `toml:"ping_heartbeat"`
	AckTimeout                     Duration `toml:"ack_timeout"`
	MaxJoinTime                    Duration `toml:"max_join_time"`
	RejoinIfDead                   bool     `toml:"rejoin_if_dead"`
	RejoinMaxAttempts              int      `toml:"rejoin_max_attempts"`
}

// AdminConfig describes the optional read-only debug HTTP listener.
type AdminConfig struct {
	Enabled        bool   `toml:"enabled"`
	Host           string `toml:"host"`
	Port           uint16 `toml:"port"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// Config is the full decoded node configuration file.
type Config struct {
	Cluster ClusterConfig `toml:"cluster"`
	Node    NodeConfig    `toml:"node"`
	Swim    SwimConfig    `toml:"swim"`
	Admin   AdminConfig   `toml:"admin"`
}

// DefaultConfig returns a Config with every section defaulted, suitable
// as a starting point before overlaying a file's values.
func DefaultConfig() Config {
	d := swim.DefaultConfig()
	return Config{
		Cluster: ClusterConfig{ClusterSize: 1},
		Node:    NodeConfig{Host: "0.0.0.0"},
		Swim: SwimConfig{
			EnableDiagTap:                  d.EnableDiagTap,
			MaxUDPSize:                     d.MaxUDPSize,
			IgnoreMaxUDPSize:               d.IgnoreMaxUDPSize,
			MaxPayloadSize:                 d.MaxPayloadSize,
			MaxAntiEntropyItems:            d.MaxAntiEntropyItems,
			MaxPingWithoutAckBeforeSuspect: d.MaxPingWithoutAckBeforeSuspect,
			MaxPingWithoutAckBeforeDead:    d.MaxPingWithoutAckBeforeDead,
			PingHeartbeat:                  Duration(d.PingHeartbeat),
			AckTimeout:                     Duration(d.AckTimeout),
			MaxJoinTime:                    Duration(d.MaxJoinTime),
			RejoinIfDead:                   d.RejoinIfDead,
			RejoinMaxAttempts:              d.RejoinMaxAttempts,
		},
		Admin: AdminConfig{Host: "127.0.0.1", Port: 8500},
	}
}

// Load reads and decodes path, overlaying its values onto DefaultConfig,
// then validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("decode %s: unrecognized keys: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields Load cannot check on its own (cross-field
// and range constraints beyond what toml.DecodeFile enforces).
func (c Config) Validate() error {
	if c.Cluster.Name == "" {
		return fmt.Errorf("cluster.name is required")
	}
	if c.Cluster.ClusterSize < 1 {
		return fmt.Errorf("cluster.cluster_size must be >= 1")
	}
	if c.Node.Port == 0 {
		return fmt.Errorf("node.port must be 1-65535")
	}
	if c.Swim.MaxPingWithoutAckBeforeSuspect < 1 {
		return fmt.Errorf("swim.max_ping_without_ack_before_suspect must be >= 1")
	}
	if c.Swim.MaxPingWithoutAckBeforeDead < c.Swim.MaxPingWithoutAckBeforeSuspect {
		return fmt.Errorf("swim.max_ping_without_ack_before_dead must be >= max_ping_without_ack_before_suspect")
	}
	return nil
}

// ToSwimConfig converts the decoded [swim] section into swim.Config.
func (c Config) ToSwimConfig() swim.Config {
	return swim.Config{
		EnableDiagTap:                  c.Swim.EnableDiagTap,
		MaxUDPSize:                     c.Swim.MaxUDPSize,
		IgnoreMaxUDPSize:               c.Swim.IgnoreMaxUDPSize,
		MaxPayloadSize:                 c.Swim.MaxPayloadSize,
		MaxAntiEntropyItems:            c.Swim.MaxAntiEntropyItems,
		MaxPingWithoutAckBeforeSuspect: c.Swim.MaxPingWithoutAckBeforeSuspect,
		MaxPingWithoutAckBeforeDead:    c.Swim.MaxPingWithoutAckBeforeDead,
		PingHeartbeat:                  time.Duration(c.Swim.PingHeartbeat),
		AckTimeout:                     time.Duration(c.Swim.AckTimeout),
		MaxJoinTime:                    time.Duration(c.Swim.MaxJoinTime),
		RejoinIfDead:                   c.Swim.RejoinIfDead,
		RejoinMaxAttempts:              c.Swim.RejoinMaxAttempts,
	}
}
