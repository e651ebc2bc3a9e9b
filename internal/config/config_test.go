package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTOML = `
[cluster]
id = "3f8a1b2e-1111-4c2e-9a1a-000000000001"
name = "prod"
cluster_size = 8
password = "0123456789abcdef"

[node]
id = "3f8a1b2e-2222-4c2e-9a1a-000000000002"
host = "10.0.0.5"
port = 7946

[swim]
ping_heartbeat = "500ms"

[admin]
enabled = true
`

func TestLoad_OverlaysFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swim.toml")
	if err := os.WriteFile(path, []byte(sampleTOML), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Cluster.Name != "prod" || cfg.Node.Port != 7946 {
		t.Fatalf("cfg = %+v, file values not applied", cfg)
	}
	if cfg.Swim.MaxPingWithoutAckBeforeDead != DefaultConfig().Swim.MaxPingWithoutAckBeforeDead {
		t.Fatal("unset swim fields should keep their default value")
	}
	if cfg.Swim.PingHeartbeat.String() != "500ms" {
		t.Fatalf("PingHeartbeat = %s, want 500ms", cfg.Swim.PingHeartbeat)
	}
}

func TestValidate_RejectsMissingClusterName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Node.Port = 7946
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate() to reject an empty cluster name")
	}
}

func TestValidate_RejectsDeadThresholdBelowSuspectThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.Name = "x"
	cfg.Node.Port = 7946
	cfg.Swim.MaxPingWithoutAckBeforeSuspect = 4
	cfg.Swim.MaxPingWithoutAckBeforeDead = 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate() to reject dead < suspect threshold")
	}
}
