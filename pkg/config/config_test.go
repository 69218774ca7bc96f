package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testDefaultYAML = `
network:
  chain_id: test-chain
  listen_addr: /ip4/127.0.0.1/tcp/0
  discovery_tag: mina-test
  max_peers: 8
  churn_interval_s: 60
verifier:
  worker_pool_size: 2
logging:
  level: info
`

const testDevYAML = `
logging:
  level: debug
`

func withConfigDir(t *testing.T, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "cmd", "config"), 0o755); err != nil {
		t.Fatalf("unexpected error creating config dir: %v", err)
	}
	for name, contents := range files {
		path := filepath.Join(dir, "cmd", "config", name+".yaml")
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("unexpected error writing %s: %v", path, err)
		}
	}

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error getting cwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("unexpected error changing to temp dir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func TestLoadParsesDefaultConfig(t *testing.T) {
	withConfigDir(t, map[string]string{"default": testDefaultYAML})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Network.ChainID != "test-chain" {
		t.Fatalf("expected chain_id to be parsed, got %q", cfg.Network.ChainID)
	}
	if cfg.Network.MaxPeers != 8 {
		t.Fatalf("expected max_peers 8, got %d", cfg.Network.MaxPeers)
	}
	if cfg.Verifier.WorkerPoolSize != 2 {
		t.Fatalf("expected worker_pool_size 2, got %d", cfg.Verifier.WorkerPoolSize)
	}
}

func TestLoadMergesEnvSpecificOverrides(t *testing.T) {
	withConfigDir(t, map[string]string{"default": testDefaultYAML, "dev": testDevYAML})

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected the dev override to win, got %q", cfg.Logging.Level)
	}
	if cfg.Network.ChainID != "test-chain" {
		t.Fatalf("expected unrelated default fields to survive the merge, got %q", cfg.Network.ChainID)
	}
}

func TestLoadMissingConfigFileErrors(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error getting cwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("unexpected error changing to temp dir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })

	if _, err := Load(""); err == nil {
		t.Fatalf("expected an error when no config file is present")
	}
}
