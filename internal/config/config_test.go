package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
mysql:
  address: "127.0.0.1:3306"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("server address default = %q", cfg.Server.Address)
	}
	if cfg.Ingestion.ChunkSize != 1000 || cfg.Ingestion.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d", cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	}
	if cfg.Kafka.JobsTopic != "ingest.jobs" {
		t.Errorf("jobs topic default = %q", cfg.Kafka.JobsTopic)
	}
}

func TestLoadRejectsOverlapNotBelowChunkSize(t *testing.T) {
	for _, overlap := range []int{500, 600} {
		path := writeConfig(t, fmt.Sprintf(`
ingestion:
  chunkSize: 500
  chunkOverlap: %d
`, overlap))
		if _, err := Load(path); err == nil {
			t.Errorf("overlap %d with chunk size 500 must be rejected", overlap)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
