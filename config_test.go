package rtkernel_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/comalice/rtkernel"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unparseable version", func(c *Config) { c.Version = "one" }},
		{"unsupported version", func(c *Config) { c.Version = "2.0.0" }},
		{"too few priorities", func(c *Config) { c.Priorities = 1 }},
		{"too many priorities", func(c *Config) { c.Priorities = 4097 }},
		{"queue not power of two", func(c *Config) { c.QueueCapacity = 12 }},
		{"queue too small", func(c *Config) { c.QueueCapacity = 1 }},
		{"no nesting", func(c *Config) { c.MaxNesting = 0 }},
		{"signals below user range", func(c *Config) { c.MaxSignals = int(SigUser) }},
		{"negative pool", func(c *Config) { c.PoolSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
			if _, err := NewScheduler(cfg); !errors.Is(err, ErrConfig) {
				t.Errorf("NewScheduler: expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	doc := "version: 1.2.0\npriorities: 128\nqueueCapacity: 32\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	want.Version = "1.2.0"
	want.Priorities = 128
	want.QueueCapacity = 32
	if cfg != want {
		t.Errorf("expected %+v, got %+v", want, cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if _, err := ParseConfig([]byte("priorities: [")); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for malformed yaml, got %v", err)
	}
	if _, err := ParseConfig([]byte("queueCapacity: 6")); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for invalid capacity, got %v", err)
	}
}

func TestConfigFingerprint(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal configs must share a fingerprint")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("expected a 256-bit hex digest, got %q", a.Fingerprint())
	}
	b.PoolSize++
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different configs must not share a fingerprint")
	}
}
