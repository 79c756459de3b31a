package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
)

// TestLoadMissingFile falls back to defaults
func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.Threads != runtime.NumCPU() {
		t.Errorf("Expected %d threads, got %d", runtime.NumCPU(), cfg.Processing.Threads)
	}
	if cfg.Output.Compression != "default" || cfg.Logging.Level != "info" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

// TestSaveAndLoad round-trips a config through a file
func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "qitools.yaml")

	cfg := DefaultConfig()
	cfg.Processing.Threads = 3
	cfg.Processing.SplitsPerThread = 5
	cfg.Output.Prefix = "sub01_"
	cfg.Output.Stats = true
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Processing.Threads != 3 || got.Processing.SplitsPerThread != 5 {
		t.Errorf("Processing not restored: %+v", got.Processing)
	}
	if got.Output.Prefix != "sub01_" || !got.Output.Stats {
		t.Errorf("Output not restored: %+v", got.Output)
	}
}

// TestPartialFile keeps defaults for keys missing from the file
func TestPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.Output.SlicesDir != "slices" {
		t.Errorf("Expected default slices dir, got %q", cfg.Output.SlicesDir)
	}
}

// TestEnvAndFlags checks override priority
func TestEnvAndFlags(t *testing.T) {
	t.Setenv("QI_PROCESSING_THREADS", "6")
	t.Setenv("QI_OUTPUT_PREFIX", "env_")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.IntP("threads", "T", 4, "")
	flags.String("out", "", "")
	flags.Bool("resids", false, "")
	if err := flags.Parse([]string{"--out", "flag_", "--resids"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Processing.Threads != 6 {
		t.Errorf("Expected env threads 6, got %d", cfg.Processing.Threads)
	}
	if cfg.Output.Prefix != "flag_" {
		t.Errorf("Expected flag prefix, got %q", cfg.Output.Prefix)
	}
	if !cfg.Processing.OutputAllResiduals {
		t.Error("Expected --resids to enable all residuals")
	}
}

// TestValidate rejects bad values
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"threads", func(c *Config) { c.Processing.Threads = -1 }},
		{"splits", func(c *Config) { c.Processing.SplitsPerThread = -2 }},
		{"compression", func(c *Config) { c.Output.Compression = "lzma" }},
		{"level", func(c *Config) { c.Logging.Level = "chatty" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("processing:\n  threads: -4\n"), 0644)
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected LoadConfig to reject negative threads")
	}
}

// TestCreateDefaultConfigFile writes a loadable default file
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := LoadConfig(path); err != nil {
		t.Errorf("Default file does not load: %v", err)
	}
}
