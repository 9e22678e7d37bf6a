package config

import (
	"strings"
	"testing"
	"time"
)

// validCfg returns a fully-valid Config for mutation testing.
func validCfg() *Config {
	return &Config{
		DataDir: "/tmp/pathcurate",
		Curation: CurationConfig{
			Database:    "META",
			Compartment: "c",
		},
		Retrieval: RetrievalConfig{
			Timeout:     30 * time.Second,
			Concurrency: 4,
		},
		Flux:    FluxConfig{Method: "topology", Tolerance: 1e-7},
		XRef:    XRefConfig{Enabled: true, Path: "/tmp/pathcurate/xref.db"},
		Store:   StoreConfig{Dir: "/tmp/pathcurate/models", Format: "yaml"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestUAT_Validate_Valid(t *testing.T) {
	if err := validCfg().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"empty compartment", func(c *Config) { c.Curation.Compartment = "" }, "curation.compartment"},
		{"zero concurrency", func(c *Config) { c.Retrieval.Concurrency = 0 }, "retrieval.concurrency"},
		{"zero timeout", func(c *Config) { c.Retrieval.Timeout = 0 }, "retrieval.timeout"},
		{"user without password", func(c *Config) { c.Retrieval.BioCycUser = "me@example.org" }, "biocyc_password"},
		{"unknown flux method", func(c *Config) { c.Flux.Method = "simplex" }, "flux.method"},
		{"zero tolerance", func(c *Config) { c.Flux.Tolerance = 0 }, "flux.tolerance"},
		{"xref without path", func(c *Config) { c.XRef.Path = "" }, "xref.path"},
		{"unknown store format", func(c *Config) { c.Store.Format = "sbml" }, "store.format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validCfg()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUAT_Validate_XRefDisabledNeedsNoPath(t *testing.T) {
	cfg := validCfg()
	cfg.XRef = XRefConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_SecretsMasked(t *testing.T) {
	claude := ClaudeConfig{APIKey: "sk-ant-abcdefghijklmnop", Model: "m"}
	if s := claude.String(); strings.Contains(s, "abcdefghijkl") || !strings.Contains(s, "sk-a****mnop") {
		t.Fatalf("api key not masked: %s", s)
	}
	neo := Neo4jConfig{URI: "bolt://localhost:7687", Password: "secret"}
	if s := neo.String(); strings.Contains(s, "secret") {
		t.Fatalf("password not masked: %s", s)
	}
	ret := RetrievalConfig{BioCycUser: "me", BioCycPassword: "correct-horse-battery"}
	if s := ret.String(); strings.Contains(s, "horse") {
		t.Fatalf("password not masked: %s", s)
	}
}

func TestUAT_AdvisorEnabled(t *testing.T) {
	cfg := validCfg()
	cfg.Claude.Advisor = true
	if cfg.AdvisorEnabled() {
		t.Fatal("advisor must stay off without an API key")
	}
	cfg.Claude.APIKey = "sk-ant-test"
	if !cfg.AdvisorEnabled() {
		t.Fatal("advisor should be on with flag and key")
	}
}

func TestUAT_Load_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("PATHCURATE_DATA_DIR", dir)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	t.Setenv("PATHCURATE_NEO4J_PASSWORD", "pw")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != dir {
		t.Fatalf("data_dir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.Claude.APIKey != "sk-ant-from-env" {
		t.Fatalf("claude.api_key not bound to ANTHROPIC_API_KEY")
	}
	if cfg.Neo4j.Password != "pw" {
		t.Fatalf("neo4j.password not bound")
	}
	if cfg.XRef.Path == "" || !strings.HasPrefix(cfg.XRef.Path, dir) {
		t.Fatalf("xref.path should default under data_dir, got %q", cfg.XRef.Path)
	}
	if cfg.Curation.Database != DefaultDatabase || cfg.Flux.Method != "topology" {
		t.Fatalf("defaults not applied: %+v", cfg.Curation)
	}
}

func TestUAT_Load_ForceSameVersion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("PATHCURATE_DATA_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.ForceSameVersion {
		t.Fatalf("force_same_version should default to false")
	}
	if cfg.CacheDir() != dir {
		t.Fatalf("cache root = %q, want the data dir %q", cfg.CacheDir(), dir)
	}

	t.Setenv("PATHCURATE_FORCE_SAME_VERSION", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Retrieval.ForceSameVersion {
		t.Fatalf("retrieval.force_same_version not bound to PATHCURATE_FORCE_SAME_VERSION")
	}
}
