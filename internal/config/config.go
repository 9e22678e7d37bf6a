package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultDatabase is the database used when a request names none.
	DefaultDatabase = "META"

	// DefaultCompartment is the compartment new entities are placed in.
	DefaultCompartment = "c"

	// DefaultConcurrency bounds parallel record prefetching.
	DefaultConcurrency = 4

	// DefaultTolerance is the flux magnitude below which a reaction is
	// considered blocked.
	DefaultTolerance = 1e-7
)

// Config holds all configuration for pathcurate.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Curation  CurationConfig  `mapstructure:"curation"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Flux      FluxConfig      `mapstructure:"flux"`
	XRef      XRefConfig      `mapstructure:"xref"`
	Store     StoreConfig     `mapstructure:"store"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	Claude    ClaudeConfig    `mapstructure:"claude"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	API       APIConfig       `mapstructure:"api"`
}

// CurationConfig holds the defaults applied to every merge.
type CurationConfig struct {
	Database      string            `mapstructure:"database"`
	Compartment   string            `mapstructure:"compartment"`
	Genome        string            `mapstructure:"genome"`
	ShowImbalance bool              `mapstructure:"show_imbalance"`
	StopImbalance bool              `mapstructure:"stop_imbalance"`
	Replacements  map[string]string `mapstructure:"replacements"`
}

// RetrievalConfig holds remote database settings.
type RetrievalConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
	Offline        bool          `mapstructure:"offline"`
	BiGGModel      string        `mapstructure:"bigg_model"`
	BioCycUser     string        `mapstructure:"biocyc_user"`
	BioCycPassword string        `mapstructure:"biocyc_password"`
	BioCycURL      string        `mapstructure:"biocyc_url"`
	PlantCycURL    string        `mapstructure:"plantcyc_url"`
	KEGGURL        string        `mapstructure:"kegg_url"`
	BiGGURL        string        `mapstructure:"bigg_url"`

	// ForceSameVersion fails a fetch whose database release differs from
	// the release pinned in the cache instead of only warning.
	ForceSameVersion bool `mapstructure:"force_same_version"`
}

// String returns a safe representation of RetrievalConfig with the BioCyc
// password masked.
func (c RetrievalConfig) String() string {
	return fmt.Sprintf("RetrievalConfig{Timeout:%s, Concurrency:%d, Offline:%t, ForceSameVersion:%t, BiGGModel:%s, BioCycUser:%s, BioCycPassword:%s}",
		c.Timeout, c.Concurrency, c.Offline, c.ForceSameVersion, c.BiGGModel, c.BioCycUser, maskSecret(c.BioCycPassword))
}

// FluxConfig selects the flux engine.
type FluxConfig struct {
	Method    string  `mapstructure:"method"`
	Tolerance float64 `mapstructure:"tolerance"`
}

// XRefConfig holds the cross-reference cache settings.
type XRefConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// StoreConfig holds model persistence settings.
type StoreConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// Neo4jConfig holds graph export settings. Export is disabled when URI is
// empty.
type Neo4jConfig struct {
	URI      string        `mapstructure:"uri"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// String returns a safe representation of Neo4jConfig with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, User:%s, Password:%s, Database:%s}",
		c.URI, c.User, maskSecret(c.Password), c.Database)
}

// ClaudeConfig holds Anthropic Claude API settings. The merge advisor runs
// only when Advisor is set and an API key is present.
type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Advisor bool   `mapstructure:"advisor"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	masked := maskSecret(c.APIKey)
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s, Advisor:%t}", masked, c.Model, c.Advisor)
}

// maskSecret shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskSecret(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	AuthToken       string        `mapstructure:"auth_token"`
	ModelID         string        `mapstructure:"model_id"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	base := filepath.Join(homeDir(), ".pathcurate")

	// Defaults
	v.SetDefault("data_dir", filepath.Join(base, "data"))

	v.SetDefault("curation.database", DefaultDatabase)
	v.SetDefault("curation.compartment", DefaultCompartment)
	v.SetDefault("curation.genome", "")
	v.SetDefault("curation.show_imbalance", true)
	v.SetDefault("curation.stop_imbalance", false)

	v.SetDefault("retrieval.timeout", 30*time.Second)
	v.SetDefault("retrieval.concurrency", DefaultConcurrency)
	v.SetDefault("retrieval.offline", false)
	v.SetDefault("retrieval.force_same_version", false)
	v.SetDefault("retrieval.bigg_model", "universal")
	v.SetDefault("retrieval.biocyc_url", "https://websvc.biocyc.org")
	v.SetDefault("retrieval.plantcyc_url", "https://pmn.plantcyc.org")
	v.SetDefault("retrieval.kegg_url", "https://rest.kegg.jp")
	v.SetDefault("retrieval.bigg_url", "http://bigg.ucsd.edu/api/v2")

	v.SetDefault("flux.method", "topology")
	v.SetDefault("flux.tolerance", DefaultTolerance)

	v.SetDefault("xref.enabled", true)
	v.SetDefault("xref.path", "")

	v.SetDefault("store.dir", filepath.Join(base, "models"))
	v.SetDefault("store.format", "yaml")

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.timeout", 30*time.Second)

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("claude.advisor", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.model_id", "model")
	v.SetDefault("api.write_timeout", 10*time.Minute)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(base)
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("PATHCURATE")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("retrieval.biocyc_user", "PATHCURATE_BIOCYC_USER")
	_ = v.BindEnv("retrieval.biocyc_password", "PATHCURATE_BIOCYC_PASSWORD")
	_ = v.BindEnv("neo4j.uri", "PATHCURATE_NEO4J_URI")
	_ = v.BindEnv("neo4j.password", "PATHCURATE_NEO4J_PASSWORD")
	_ = v.BindEnv("data_dir", "PATHCURATE_DATA_DIR")
	_ = v.BindEnv("retrieval.force_same_version", "PATHCURATE_FORCE_SAME_VERSION")
	_ = v.BindEnv("api.listen_addr", "PATHCURATE_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "PATHCURATE_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.XRef.Path == "" {
		cfg.XRef.Path = filepath.Join(cfg.DataDir, "xref.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Curation.Compartment == "" {
		return fmt.Errorf("curation.compartment must not be empty")
	}
	if c.Retrieval.Concurrency <= 0 {
		return fmt.Errorf("retrieval.concurrency must be greater than 0")
	}
	if c.Retrieval.Timeout <= 0 {
		return fmt.Errorf("retrieval.timeout must be greater than 0")
	}
	if (c.Retrieval.BioCycUser == "") != (c.Retrieval.BioCycPassword == "") {
		return fmt.Errorf("retrieval.biocyc_user and retrieval.biocyc_password must be set together")
	}
	switch c.Flux.Method {
	case "topology", "lp":
	default:
		return fmt.Errorf("flux.method must be topology or lp, got %q", c.Flux.Method)
	}
	if c.Flux.Tolerance <= 0 {
		return fmt.Errorf("flux.tolerance must be greater than 0")
	}
	if c.XRef.Enabled && c.XRef.Path == "" {
		return fmt.Errorf("xref.path must not be empty when xref is enabled")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}
	switch c.Store.Format {
	case "yaml", "json":
	default:
		return fmt.Errorf("store.format must be yaml or json, got %q", c.Store.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

// AdvisorEnabled reports whether merges should be reviewed by Claude.
func (c *Config) AdvisorEnabled() bool {
	return c.Claude.Advisor && c.Claude.APIKey != ""
}

// CacheDir is the root of the record cache. Records live in one directory
// per database directly under the data directory, next to the version
// ledger.
func (c *Config) CacheDir() string {
	return c.DataDir
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
