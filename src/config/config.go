// Package config loads campus-agent settings. Built-in defaults are
// overlaid by a TOML file and then by the variables in envOverrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "campus-agent.toml"

// Config is the complete runtime configuration.
type Config struct {
	Model     ModelConfig               `toml:"model"`
	Local     LocalConfig               `toml:"local"`
	Agent     AgentConfig               `toml:"agent"`
	Cache     CacheConfig               `toml:"cache"`
	Observe   ObserveConfig             `toml:"observe"`
	MCP       MCPConfig                 `toml:"mcp"`
	Providers map[string]ProviderConfig `toml:"providers"`
	Tools     map[string]ToolConfig     `toml:"tools"`
}

// ModelConfig selects the remote reasoning model.
type ModelConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
}

// LocalConfig selects the optional cheap-path generator. An empty provider
// disables it.
type LocalConfig struct {
	Provider            string  `toml:"provider"`
	Model               string  `toml:"model"`
	Host                string  `toml:"host"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
}

type AgentConfig struct {
	MaxIterations     int    `toml:"max_iterations"`
	DefaultComplex    bool   `toml:"default_complex"`
	LongQuestionRunes int    `toml:"long_question_runes"`
	AdmissionYear     int    `toml:"default_admission_year"` // 0 means the current calendar year
	CurrentTerm       string `toml:"current_term"`
	Locale            string `toml:"locale"`
}

type CacheConfig struct {
	RedisURL          string   `toml:"redis_url"`
	KeyPrefix         string   `toml:"key_prefix"`
	OpTimeout         Duration `toml:"op_timeout"`
	Cooldown          Duration `toml:"cooldown"`
	MemoryCapacity    int      `toml:"memory_capacity"`
	ListHashThreshold int      `toml:"list_hash_threshold"`
	MaxKeyLength      int      `toml:"max_key_length"`
	Disabled          bool     `toml:"disabled"`
}

type ObserveConfig struct {
	Sink        string   `toml:"sink"` // mongo, postgres, slog or none
	MongoURI    string   `toml:"mongo_uri"`
	Database    string   `toml:"database"`
	Collection  string   `toml:"collection"`
	PostgresURL string   `toml:"postgres_url"`
	Timeout     Duration `toml:"timeout"`
}

type MCPConfig struct {
	Framing            string   `toml:"framing"`
	RepoRoot           string   `toml:"repo_root"`
	ProvidersDir       string   `toml:"providers_dir"`
	HandshakeFloor     Duration `toml:"handshake_floor"`
	CallFloor          Duration `toml:"call_floor"`
	BackoffBase        Duration `toml:"backoff_base"`
	ClosedBackoffFloor Duration `toml:"closed_backoff_floor"`
	ProbeCapabilities  bool     `toml:"probe_capabilities"`
}

// ProviderConfig describes how to launch one tool provider.
type ProviderConfig struct {
	Root    string            `toml:"root"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
}

// ToolConfig overrides the built-in policy of one tool. Unset fields keep
// the built-in value.
type ToolConfig struct {
	TTL       *Duration `toml:"ttl"`
	Timeout   *Duration `toml:"timeout"`
	Retries   *int      `toml:"retries"`
	Cacheable *bool     `toml:"cacheable"`
}

// Duration is a time.Duration written as a Go duration string ("750ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// New creates a config with defaults.
func New() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 2048,
		},
		Local: LocalConfig{
			Model:               "llama3.2",
			ConfidenceThreshold: 0.7,
		},
		Agent: AgentConfig{
			MaxIterations:     5,
			LongQuestionRunes: 120,
			Locale:            "en",
		},
		Cache: CacheConfig{
			KeyPrefix:         "campus:",
			OpTimeout:         Duration{500 * time.Millisecond},
			Cooldown:          Duration{30 * time.Second},
			MemoryCapacity:    1024,
			ListHashThreshold: 20,
			MaxKeyLength:      256,
		},
		Observe: ObserveConfig{
			Sink:       "slog",
			Database:   "campus",
			Collection: "query_logs",
			Timeout:    Duration{2 * time.Second},
		},
		MCP: MCPConfig{
			Framing:            "line",
			HandshakeFloor:     Duration{20 * time.Second},
			CallFloor:          Duration{10 * time.Second},
			BackoffBase:        Duration{500 * time.Millisecond},
			ClosedBackoffFloor: Duration{2 * time.Second},
		},
		Providers: map[string]ProviderConfig{},
		Tools:     map[string]ToolConfig{},
	}
}

// LoadFile parses path on top of the defaults. It does not consult the
// environment.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Load reads path, or DefaultFile in the working directory when path is
// empty and the file exists, then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			candidate := filepath.Join(cwd, DefaultFile)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	key   string
	apply func(c *Config, v string)
}{
	{"OLLAMA_HOST", func(c *Config, v string) { c.Local.Host = v }},
	{"CAMPUS_REDIS_URL", func(c *Config, v string) { c.Cache.RedisURL = v }},
	{"CAMPUS_MONGO_URI", func(c *Config, v string) { c.Observe.MongoURI = v }},
	{"CAMPUS_POSTGRES_URL", func(c *Config, v string) { c.Observe.PostgresURL = v }},
	{"CAMPUS_PROVIDERS_DIR", func(c *Config, v string) { c.MCP.ProvidersDir = v }},
}

// ApplyEnv overlays non-empty environment values.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	for _, o := range envOverrides {
		if v, ok := lookup(o.key); ok && strings.TrimSpace(v) != "" {
			o.apply(c, strings.TrimSpace(v))
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations))
	}
	if t := c.Local.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("local.confidence_threshold must be within [0, 1], got %v", t))
	}
	if c.Agent.AdmissionYear != 0 && (c.Agent.AdmissionYear < 1900 || c.Agent.AdmissionYear > 2200) {
		errs = append(errs, fmt.Errorf("agent.default_admission_year out of range: %d", c.Agent.AdmissionYear))
	}
	if c.Cache.OpTimeout.Duration <= 0 {
		errs = append(errs, errors.New("cache.op_timeout must be positive"))
	}
	if _, err := c.ApplyToolOverrides(dispatch.DefaultTools()); err != nil {
		errs = append(errs, err)
	}
	for name, t := range c.Tools {
		if t.Retries != nil && *t.Retries < 0 {
			errs = append(errs, fmt.Errorf("tools.%s.retries must not be negative", name))
		}
		if t.Timeout != nil && t.Timeout.Duration <= 0 {
			errs = append(errs, fmt.Errorf("tools.%s.timeout must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// APIKey returns the remote model key from the configured variable, or the
// provider's conventional one.
func (c *Config) APIKey() string {
	envVar := c.Model.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.Model.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// AdmissionYear returns the configured default admission year, or now's
// year when unset.
func (c *Config) AdmissionYear(now time.Time) int {
	if c.Agent.AdmissionYear != 0 {
		return c.Agent.AdmissionYear
	}
	return now.Year()
}
