package aegis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the engine configuration. It can
// be populated from JSON, YAML, environment variables, etc. The zero-value is
// useful since all nested fields inherit their package defaults.
type Config struct {
	Store    StoreConfig    `json:"store" yaml:"store"`
	Approval ApprovalConfig `json:"approval" yaml:"approval"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
}

type StoreConfig struct {
	// Backend selects the policy store implementation: memory, rest or
	// postgres. URL is the backend address for the latter two.
	Backend string `json:"backend" yaml:"backend"`
	URL     string `json:"url" yaml:"url"`
}

type ApprovalConfig struct {
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
	// Timeout bounds how long a monitored call waits for a human decision
	// before the request is auto-denied. Zero or negative disables the
	// bound and the call polls until decided or the caller cancels.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// UnmarshalYAML accepts durations in the time.ParseDuration form, e.g. "30s"
// or "5m". Omitted fields keep their current values.
func (c *ApprovalConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		PollInterval string `yaml:"pollInterval"`
		Timeout      string `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.PollInterval != "" {
		value, err := time.ParseDuration(raw.PollInterval)
		if err != nil {
			return fmt.Errorf("approval.pollInterval: %w", err)
		}
		c.PollInterval = value
	}
	if raw.Timeout != "" {
		value, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("approval.timeout: %w", err)
		}
		c.Timeout = value
	}
	return nil
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	OutputFile  string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns a Config populated with the same default values the
// constructors use. Callers may modify the returned struct before passing it
// to New via WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "memory",
		},
		Approval: ApprovalConfig{
			PollInterval: 2 * time.Second,
			Timeout:      5 * time.Minute,
		},
		Tracing: TracingConfig{
			ServiceName: "aegis",
		},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Store.Backend {
	case "", "memory":
	case "rest", "postgres":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for backend %q", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unsupported store.backend: %q", c.Store.Backend)
	}
	if c.Approval.PollInterval < 0 {
		return fmt.Errorf("approval.pollInterval must be >= 0")
	}
	return nil
}

// LoadConfig reads a YAML config document from the supplied URL (file path,
// file://, s3://, gs:// and other schemes supported by afs). Occurrences of
// ${env.KEY} in the document are replaced with the value of the KEY
// environment variable before decoding.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandEnvExpr(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config from %s: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return config, nil
}

// expandEnvExpr replaces all occurrences of ${env.KEY} in the input with the
// value of the environment variable KEY (or "" if unset).
func expandEnvExpr(value string) string {
	const prefix = "${env."
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(value[i:], prefix)
		if idx < 0 {
			b.WriteString(value[i:])
			break
		}
		b.WriteString(value[i : i+idx])
		startKey := i + idx + len(prefix)
		endKey := strings.IndexByte(value[startKey:], '}')
		if endKey < 0 {
			b.WriteString(value[i+idx:])
			break
		}
		key := value[startKey : startKey+endKey]
		valid := true
		for _, r := range key {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
				valid = false
				break
			}
		}
		if !valid {
			b.WriteString(value[i+idx : startKey])
			i = startKey
			continue
		}
		b.WriteString(os.Getenv(key))
		i = startKey + endKey + 1
	}
	return b.String()
}
