// Package config loads and validates relay configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "diftar2energyid.toml"

// Config captures all relay configuration knobs loaded via Viper.
type Config struct {
	Diftar   DiftarConfig   `mapstructure:"diftar"`
	EnergyID EnergyIDConfig `mapstructure:"energyid"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// Destinations holds the per-category property bags found under
	// [energyid.<CODE>], keyed by category code.
	Destinations map[string]Destination
}

// DiftarConfig holds the portal account and location.
type DiftarConfig struct {
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	BaseURL     string `mapstructure:"base_url"`
	StrictLogin bool   `mapstructure:"strict_login"`
}

// EnergyIDConfig holds the webhook endpoint shared by all categories.
type EnergyIDConfig struct {
	URL string `mapstructure:"url"`
}

// HTTPConfig configures both HTTP sessions.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Destination is where one category's batch is posted, plus the properties
// copied verbatim into its payload.
type Destination struct {
	URL        string
	Properties map[string]any
}

// Error reports a missing or malformed configuration.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load builds a Config from the TOML file at path plus environment overrides.
// The file must exist.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}

	v := viper.New()
	v.SetEnvPrefix("DIFTAR2ENERGYID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("read config: %w", err)}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &Error{Path: path, Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	// Viper lower-cases every key, which would mangle the pass-through
	// properties, so the category sections are decoded from the raw document.
	dests, err := decodeDestinations(raw, cfg.EnergyID.URL)
	if err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	cfg.Destinations = dests

	if err := cfg.Validate(); err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// envKeys lists every setting that may come from the environment alone.
// AutomaticEnv only consults keys viper already knows about, so keys that
// have neither a default nor a value in the file must be bound explicitly.
var envKeys = []string{
	"diftar.username",
	"diftar.password",
	"diftar.base_url",
	"diftar.strict_login",
	"energyid.url",
	"http.timeout_seconds",
	"http.user_agent",
	"logging.development",
	"logging.level",
	"metrics.pushgateway_url",
	"metrics.job",
}

func bindEnv(v *viper.Viper) error {
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("diftar.base_url", "https://www.mijndiftar.be")
	v.SetDefault("diftar.strict_login", true)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "diftar2energyid/1.0")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.job", "diftar2energyid")
}

func decodeDestinations(raw []byte, endpoint string) (map[string]Destination, error) {
	var doc struct {
		EnergyID map[string]any `toml:"energyid"`
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode energyid sections: %w", err)
	}
	dests := make(map[string]Destination)
	for key, value := range doc.EnergyID {
		props, ok := value.(map[string]any)
		if !ok {
			continue
		}
		dests[key] = Destination{URL: endpoint, Properties: props}
	}
	return dests, nil
}

// Validate enforces required values and known category sections.
func (c Config) Validate() error {
	if c.Diftar.Username == "" {
		return errors.New("diftar.username is required")
	}
	if c.Diftar.Password == "" {
		return errors.New("diftar.password is required")
	}
	if u, err := url.Parse(c.Diftar.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("diftar.base_url %q is not an absolute URL", c.Diftar.BaseURL)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}

	codes := make([]string, 0, len(c.Destinations))
	for code := range c.Destinations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if _, ok := waste.CategoryByCode(code); !ok {
			return fmt.Errorf("energyid.%s is not a known waste category", code)
		}
	}
	if len(c.Destinations) > 0 {
		if u, err := url.Parse(c.EnergyID.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("energyid.url %q is not an absolute URL", c.EnergyID.URL)
		}
	}
	return nil
}

// Destination returns the configured destination for a category.
func (c Config) Destination(category waste.Category) (Destination, bool) {
	d, ok := c.Destinations[category.Code()]
	return d, ok
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
