package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config models gigline.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTIssuer string `yaml:"jwt_issuer"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Ledger struct {
		Currency      string `yaml:"currency"`
		MinTaskPrice  string `yaml:"min_task_price"`
		InitialWallet string `yaml:"initial_wallet"`
	} `yaml:"ledger"`
	Bookkeeping Bookkeeping `yaml:"bookkeeping"`
	Bootstrap   struct {
		AdminID   string `yaml:"admin_id"`
		AdminName string `yaml:"admin_name"`
	} `yaml:"bootstrap"`
}

// Bookkeeping selects where settled contracts are reported.
type Bookkeeping struct {
	// Notifier is one of none, log or webhook.
	Notifier       string `yaml:"notifier"`
	URL            string `yaml:"url"`
	Secret         string `yaml:"secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

const (
	NotifierNone    = "none"
	NotifierLog     = "log"
	NotifierWebhook = "webhook"
)

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Auth.TokenTTL != "" {
		if d, err := time.ParseDuration(c.Auth.TokenTTL); err != nil || d < 0 {
			return fmt.Errorf("config.auth.token_ttl must be a non-negative duration")
		}
	}
	if strings.TrimSpace(c.Ledger.Currency) == "" {
		return fmt.Errorf("config.ledger.currency is required")
	}
	if _, err := c.MinTaskPrice(); err != nil {
		return err
	}
	if v, err := c.InitialWallet(); err != nil {
		return err
	} else if v.IsNegative() {
		return fmt.Errorf("config.ledger.initial_wallet must not be negative")
	}
	switch c.Bookkeeping.Notifier {
	case "", NotifierNone, NotifierLog:
	case NotifierWebhook:
		if strings.TrimSpace(c.Bookkeeping.URL) == "" {
			return fmt.Errorf("config.bookkeeping.url is required for the webhook notifier")
		}
	default:
		return fmt.Errorf("config.bookkeeping.notifier must be one of none, log, webhook")
	}
	if c.Bookkeeping.TimeoutSeconds < 0 {
		return fmt.Errorf("config.bookkeeping.timeout_seconds must not be negative")
	}
	if strings.TrimSpace(c.Bootstrap.AdminID) == "" {
		return fmt.Errorf("config.bootstrap.admin_id is required")
	}
	return nil
}

// MinTaskPrice is the lowest price a task may carry; zero means any positive price.
func (c *Config) MinTaskPrice() (decimal.Decimal, error) {
	return parseAmount("config.ledger.min_task_price", c.Ledger.MinTaskPrice)
}

// InitialWallet is credited to every newly created party.
func (c *Config) InitialWallet() (decimal.Decimal, error) {
	return parseAmount("config.ledger.initial_wallet", c.Ledger.InitialWallet)
}

func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.TokenTTL)
	return d
}

func (b Bookkeeping) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func parseAmount(field, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid amount %q", field, v)
	}
	return d, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gigline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with gig config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML overlays raw YAML onto the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

auth:
  jwt_issuer: gigline
  token_ttl: 24h

ledger:
  currency: USD
  min_task_price: "0"
  initial_wallet: "0"

bookkeeping:
  notifier: log
  timeout_seconds: 5

bootstrap:
  admin_id: admin
  admin_name: Administrator
`
