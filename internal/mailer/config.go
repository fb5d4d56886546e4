package mailer

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/email.yaml
var defaultConfigYAML []byte

// Config is the email distribution configuration. The embedded default ships
// with the binary; LoadConfigFile overrides it from a deployment-specific
// path.
type Config struct {
	From               string   `yaml:"from"`
	To                 []string `yaml:"to"`
	CC                 []string `yaml:"cc"`
	Subject            string   `yaml:"subject"`
	SMTPHost           string   `yaml:"smtp_host"`
	SMTPPort           int      `yaml:"smtp_port"`
	StaleThresholdDays int      `yaml:"stale_threshold_days"`
}

// LoadConfig parses the embedded default configuration.
func LoadConfig() (Config, error) {
	return parseConfig(defaultConfigYAML)
}

// LoadConfigFile parses configuration from an external YAML file.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read email config %s: %w", path, err)
	}
	return parseConfig(raw)
}

func parseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse email config: %w", err)
	}

	if cfg.From == "" {
		return Config{}, fmt.Errorf("email config: from address is required")
	}
	if len(cfg.To) == 0 {
		return Config{}, fmt.Errorf("email config: at least one to recipient is required")
	}
	if cfg.SMTPHost == "" {
		return Config{}, fmt.Errorf("email config: smtp_host is required")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.StaleThresholdDays == 0 {
		cfg.StaleThresholdDays = 30
	}
	return cfg, nil
}

// Recipients returns the union of To and CC, in that order.
func (c Config) Recipients() []string {
	out := make([]string, 0, len(c.To)+len(c.CC))
	out = append(out, c.To...)
	out = append(out, c.CC...)
	return out
}
