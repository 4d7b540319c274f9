// Package app wires configuration, storage, services and the Telegram
// surface into a runnable marketplace bot.
package app

import (
	"fmt"
	"os"

	"github.com/freshmanacadamy/gebeyabot/app/media"
	coreconfig "github.com/freshmanacadamy/gebeyabot/core/config"
	"github.com/freshmanacadamy/gebeyabot/core/database"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// MarketConfig holds marketplace-specific settings.
type MarketConfig struct {
	// ChannelID is the public channel approved listings are posted to.
	// 0 disables publication.
	ChannelID int64 `yaml:"channel_id" envconfig:"MARKET_CHANNEL_ID"`
}

// Config is the full application configuration: the reusable core settings
// plus database, media store and marketplace sections.
type Config struct {
	Core     coreconfig.Config `yaml:",inline"`
	Database database.Config   `yaml:"database"`
	Media    media.Config      `yaml:"media"`
	Market   MarketConfig      `yaml:"market"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads the YAML file, applies environment overrides and
// validates. A missing token or an empty admin list is a fatal startup
// condition.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if len(cfg.Core.Telegram.AdminIDs) == 0 {
		return nil, fmt.Errorf("at least one telegram.admin_ids entry is required")
	}
	return &cfg, nil
}
