package config

import (
	"fmt"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ckough/pagesmith/pkg/logger"
)

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Database  DatabaseConfig        `yaml:"database"`
	Logger    logger.Config         `yaml:"logger"`
	Sites     map[string]SiteConfig `yaml:"sites"`
	Publisher PublisherConfig       `yaml:"publisher"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

// SiteConfig carries the WordPress credentials for one target site.
// Sites are keyed by the job's site key (brand).
type SiteConfig struct {
	BaseURL     string `yaml:"base_url"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"app_password"`
}

type PublisherConfig struct {
	RequestTimeout string `yaml:"request_timeout"`
	UpdateTitles   bool   `yaml:"update_titles"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5360
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Publisher.RequestTimeout == "" {
		cfg.Publisher.RequestTimeout = "60s"
	}

	return cfg, nil
}

// Site resolves the credentials for a site key. Missing credentials are a
// configuration error and must be rejected before any publish work starts.
func (c *Config) Site(siteKey string) (SiteConfig, error) {
	site, ok := c.Sites[siteKey]
	if !ok {
		return SiteConfig{}, fmt.Errorf("no site configured for key %q", siteKey)
	}
	if site.BaseURL == "" || site.Username == "" || site.AppPassword == "" {
		return SiteConfig{}, fmt.Errorf("incomplete credentials for site %q", siteKey)
	}
	return site, nil
}
