package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"CoinTrack/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		// Inbound token bucket per client address for mutating endpoints.
		RateCapacity float64 `yaml:"rate_capacity" default:"5" validate:"gt=0"`
		RateRefill   float64 `yaml:"rate_refill_per_sec" default:"1" validate:"gt=0"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Tracker struct {
		DefaultSource   string        `yaml:"default_source" default:"coingecko" validate:"oneof=coingecko coinlore"`
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"60s"`
	} `yaml:"tracker"`
	Fetch struct {
		MinRequestInterval time.Duration `yaml:"min_request_interval" default:"1s"`
		MaxRetries         int           `yaml:"max_retries" default:"3" validate:"gte=1,lte=10"`
		BaseDelay          time.Duration `yaml:"base_delay" default:"1s"`
		Timeout            time.Duration `yaml:"timeout" default:"10s"`
		UserAgent          string        `yaml:"user_agent" default:"CoinTrack/1.0"`
	} `yaml:"fetch"`
	Cache struct {
		Expiration time.Duration `yaml:"expiration" default:"5m"`
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Redis      struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"cointrack"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Search struct {
		Debounce       time.Duration `yaml:"debounce" default:"500ms"`
		MinQueryLength int           `yaml:"min_query_length" default:"2" validate:"gte=1"`
	} `yaml:"search"`
	Sources struct {
		PageSize        int    `yaml:"page_size" default:"100" validate:"gt=0,lte=250"`
		PlaceholderLogo string `yaml:"placeholder_logo" default:"https://via.placeholder.com/50"`
		CoinGecko       struct {
			BaseURL       string `yaml:"base_url" default:"https://api.coingecko.com/api/v3" validate:"url"`
			APIKey        string `yaml:"api_key"`
			MaxCandidates int    `yaml:"max_candidates" default:"5" validate:"gt=0"`
		} `yaml:"coingecko"`
		CoinLore struct {
			BaseURL      string `yaml:"base_url" default:"https://api.coinlore.net/api" validate:"url"`
			LogoTemplate string `yaml:"logo_template" default:"https://assets.coincap.io/assets/icons/%s@2x.png"`
		} `yaml:"coinlore"`
	} `yaml:"sources"`
}

var validate = validator.New()

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("COINTRACK_SOURCE"); v != "" {
		c.Tracker.DefaultSource = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.Sources.CoinGecko.APIKey = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("PORT"), c.Server.Port)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Fetch.MinRequestInterval < 0 {
		return fmt.Errorf("fetch.min_request_interval must not be negative")
	}
	if c.Cache.Expiration <= 0 {
		return fmt.Errorf("cache.expiration must be positive")
	}
	return nil
}
