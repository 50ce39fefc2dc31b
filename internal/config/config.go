package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`
	Store struct {
		Driver        string `yaml:"driver"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"store"`
	Gateway struct {
		BaseURL     string `yaml:"base_url"`
		AccessToken string `yaml:"access_token"`
		DebugRaw    bool   `yaml:"debug_raw"`
	} `yaml:"gateway"`
	Webhook struct {
		Secret        string `yaml:"secret"`
		AllowUnsigned bool   `yaml:"allow_unsigned"`
	} `yaml:"webhook"`
	Checkout struct {
		RequirePaid bool   `yaml:"require_paid"`
		Currency    string `yaml:"currency"`
	} `yaml:"checkout"`
	Email struct {
		ResendAPIKey string `yaml:"resend_api_key"`
		From         string `yaml:"from"`
		Admin        string `yaml:"admin"`
		SiteName     string `yaml:"site_name"`
	} `yaml:"email"`
	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`
	Promos struct {
		Source          string `yaml:"source"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"promos"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.Store.Driver == "" {
		return nil, errors.New("store.driver is required")
	}
	if cfg.Store.Driver == "redis" && cfg.Store.RedisAddr == "" {
		return nil, errors.New("store.redis_addr is required for the redis driver")
	}
	if cfg.Checkout.Currency == "" {
		cfg.Checkout.Currency = "PEN"
	}
	if cfg.Promos.CacheTTLSeconds <= 0 {
		cfg.Promos.CacheTTLSeconds = 60
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		cfg.Store.RedisDB = atoiOr(cfg.Store.RedisDB, v)
	}
	if v := os.Getenv("MP_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("MP_ACCESS_TOKEN"); v != "" {
		cfg.Gateway.AccessToken = v
	}
	if v := os.Getenv("MP_DEBUG"); v != "" {
		cfg.Gateway.DebugRaw = boolOr(cfg.Gateway.DebugRaw, v)
	}
	if v := os.Getenv("MP_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("WEBHOOK_ALLOW_UNSIGNED"); v != "" {
		cfg.Webhook.AllowUnsigned = boolOr(cfg.Webhook.AllowUnsigned, v)
	}
	if v := os.Getenv("CHECKOUT_REQUIRE_PAID"); v != "" {
		cfg.Checkout.RequirePaid = boolOr(cfg.Checkout.RequirePaid, v)
	}
	if v := os.Getenv("CHECKOUT_CURRENCY"); v != "" {
		cfg.Checkout.Currency = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Email.ResendAPIKey = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Email.Admin = v
	}
	if v := os.Getenv("SITE_NAME"); v != "" {
		cfg.Email.SiteName = v
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("PROMOS_SOURCE"); v != "" {
		cfg.Promos.Source = v
	}
	if v := os.Getenv("PROMOS_CACHE_TTL"); v != "" {
		cfg.Promos.CacheTTLSeconds = atoiOr(cfg.Promos.CacheTTLSeconds, v)
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func boolOr(fallback bool, v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
