package config

import (
	"fmt"
	"net/url"
)

// KnownStrategies lists the strategy names accepted in probe.strategies.
var KnownStrategies = map[string]bool{
	"api": true, "markup": true, "browser": true, "generic": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Upstream.Origin); err != nil {
		return fmt.Errorf("upstream.origin: %w", err)
	}
	if cfg.Upstream.DriversPath == "" {
		return fmt.Errorf("upstream.drivers_path must not be empty")
	}

	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if len(cfg.Probe.Strategies) == 0 {
		return fmt.Errorf("probe.strategies must list at least one strategy")
	}
	seen := make(map[string]bool, len(cfg.Probe.Strategies))
	for _, name := range cfg.Probe.Strategies {
		if !KnownStrategies[name] {
			return fmt.Errorf("probe.strategies: unknown strategy %q (valid: api, markup, browser, generic)", name)
		}
		if seen[name] {
			return fmt.Errorf("probe.strategies: strategy %q listed twice", name)
		}
		seen[name] = true
	}
	if cfg.Probe.MinDelay < 0 {
		return fmt.Errorf("probe.min_delay must be >= 0")
	}
	if cfg.Probe.MaxDelay < cfg.Probe.MinDelay {
		return fmt.Errorf("probe.max_delay (%s) must be >= probe.min_delay (%s)", cfg.Probe.MaxDelay, cfg.Probe.MinDelay)
	}
	if cfg.Probe.StrategyTimeout <= 0 {
		return fmt.Errorf("probe.strategy_timeout must be > 0")
	}

	if cfg.Storage.OutputPath == "" {
		return fmt.Errorf("storage.output_path must not be empty")
	}
	if cfg.Storage.LogPath == "" {
		return fmt.Errorf("storage.log_path must not be empty")
	}
	if cfg.Storage.Mongo.Enabled {
		if cfg.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required when mongo is enabled")
		}
		if cfg.Storage.Mongo.Database == "" || cfg.Storage.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo.database and storage.mongo.collection are required")
		}
	}

	if err := ValidateURL(cfg.AI.Endpoint); err != nil {
		return fmt.Errorf("ai.endpoint: %w", err)
	}
	if cfg.AI.Model == "" {
		return fmt.Errorf("ai.model must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
