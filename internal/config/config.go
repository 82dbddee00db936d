package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for DriverScout.
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Probe    ProbeConfig    `mapstructure:"probe"    yaml:"probe"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	AI       AIConfig       `mapstructure:"ai"       yaml:"ai"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
}

// UpstreamConfig describes the vendor support site.
type UpstreamConfig struct {
	// Origin is prefixed to relative download links.
	Origin string `mapstructure:"origin" yaml:"origin"`

	// SupportHomePath is the landing page used by the browser flow.
	SupportHomePath string `mapstructure:"support_home_path" yaml:"support_home_path"`

	// DriversPath is the per-tag drivers page. "{tag}" is replaced.
	DriversPath string `mapstructure:"drivers_path" yaml:"drivers_path"`

	// APIEndpoints are structured JSON endpoints tried in order. "{tag}" is replaced.
	APIEndpoints []string `mapstructure:"api_endpoints" yaml:"api_endpoints"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	MaxBodySize      int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	MaxRedirects     int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	TLSInsecure      bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout  time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	UserAgents       []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	CloudflareBypass bool          `mapstructure:"cloudflare_bypass" yaml:"cloudflare_bypass"`
}

// ProbeConfig controls strategy ordering and pacing.
type ProbeConfig struct {
	Strategies      []string      `mapstructure:"strategies"       yaml:"strategies"`
	MinDelay        time.Duration `mapstructure:"min_delay"        yaml:"min_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"        yaml:"max_delay"`
	StrategyTimeout time.Duration `mapstructure:"strategy_timeout" yaml:"strategy_timeout"`
}

// BrowserConfig controls the headless browser strategy.
type BrowserConfig struct {
	Enabled  bool          `mapstructure:"enabled"   yaml:"enabled"`
	Headless bool          `mapstructure:"headless"  yaml:"headless"`
	Stealth  bool          `mapstructure:"stealth"   yaml:"stealth"`
	BinPath  string        `mapstructure:"bin_path"  yaml:"bin_path"`
	WaitTime time.Duration `mapstructure:"wait_time" yaml:"wait_time"`
}

// StorageConfig controls output locations.
type StorageConfig struct {
	OutputPath string      `mapstructure:"output_path" yaml:"output_path"`
	LogPath    string      `mapstructure:"log_path"    yaml:"log_path"`
	Debug      bool        `mapstructure:"debug"       yaml:"debug"`
	Mongo      MongoConfig `mapstructure:"mongo"       yaml:"mongo"`
}

// MongoConfig controls the optional result archive.
type MongoConfig struct {
	Enabled    bool          `mapstructure:"enabled"    yaml:"enabled"`
	URI        string        `mapstructure:"uri"        yaml:"uri"`
	Database   string        `mapstructure:"database"   yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

// AIConfig controls the Ollama question-answering client.
type AIConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model    string        `mapstructure:"model"    yaml:"model"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`

	// MaxSessions bounds the chat sessions held in memory.
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			Origin:          "https://www.dell.com",
			SupportHomePath: "/support/home/en-us",
			DriversPath:     "/support/home/en-us/product-support/servicetag/{tag}/drivers",
			APIEndpoints: []string{
				"/support/driver/en-us/ips/api/driverlist/fetchdriversbytag?servicetag={tag}",
				"/support/components/dashboard/en-us/productdetails/servicetag/{tag}/drivers",
			},
		},
		Fetcher: FetcherConfig{
			Timeout:         30 * time.Second,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			MaxRedirects:    10,
			IdleConnTimeout: 90 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Probe: ProbeConfig{
			Strategies:      []string{"api", "markup", "browser", "generic"},
			MinDelay:        1 * time.Second,
			MaxDelay:        3 * time.Second,
			StrategyTimeout: 45 * time.Second,
		},
		Browser: BrowserConfig{
			Enabled:  false,
			Headless: true,
			Stealth:  true,
			WaitTime: 5 * time.Second,
		},
		Storage: StorageConfig{
			OutputPath: "./data",
			LogPath:    "./logs",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "driverscout",
				Collection: "results",
				Timeout:    10 * time.Second,
			},
		},
		AI: AIConfig{
			Endpoint: "http://localhost:11434",
			Model:    "llama3",
			Timeout:  120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Addr:        ":8080",
			MaxSessions: 256,
		},
	}
}
