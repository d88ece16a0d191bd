package cfg

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

// or returns the first of its arguments that is not equal to the zero value,
// or the zero value if no argument is non-zero. It matches the behavior of
// cmp.Or, which is unavailable on the Go 1.21 toolchain this builds with.
func or[T comparable](vals ...T) T {
	var zero T
	for _, val := range vals {
		if val != zero {
			return val
		}
	}
	return zero
}

func GetVersion() string {
	return or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/galnet.db" description:"Path to the sqlite database file"`
	TableName string `long:"table" env:"TABLE_NAME" default:"Articles" description:"Article table name"`

	// Upstream feed configuration
	FeedURL      string  `long:"feed-url" env:"FEED_URL" default:"https://community.elitedangerous.com" description:"Base URL of the GalNet feed"`
	FetchTimeout int     `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-request fetch timeout in seconds"`
	FetchRate    float64 `long:"fetch-rate" env:"FETCH_RATE" default:"2" description:"Maximum upstream requests per second"`
	UserAgent    string  `long:"user-agent" env:"USER_AGENT" default:"GalNet Archive/1.0" description:"User agent string for HTTP requests"`

	// Application configuration
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey   string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for maintenance endpoints (optional)"`
	UpdateInterval int    `long:"update-interval" env:"UPDATE_INTERVAL" default:"15" description:"Feed update interval in minutes"`
	WorkerCount    int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`

	// One-shot operator modes
	Repair    bool `long:"repair" description:"Run the corpus repair routine and exit"`
	InitBuild bool `long:"init-build" description:"Build the full corpus from the archive and exit"`

	// Application metadata
	SettingsFile string `long:"settings" env:"SETTINGS_FILE" description:"Optional YAML settings file overriding defaults"`
	Debug        bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// settingsFile mirrors the explicit configuration record collaborators may
// supply; present fields override the parsed defaults.
type settingsFile struct {
	DBPath         string  `yaml:"db_path"`
	TableName      string  `yaml:"table"`
	FeedURL        string  `yaml:"feed_url"`
	FetchTimeout   int     `yaml:"fetch_timeout"`
	FetchRate      float64 `yaml:"fetch_rate"`
	UserAgent      string  `yaml:"user_agent"`
	Port           string  `yaml:"port"`
	APIAccessKey   string  `yaml:"api_key"`
	UpdateInterval int     `yaml:"update_interval"`
	WorkerCount    int     `yaml:"worker_count"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.SettingsFile != "" {
		if err := applySettingsFile(&raw, raw.SettingsFile); err != nil {
			return nil, err
		}
	}

	cfg := &Cfg{
		DBPath:         raw.DBPath,
		TableName:      raw.TableName,
		FeedURL:        raw.FeedURL,
		FetchTimeout:   raw.FetchTimeout,
		FetchRate:      raw.FetchRate,
		UserAgent:      raw.UserAgent,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		UpdateInterval: raw.UpdateInterval,
		WorkerCount:    raw.WorkerCount,
		Repair:         raw.Repair,
		InitBuild:      raw.InitBuild,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applySettingsFile(raw *rawCfg, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings settingsFile
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	raw.DBPath = or(settings.DBPath, raw.DBPath)
	raw.TableName = or(settings.TableName, raw.TableName)
	raw.FeedURL = or(settings.FeedURL, raw.FeedURL)
	raw.FetchTimeout = or(settings.FetchTimeout, raw.FetchTimeout)
	raw.FetchRate = or(settings.FetchRate, raw.FetchRate)
	raw.UserAgent = or(settings.UserAgent, raw.UserAgent)
	raw.Port = or(settings.Port, raw.Port)
	raw.APIAccessKey = or(settings.APIAccessKey, raw.APIAccessKey)
	raw.UpdateInterval = or(settings.UpdateInterval, raw.UpdateInterval)
	raw.WorkerCount = or(settings.WorkerCount, raw.WorkerCount)

	return nil
}
