package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	ArchiveFile string `long:"archive-file" env:"ARCHIVE_FILE" default:"./data/archive.json" description:"Path to the event archive snapshot file"`
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./data/intel.db" description:"Path to the sqlite database file"`
	SourcesDir  string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for source scanning"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Background sync check interval in seconds"`
	ScanOnStart       bool   `long:"scan-on-start" env:"SCAN_ON_START" description:"Scan all enabled sources once at startup"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Extraction service configuration
	ExtractorURL    string `long:"extractor-url" env:"EXTRACTOR_URL" default:"http://localhost:9090" description:"Base URL of the event extraction service"`
	ExtractorAPIKey string `long:"extractor-api-key" env:"EXTRACTOR_API_KEY" description:"API key for the extraction service"`
	ExtractorRegion string `long:"extractor-region" env:"EXTRACTOR_REGION" description:"Default geographic focus for extraction"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Intel Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
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

	cfg := &Cfg{
		ArchiveFile:       raw.ArchiveFile,
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		ScanOnStart:       raw.ScanOnStart,
		APIAccessKey:      raw.APIAccessKey,
		ExtractorURL:      raw.ExtractorURL,
		ExtractorAPIKey:   raw.ExtractorAPIKey,
		ExtractorRegion:   raw.ExtractorRegion,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
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

// SetForTesting installs a config without going through flag parsing.
func SetForTesting(cfg *Cfg) {
	globalCfg = cfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
