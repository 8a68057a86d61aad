package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/intel-comb/app/event"
)

// ConfigCache loads monitored-source definitions from a directory of
// yaml files and keeps them in memory for the scheduler and API.
type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

// Run loads every *.yml file in the sources directory. A missing
// directory is not an error; the operator may manage sources purely
// through the API.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", name,
			"url", config.URL, "kind", config.Kind, "enabled", config.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile := cc.configFilePath(name)

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.Name = name

	setDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[name] = &config

	return &config, nil
}

// AddConfig registers a new source and writes its yaml file so it
// survives restarts.
func (cc *ConfigCache) AddConfig(config *Config) error {
	setDefaults(config)
	if err := validate(config); err != nil {
		return err
	}
	if config.Name == "" {
		config.Name = deriveName(config.URL)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(cc.sourcesDir, 0755); err != nil {
		return fmt.Errorf("failed to create sources directory: %w", err)
	}
	if err := os.WriteFile(cc.configFilePath(config.Name), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return nil
}

// RemoveConfig drops a source from the cache and deletes its yaml file.
func (cc *ConfigCache) RemoveConfig(name string) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if _, ok := cc.cache[name]; !ok {
		return fmt.Errorf("source config with name '%s' not found", name)
	}
	delete(cc.cache, name)

	if err := os.Remove(cc.configFilePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove config file: %w", err)
	}
	return nil
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

// GetConfigByURL finds the source definition for an origin URL.
func (cc *ConfigCache) GetConfigByURL(url string) (*Config, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	for _, config := range cc.cache {
		if config.URL == url {
			return config, true
		}
	}
	return nil, false
}

func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, config := range cc.cache {
		configs = append(configs, config)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	configs := cc.GetConfigs()

	enabled := make([]*Config, 0, len(configs))
	for _, config := range configs {
		if config.Enabled {
			enabled = append(enabled, config)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) configFilePath(name string) string {
	return filepath.Join(cc.sourcesDir, name+".yml")
}

func setDefaults(config *Config) {
	if config.Kind == "" {
		config.Kind = event.DetectSourceKind(config.URL)
	}
	if config.ScanDepth == "" {
		config.ScanDepth = "latest"
	}
	if config.Timeout == 0 {
		config.Timeout = 30
	}
}

func validate(config *Config) error {
	if config.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	switch config.Kind {
	case event.SourceKindTelegram, event.SourceKindRSS, event.SourceKindWeb:
	default:
		return fmt.Errorf("invalid source kind: %s", config.Kind)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

func deriveName(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "source"
	}
	return strings.ToLower(trimmed)
}
