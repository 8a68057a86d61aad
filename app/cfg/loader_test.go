package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		ArchiveFile:       "./data/archive.json",
		DBPath:            "./data/intel.db",
		SourcesDir:        "./sources",
		Port:              "8080",
		WorkerCount:       2,
		SchedulerInterval: 60,
		APIAccessKey:      "test-key",
		ExtractorURL:      "http://localhost:9090",
		ExtractorAPIKey:   "extractor-key",
		ExtractorRegion:   "Middle East",
		UserAgent:         "Test Agent",
		Timezone:          "UTC",
		Debug:             true,
		Version:           "test-version",
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.ArchiveFile != "./data/archive.json" {
		t.Errorf("Expected archive file './data/archive.json', got '%s'", cfg.ArchiveFile)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("Expected worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.ExtractorURL != "http://localhost:9090" {
		t.Errorf("Expected extractor URL 'http://localhost:9090', got '%s'", cfg.ExtractorURL)
	}
}

func TestGetPanicsWhenNotLoaded(t *testing.T) {
	saved := globalCfg
	globalCfg = nil
	defer func() {
		globalCfg = saved
		if r := recover(); r == nil {
			t.Error("Get() should panic when configuration is not loaded")
		}
	}()
	Get()
}

func TestSetForTesting(t *testing.T) {
	saved := globalCfg
	defer func() { globalCfg = saved }()

	SetForTesting(&Cfg{Port: "9999"})
	if Get().Port != "9999" {
		t.Errorf("Expected port '9999', got '%s'", Get().Port)
	}
}
