package sources

import "github.com/lysyi3m/intel-comb/app/event"

// Config describes one monitored source, loaded from a yaml file in the
// sources directory. The file name (minus extension) is the source name.
type Config struct {
	Name string `yaml:"-"`

	URL     string           `yaml:"url"`
	Kind    event.SourceKind `yaml:"kind"`
	Enabled bool             `yaml:"enabled"`

	// ScanDepth bounds how far back a scheduled scan reaches:
	// latest, 1m, 3m, 6m, 12m, all, resume.
	ScanDepth string `yaml:"scan_depth"`

	// Region optionally narrows extraction to a geographic focus.
	Region string `yaml:"region"`

	Timeout int `yaml:"timeout"` // seconds
}
