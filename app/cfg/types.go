package cfg

type Cfg struct {
	// Storage configuration
	ArchiveFile string
	DBPath      string
	SourcesDir  string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	ScanOnStart       bool
	APIAccessKey      string

	// Extraction service configuration
	ExtractorURL    string
	ExtractorAPIKey string
	ExtractorRegion string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
