package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intelcomb_pages_fetched_total",
		Help: "Source pages fetched, by source kind.",
	}, []string{"kind"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intelcomb_fetch_failures_total",
		Help: "Failed source page fetches, by source kind.",
	}, []string{"kind"})

	EventsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelcomb_events_extracted_total",
		Help: "Event records returned by the extraction service.",
	})

	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelcomb_extraction_failures_total",
		Help: "Extraction calls that failed, rate limits included.",
	})

	EventsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelcomb_events_inserted_total",
		Help: "New events inserted into the archive.",
	})

	EventsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelcomb_events_merged_total",
		Help: "Incoming events merged into existing archive entries.",
	})

	EventsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intelcomb_events_removed_total",
		Help: "Events removed from the archive by source deletion.",
	})

	ArchiveEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intelcomb_archive_events",
		Help: "Events currently held in the archive.",
	})
)
