package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/intel-comb/app/database"
	"github.com/lysyi3m/intel-comb/app/event"
	"github.com/lysyi3m/intel-comb/app/metrics"
	"github.com/lysyi3m/intel-comb/app/sources"
	"github.com/lysyi3m/intel-comb/app/tasks"
)

func NewHandler(store ArchiveInterface, configCache *sources.ConfigCache,
	sourceRepo database.SourceRepository, syncRepo database.SyncStateRepository,
	ingestor IngestorInterface, analyzer CrowdAnalyzerInterface,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		store:       store,
		configCache: configCache,
		sourceRepo:  sourceRepo,
		syncRepo:    syncRepo,
		ingestor:    ingestor,
		analyzer:    analyzer,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetEvents(c *gin.Context) {
	category := c.Query("category")
	query := strings.ToLower(c.Query("q"))
	start := c.Query("start")
	end := c.Query("end")

	all := h.store.All()
	events := make([]event.Event, 0, len(all))
	for _, e := range all {
		if category != "" && string(e.Category) != category {
			continue
		}
		// Dates are YYYY-MM-DD, so string comparison orders correctly.
		if start != "" && e.Date < start {
			continue
		}
		if end != "" && e.Date > end {
			continue
		}
		if query != "" && !matchesQuery(&e, query) {
			continue
		}
		events = append(events, e)
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  len(events),
	})
}

func matchesQuery(e *event.Event, query string) bool {
	return strings.Contains(strings.ToLower(e.Title), query) ||
		strings.Contains(strings.ToLower(e.Summary), query) ||
		strings.Contains(strings.ToLower(e.LocationName), query)
}

func (h *Handler) ExportArchive(c *gin.Context) {
	data, err := h.store.Export()
	if err != nil {
		slog.Error("Archive export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export archive"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=archive.json")
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"events":    h.store.Count(),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	byCategory := map[string]int{}
	crowdDerived := 0
	for _, e := range h.store.All() {
		byCategory[string(e.Category)]++
		if e.IsCrowdDerived {
			crowdDerived++
		}
	}

	stats := gin.H{
		"events":        h.store.Count(),
		"by_category":   byCategory,
		"crowd_derived": crowdDerived,
		"ingest":        h.ingestor.Status(),
	}

	if metas, err := h.sourceRepo.GetAllSources(); err == nil {
		bySource := make(map[string]int, len(metas))
		for _, meta := range metas {
			bySource[meta.URL] = meta.TotalEvents
		}
		stats["by_source"] = bySource
	}

	if state, err := h.syncRepo.GetSyncState(); err == nil {
		stats["sync"] = gin.H{
			"enabled":          state.Enabled,
			"interval_minutes": state.IntervalMinutes,
			"last_sync_at":     state.LastSyncAt,
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIIngestText(c *gin.Context) {
	var req struct {
		Text   string `json:"text"`
		Region string `json:"region"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing text to analyze"})
		return
	}

	report, err := h.ingestor.IngestText(c.Request.Context(), req.Text, req.Region)
	if err != nil {
		if strings.Contains(err.Error(), "in progress") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Manual text ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APIIngestURL(c *gin.Context) {
	var req struct {
		URL   string `json:"url"`
		Depth string `json:"depth"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source URL"})
		return
	}

	config := sources.Config{URL: req.URL, ScanDepth: req.Depth, Enabled: true}
	if known, ok := h.configCache.GetConfigByURL(req.URL); ok {
		config = *known
		config.Enabled = true
		if req.Depth != "" {
			config.ScanDepth = req.Depth
		}
	} else {
		config.Name = req.URL
		config.Kind = event.DetectSourceKind(req.URL)
		if config.ScanDepth == "" {
			config.ScanDepth = "latest"
		}
	}

	if err := h.sourceRepo.UpsertSource(config.URL, config.Kind); err != nil {
		slog.Error("Failed to register source", "url", config.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register source"})
		return
	}

	scanTask := tasks.NewScanSourceTask(config, h.ingestor)
	if err := h.scheduler.EnqueueTask(scanTask); err != nil {
		slog.Error("Error enqueueing scan task", "url", config.URL, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue scan task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Scan task enqueued",
		"task": gin.H{
			"id":   scanTask.ID,
			"type": scanTask.Type,
		},
		"source": gin.H{
			"url":   config.URL,
			"kind":  config.Kind,
			"depth": config.ScanDepth,
		},
	})
}

func (h *Handler) APIIngestCrowd(c *gin.Context) {
	var req struct {
		MediaBase64 string `json:"mediaBase64"`
		MimeType    string `json:"mimeType"`
		Region      string `json:"region"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.MediaBase64 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing media payload"})
		return
	}

	estimate, err := h.analyzer.EstimateCrowd(c.Request.Context(), req.MediaBase64, req.MimeType, req.Region)
	if err != nil {
		slog.Error("Crowd analysis failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	rec := estimate.Record()
	// Analyst uploads count as manual origin, which lets a crowd report
	// validate an existing archived event on merge.
	rec.IsManualOrigin = true

	report, err := h.ingestor.IngestRecords([]event.Record{rec}, "crowd report")
	if err != nil {
		if strings.Contains(err.Error(), "in progress") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Crowd report ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"estimate": estimate,
		"report":   report,
	})
}

func (h *Handler) APIStopIngest(c *gin.Context) {
	h.ingestor.Abort()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Scan stopped by user.",
	})
}

func (h *Handler) APIIngestStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.ingestor.Status())
}

func (h *Handler) APIImportArchive(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing archive payload"})
		return
	}

	result, err := h.store.Import(data)
	if err != nil {
		slog.Error("Archive import failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid archive payload", "details": err.Error()})
		return
	}
	metrics.EventsInserted.Add(float64(result.Inserted))
	metrics.EventsMerged.Add(float64(result.Merged))
	metrics.ArchiveEvents.Set(float64(h.store.Count()))

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"inserted": result.Inserted,
		"merged":   result.Merged,
		"total":    h.store.Count(),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	list := make([]map[string]interface{}, 0, len(configs))
	for _, config := range configs {
		info := map[string]interface{}{
			"name":       config.Name,
			"url":        config.URL,
			"kind":       config.Kind,
			"enabled":    config.Enabled,
			"scan_depth": config.ScanDepth,
			"region":     config.Region,
		}

		if meta, err := h.sourceRepo.GetSource(config.URL); err == nil && meta != nil {
			info["last_cursor"] = meta.LastCursor
			info["total_events"] = meta.TotalEvents
			info["last_update"] = meta.LastUpdate
		}

		list = append(list, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) APIAddSource(c *gin.Context) {
	var req struct {
		URL       string `json:"url"`
		Kind      string `json:"kind"`
		Enabled   *bool  `json:"enabled"`
		ScanDepth string `json:"scan_depth"`
		Region    string `json:"region"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source URL"})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	config := &sources.Config{
		URL:       req.URL,
		Kind:      event.SourceKind(req.Kind),
		Enabled:   enabled,
		ScanDepth: req.ScanDepth,
		Region:    req.Region,
	}

	if err := h.configCache.AddConfig(config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source configuration", "details": err.Error()})
		return
	}

	if err := h.sourceRepo.UpsertSource(config.URL, config.Kind); err != nil {
		slog.Error("Failed to register source", "url", config.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register source"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"source": gin.H{
			"name":       config.Name,
			"url":        config.URL,
			"kind":       config.Kind,
			"enabled":    config.Enabled,
			"scan_depth": config.ScanDepth,
		},
	})
}

func (h *Handler) APIRemoveSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	config, err := h.configCache.GetConfig(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	removed, err := h.store.RemoveBySource(config.URL)
	if err != nil {
		slog.Error("Failed to remove source events", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove source events"})
		return
	}
	metrics.EventsRemoved.Add(float64(removed))
	metrics.ArchiveEvents.Set(float64(h.store.Count()))

	if err := h.sourceRepo.DeleteSource(config.URL); err != nil {
		slog.Error("Failed to delete source metadata", "source", name, "error", err)
	}
	if err := h.configCache.RemoveConfig(name); err != nil {
		slog.Error("Failed to remove source configuration", "source", name, "error", err)
	}

	slog.Info("Source removed", "source", name, "events_removed", removed)

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"events_removed": removed,
		"remaining":      h.store.Count(),
	})
}

func (h *Handler) APIGetSyncState(c *gin.Context) {
	state, err := h.syncRepo.GetSyncState()
	if err != nil {
		slog.Error("Database error", "operation", "get_sync_state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled":          state.Enabled,
		"interval_minutes": state.IntervalMinutes,
		"last_sync_at":     state.LastSyncAt,
	})
}

func (h *Handler) APIUpdateSyncState(c *gin.Context) {
	var req struct {
		Enabled         *bool `json:"enabled"`
		IntervalMinutes int   `json:"interval_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing sync settings"})
		return
	}
	if req.IntervalMinutes <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Interval must be positive"})
		return
	}

	if err := h.syncRepo.UpdateSyncState(*req.Enabled, req.IntervalMinutes); err != nil {
		slog.Error("Database error", "operation", "update_sync_state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"enabled":          *req.Enabled,
		"interval_minutes": req.IntervalMinutes,
	})
}
