package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumenmedia/dvdstore/internal/cache"
	"github.com/lumenmedia/dvdstore/internal/catalog"
	"github.com/lumenmedia/dvdstore/internal/replication"
)

const (
	jsonContentType = "application/json; charset=utf-8"
	releaseDateOnly = "2006-01-02"
)

type dvdRequestPayload struct {
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	DirectorID  string `json:"directorId"`
	ReleaseDate string `json:"releaseDate"`
	Copies      *int   `json:"copies"`
}

type dvdViewPayload struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	DirectorID  string    `json:"directorId"`
	Director    string    `json:"director"`
	ReleaseDate time.Time `json:"releaseDate"`
	Copies      int       `json:"copies"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func dvdView(view catalog.DVDView) dvdViewPayload {
	return dvdViewPayload{
		ID:          view.ID,
		Title:       view.Title,
		Genre:       view.Genre,
		DirectorID:  view.DirectorID,
		Director:    view.DirectorDisplay(),
		ReleaseDate: view.ReleaseDate,
		Copies:      view.Copies,
		Available:   view.Available,
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	}
}

// parseDVDRequest validates the mutation payload. All fields are required;
// a null copy count is rejected, zero is allowed.
func parseDVDRequest(c *gin.Context) (catalog.DVDInput, bool) {
	var request dvdRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		return catalog.DVDInput{}, false
	}
	if strings.TrimSpace(request.Title) == "" ||
		strings.TrimSpace(request.Genre) == "" ||
		strings.TrimSpace(request.DirectorID) == "" ||
		strings.TrimSpace(request.ReleaseDate) == "" ||
		request.Copies == nil {
		return catalog.DVDInput{}, false
	}

	releaseDate, err := parseReleaseDate(request.ReleaseDate)
	if err != nil {
		return catalog.DVDInput{}, false
	}

	return catalog.DVDInput{
		Title:       request.Title,
		Genre:       request.Genre,
		DirectorID:  request.DirectorID,
		ReleaseDate: releaseDate,
		Copies:      *request.Copies,
	}, true
}

func parseReleaseDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(releaseDateOnly, raw); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func (h *httpHandler) handleCreateDVD(c *gin.Context) {
	input, ok := parseDVDRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	view, err := h.catalog.CreateDVD(c.Request.Context(), input)
	if err != nil {
		h.logger.Error("dvd create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	h.publishDVD(c.Request.Context(), replication.ActionInsert, view)
	c.JSON(http.StatusCreated, dvdView(view))
}

func (h *httpHandler) handleListDVDs(c *gin.Context) {
	ctx := c.Request.Context()
	if cached, ok := h.cacheGet(ctx, cache.KeyDVDs); ok {
		c.Data(http.StatusOK, jsonContentType, []byte(cached))
		return
	}

	views, err := h.catalog.ListDVDs(ctx)
	if err != nil {
		h.logger.Error("dvd list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	payloads := make([]dvdViewPayload, 0, len(views))
	for _, view := range views {
		payloads = append(payloads, dvdView(view))
	}
	body, err := json.Marshal(payloads)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}

	h.cacheSet(ctx, cache.KeyDVDs, string(body))
	c.Data(http.StatusOK, jsonContentType, body)
}

func (h *httpHandler) handleGetDVD(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	key := cache.DVDKey(id)

	if cached, ok := h.cacheGet(ctx, key); ok {
		c.Data(http.StatusOK, jsonContentType, []byte(cached))
		return
	}

	view, err := h.catalog.GetDVD(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("dvd get failed", zap.String("dvd_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	body, err := json.Marshal(dvdView(view))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}

	h.cacheSet(ctx, key, string(body))
	c.Data(http.StatusOK, jsonContentType, body)
}

func (h *httpHandler) handleUpdateDVD(c *gin.Context) {
	input, ok := parseDVDRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	view, err := h.catalog.UpdateDVD(ctx, id, input)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("dvd update failed", zap.String("dvd_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	h.publishDVD(ctx, replication.ActionUpdate, view)

	body, err := json.Marshal(dvdView(view))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}

	// Singleton views are cheap to patch in place; collection views are
	// rebuilt lazily on the next list read. The key follows the request
	// identifier so the entry a prior read cached under the same spelling
	// is overwritten, not left stale beside a canonical one.
	h.cacheSet(ctx, cache.DVDKey(id), string(body))
	h.cacheInvalidate(ctx, cache.KeyDVDs)
	c.Data(http.StatusOK, jsonContentType, body)
}

func (h *httpHandler) handleDeleteDVD(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	err := h.catalog.DeleteDVD(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("dvd delete failed", zap.String("dvd_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	if err := h.publisher.DVDDeleted(ctx, id); err != nil {
		h.logDegradedWrite("dvd", id, err)
	}
	h.cacheInvalidate(ctx, cache.DVDKey(id))
	h.cacheInvalidate(ctx, cache.KeyDVDs)
	c.Status(http.StatusNoContent)
}

// publishDVD hands the committed view to the replication queue. Enqueue
// failure is a degraded write: the response already succeeded, the replica
// diverges until reconciled.
func (h *httpHandler) publishDVD(ctx context.Context, action replication.Action, view catalog.DVDView) {
	snapshot := replication.SnapshotDVD(view)
	var err error
	switch action {
	case replication.ActionInsert:
		err = h.publisher.DVDInserted(ctx, snapshot)
	case replication.ActionUpdate:
		err = h.publisher.DVDUpdated(ctx, snapshot)
	}
	if err != nil {
		h.logDegradedWrite("dvd", view.ID, err)
	}
}

func (h *httpHandler) logDegradedWrite(kind, id string, err error) {
	h.logger.Error("degraded write: committed mutation not replicated",
		zap.String("entity_kind", kind),
		zap.String("entity_id", id),
		zap.Error(err))
}

// cacheGet treats client failure as a miss so reads fall back to the store.
func (h *httpHandler) cacheGet(ctx context.Context, key string) (string, bool) {
	value, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return value, ok
}

func (h *httpHandler) cacheSet(ctx context.Context, key, value string) {
	if err := h.cache.Set(ctx, key, value, h.cacheTTL); err != nil {
		h.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// cacheInvalidate logs and continues on failure; the stale entry still
// expires at TTL.
func (h *httpHandler) cacheInvalidate(ctx context.Context, key string) {
	if err := h.cache.Invalidate(ctx, key); err != nil {
		h.logger.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}
