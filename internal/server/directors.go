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

type directorRequestPayload struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

type directorPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func directorView(row catalog.Director) directorPayload {
	return directorPayload{
		ID:        row.StringID(),
		Name:      row.Name,
		Surname:   row.Surname,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func parseDirectorRequest(c *gin.Context) (catalog.DirectorInput, bool) {
	var request directorRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		return catalog.DirectorInput{}, false
	}
	if strings.TrimSpace(request.Name) == "" || strings.TrimSpace(request.Surname) == "" {
		return catalog.DirectorInput{}, false
	}
	return catalog.DirectorInput{Name: request.Name, Surname: request.Surname}, true
}

func (h *httpHandler) handleCreateDirector(c *gin.Context) {
	input, ok := parseDirectorRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	row, err := h.catalog.CreateDirector(c.Request.Context(), input)
	if err != nil {
		h.logger.Error("director create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	h.publishDirector(c.Request.Context(), replication.ActionInsert, row)
	c.JSON(http.StatusCreated, directorView(row))
}

func (h *httpHandler) handleListDirectors(c *gin.Context) {
	ctx := c.Request.Context()
	if cached, ok := h.cacheGet(ctx, cache.KeyDirectors); ok {
		c.Data(http.StatusOK, jsonContentType, []byte(cached))
		return
	}

	rows, err := h.catalog.ListDirectors(ctx)
	if err != nil {
		h.logger.Error("director list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	payloads := make([]directorPayload, 0, len(rows))
	for _, row := range rows {
		payloads = append(payloads, directorView(row))
	}
	body, err := json.Marshal(payloads)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}

	h.cacheSet(ctx, cache.KeyDirectors, string(body))
	c.Data(http.StatusOK, jsonContentType, body)
}

func (h *httpHandler) handleGetDirector(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	key := cache.DirectorKey(id)

	if cached, ok := h.cacheGet(ctx, key); ok {
		c.Data(http.StatusOK, jsonContentType, []byte(cached))
		return
	}

	row, err := h.catalog.GetDirector(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("director get failed", zap.String("director_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	body, err := json.Marshal(directorView(row))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}

	h.cacheSet(ctx, key, string(body))
	c.Data(http.StatusOK, jsonContentType, body)
}

func (h *httpHandler) handleUpdateDirector(c *gin.Context) {
	input, ok := parseDirectorRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	row, err := h.catalog.UpdateDirector(ctx, id, input)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("director update failed", zap.String("director_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	h.publishDirector(ctx, replication.ActionUpdate, row)

	body, err := json.Marshal(directorView(row))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}

	h.cacheSet(ctx, cache.DirectorKey(id), string(body))
	h.cacheInvalidate(ctx, cache.KeyDirectors)
	c.Data(http.StatusOK, jsonContentType, body)
}

func (h *httpHandler) handleDeleteDirector(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	err := h.catalog.DeleteDirector(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("director delete failed", zap.String("director_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	if err := h.publisher.DirectorDeleted(ctx, id); err != nil {
		h.logDegradedWrite("director", id, err)
	}
	h.cacheInvalidate(ctx, cache.DirectorKey(id))
	h.cacheInvalidate(ctx, cache.KeyDirectors)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) publishDirector(ctx context.Context, action replication.Action, row catalog.Director) {
	snapshot := replication.SnapshotDirector(row)
	var err error
	switch action {
	case replication.ActionInsert:
		err = h.publisher.DirectorInserted(ctx, snapshot)
	case replication.ActionUpdate:
		err = h.publisher.DirectorUpdated(ctx, snapshot)
	}
	if err != nil {
		h.logDegradedWrite("director", row.StringID(), err)
	}
}
