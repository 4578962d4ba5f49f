package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"polymerbot/internal/repository"
	"polymerbot/internal/service"
)

type IngestHandler struct {
	Ingest *service.IngestService
	Repo   repository.Repository
	Logger *zap.Logger
}

func (h *IngestHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/ingest")
	group.POST("/run", h.runIngest)
	group.GET("/cursors", h.listCursors)
}

func (h *IngestHandler) runIngest(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	channel := strQuery(c, "channel_id")
	if channel == "" {
		h.Ingest.RunAll(c.Request.Context())
		Ok(c, gin.H{"status": "done"}, nil)
		return
	}
	channelID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid channel_id", nil)
		return
	}
	report, err := h.Ingest.RunChannel(c.Request.Context(), channelID)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Warn("ingest run failed", zap.Int64("channel_id", channelID), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, nil)
}

func (h *IngestHandler) listCursors(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	cursors, err := h.Repo.ListCursors(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list cursors failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, cursors, nil)
}
