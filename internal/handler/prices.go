package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"polymerbot/internal/service"
)

type PriceHandler struct {
	Stats  *service.StatsService
	Logger *zap.Logger
}

func (h *PriceHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/items", h.listItems)
	group.GET("/history", h.getHistory)
	group.GET("/daily", h.getDaily)
	group.GET("/compare", h.getCompare)
}

func (h *PriceHandler) listItems(c *gin.Context) {
	if h.Stats == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	items, err := h.Stats.Items(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list items failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *PriceHandler) getHistory(c *gin.Context) {
	if h.Stats == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	term := strQuery(c, "term")
	if term == "" {
		Error(c, http.StatusBadRequest, "term required", nil)
		return
	}
	days := intQuery(c, "days", 7)
	res, err := h.Stats.History(c.Request.Context(), term, days)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("history query failed", zap.String("term", term), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !res.Found {
		Error(c, http.StatusNotFound, "item not found", map[string]any{"term": term})
		return
	}
	Ok(c, res, nil)
}

func (h *PriceHandler) getDaily(c *gin.Context) {
	if h.Stats == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	term := strQuery(c, "term")
	if term == "" {
		Error(c, http.StatusBadRequest, "term required", nil)
		return
	}
	days := intQuery(c, "days", 7)
	res, err := h.Stats.DailyStats(c.Request.Context(), term, days)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("daily stats query failed", zap.String("term", term), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !res.Found {
		Error(c, http.StatusNotFound, "item not found", map[string]any{"term": term})
		return
	}
	Ok(c, res, nil)
}

func (h *PriceHandler) getCompare(c *gin.Context) {
	if h.Stats == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	left := strQuery(c, "a")
	right := strQuery(c, "b")
	if left == "" || right == "" {
		Error(c, http.StatusBadRequest, "a and b required", nil)
		return
	}
	days := intQuery(c, "days", 7)
	res, err := h.Stats.Compare(c.Request.Context(), left, right, days)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("compare query failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !res.LeftFound && !res.RightFound {
		Error(c, http.StatusNotFound, "neither item found", nil)
		return
	}
	Ok(c, res, nil)
}
