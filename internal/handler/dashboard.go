package handler

import (
	"net/http"
	"time"

	"microlend/internal/lending"
	"microlend/pkg/cache"
	"microlend/pkg/logger"
)

const (
	overviewCacheKey = "dashboard:overview"
	overviewCacheTTL = 30 * time.Second
)

type DashboardHandler struct {
	dashboard *lending.Dashboard
	cache     *cache.RedisCache
	logger    logger.Logger
}

// NewDashboardHandler accepts a nil cache, in which case every request
// recomputes the snapshot.
func NewDashboardHandler(dashboard *lending.Dashboard, c *cache.RedisCache, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, cache: c, logger: log}
}

// Overview returns the portfolio snapshot: working capital, realized
// profit, outstanding balances and headline counts. The rendered view is
// cached briefly, so it can lag a write by up to the TTL.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		var cached lending.DashboardView
		if err := h.cache.Get(ctx, overviewCacheKey, &cached); err == nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	view := h.dashboard.Overview()

	if h.cache != nil {
		if err := h.cache.Set(ctx, overviewCacheKey, view, overviewCacheTTL); err != nil {
			h.logger.Warn("Failed to cache dashboard overview", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	respondJSON(w, http.StatusOK, view)
}

// Agenda lists upcoming payments across open loans, overdue first.
func (h *DashboardHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"agenda": h.dashboard.Agenda(time.Now().UTC()),
	})
}
