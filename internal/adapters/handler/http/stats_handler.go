package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

type StatsHandler struct {
	svc   *services.StatsService
	clock domain.Clock
}

func NewStatsHandler(svc *services.StatsService, clock domain.Clock) *StatsHandler {
	return &StatsHandler{svc: svc, clock: clock}
}

func (h *StatsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stats/care", h.GetCareStats)
}

// GetCareStats godoc
// @Summary  Completion and punctuality per plant and care type
// @Tags     stats
// @Produce  json
// @Param    start_date query string false "YYYY-MM-DD, default end_date-6"
// @Param    end_date   query string false "YYYY-MM-DD, default today"
// @Success  200 {object} domain.CareStats
// @Failure  400 {object} errorResponse
// @Security BearerAuth
// @Router   /stats/care [get]
func (h *StatsHandler) GetCareStats(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	end, err := dateQuery(c, "end_date", h.clock.Today())
	if err != nil {
		respondError(c, err)
		return
	}
	start, err := dateQuery(c, "start_date", end.AddDays(-6))
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.svc.GetCareStats(c.Request.Context(), domain.StatsInput{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
