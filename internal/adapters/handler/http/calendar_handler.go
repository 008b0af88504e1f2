package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

type CalendarHandler struct {
	svc *services.CalendarService
}

func NewCalendarHandler(svc *services.CalendarService) *CalendarHandler {
	return &CalendarHandler{svc: svc}
}

func (h *CalendarHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/calendar", h.GetMonth)
}

// GetMonth godoc
// @Summary  Six-week calendar grid merging history with upcoming due dates
// @Tags     calendar
// @Produce  json
// @Param    month    query string false "YYYY-MM, default current month"
// @Param    selected query string false "YYYY-MM-DD, default today"
// @Success  200 {object} domain.CalendarMonth
// @Failure  400 {object} errorResponse
// @Security BearerAuth
// @Router   /calendar [get]
func (h *CalendarHandler) GetMonth(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	input := domain.CalendarInput{UserID: userID}

	if raw := c.Query("month"); raw != "" {
		year, month, err := domain.ParseMonth(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		input.Year, input.Month = year, month
	}

	if raw := c.Query("selected"); raw != "" {
		selected, err := domain.ParseDate(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		input.Selected = &selected
	}

	cal, err := h.svc.GetMonth(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cal)
}
