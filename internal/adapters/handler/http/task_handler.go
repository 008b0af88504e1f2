package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

const defaultHistoryDays = 30

type TaskHandler struct {
	svc   *services.TaskService
	clock domain.Clock
}

func NewTaskHandler(svc *services.TaskService, clock domain.Clock) *TaskHandler {
	return &TaskHandler{
		svc:   svc,
		clock: clock,
	}
}

type completeTaskRequest struct {
	CompletionDate *domain.Date `json:"completion_date"`
}

func (h *TaskHandler) RegisterRoutes(router *gin.RouterGroup) {
	tasks := router.Group("/tasks")
	{
		tasks.GET("", h.List)
		tasks.POST("/:id/complete", h.Complete)
	}
}

// dateQuery reads an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, key string, fallback domain.Date) (domain.Date, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return domain.ParseDate(raw)
}

// List godoc
// @Summary  Ledger entries scheduled in [from, to], oldest first
// @Tags     tasks
// @Produce  json
// @Param    from query string false "YYYY-MM-DD, default today-30"
// @Param    to   query string false "YYYY-MM-DD, default today"
// @Success  200 {array} domain.TaskOccurrence
// @Failure  400 {object} errorResponse
// @Security BearerAuth
// @Router   /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	today := h.clock.Today()
	from, err := dateQuery(c, "from", today.AddDays(-defaultHistoryDays))
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := dateQuery(c, "to", today)
	if err != nil {
		respondError(c, err)
		return
	}

	list, err := h.svc.ListOccurrences(c.Request.Context(), userID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// Complete godoc
// @Summary  Complete an occurrence and advance its rule
// @Tags     tasks
// @Accept   json
// @Produce  json
// @Param    id   path string true "occurrence id"
// @Param    body body completeTaskRequest false "completion date, default today"
// @Success  200 {object} services.CompletionResult
// @Failure  404,409,422,503 {object} errorResponse
// @Security BearerAuth
// @Router   /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	var req completeTaskRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}

	result, err := h.svc.Complete(c.Request.Context(), services.CompleteTaskInput{
		OccurrenceID:   c.Param("id"),
		UserID:         userID,
		CompletionDate: req.CompletionDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
