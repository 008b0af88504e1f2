package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

type ReminderHandler struct {
	svc *services.ReminderService
}

func NewReminderHandler(svc *services.ReminderService) *ReminderHandler {
	return &ReminderHandler{
		svc: svc,
	}
}

type createReminderRequest struct {
	PlantID       string `json:"plant_id" binding:"required"`
	CareType      string `json:"care_type" binding:"required"`
	FrequencyDays int    `json:"frequency_days"`
}

type updateFrequencyRequest struct {
	FrequencyDays int `json:"frequency_days"`
	Version       int `json:"version"`
}

type seedPlantRequest struct {
	CareTypes []string `json:"care_types"`
}

func (h *ReminderHandler) RegisterRoutes(router *gin.RouterGroup) {
	reminders := router.Group("/reminders")
	{
		reminders.POST("", h.Create)
		reminders.GET("", h.List)
		reminders.GET("/:id", h.Get)
		reminders.PUT("/:id/frequency", h.UpdateFrequency)
		reminders.DELETE("/:id", h.Delete)
	}

	router.POST("/plants/:plantId/reminders", h.SeedPlant)
}

func userIDOrAbort(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

// Create godoc
// @Summary  Create a reminder rule
// @Tags     reminders
// @Accept   json
// @Produce  json
// @Param    body body createReminderRequest true "rule"
// @Success  201 {object} domain.ReminderRule
// @Failure  400,409 {object} errorResponse
// @Security BearerAuth
// @Router   /reminders [post]
func (h *ReminderHandler) Create(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	rule, err := h.svc.Create(c.Request.Context(), services.CreateReminderInput{
		UserID:        userID,
		PlantID:       req.PlantID,
		CareType:      req.CareType,
		FrequencyDays: req.FrequencyDays,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (h *ReminderHandler) List(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	list, err := h.svc.ListByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *ReminderHandler) Get(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	rule, err := h.svc.GetByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// UpdateFrequency godoc
// @Summary  Change a rule's cadence; the countdown restarts today
// @Tags     reminders
// @Accept   json
// @Produce  json
// @Param    id   path string true "reminder id"
// @Param    body body updateFrequencyRequest true "cadence"
// @Success  200 {object} domain.ReminderRule
// @Failure  400,404,409 {object} errorResponse
// @Security BearerAuth
// @Router   /reminders/{id}/frequency [put]
func (h *ReminderHandler) UpdateFrequency(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	var req updateFrequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	rule, err := h.svc.UpdateFrequency(c.Request.Context(), services.UpdateFrequencyInput{
		ID:            c.Param("id"),
		UserID:        userID,
		FrequencyDays: req.FrequencyDays,
		Version:       req.Version,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (h *ReminderHandler) Delete(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SeedPlant godoc
// @Summary  Ensure a plant has one rule per care type
// @Tags     reminders
// @Accept   json
// @Produce  json
// @Param    plantId path string true "plant id"
// @Param    body    body seedPlantRequest false "care types, all known types when empty"
// @Success  200 {array} domain.ReminderRule
// @Failure  400,409 {object} errorResponse
// @Security BearerAuth
// @Router   /plants/{plantId}/reminders [post]
func (h *ReminderHandler) SeedPlant(c *gin.Context) {
	userID, ok := userIDOrAbort(c)
	if !ok {
		return
	}

	var req seedPlantRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}

	rules, err := h.svc.SeedPlant(c.Request.Context(), services.SeedPlantInput{
		UserID:    userID,
		PlantID:   c.Param("plantId"),
		CareTypes: req.CareTypes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rules)
}
