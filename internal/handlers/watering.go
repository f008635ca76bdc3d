package handlers

import (
	"errors"
	"net/http"
	"time"

	"growbox/internal/models"
	"growbox/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusPumpOn  = "pump_on"
	statusPumpOff = "pump_off"

	cmdWateringOn  = "on"
	cmdWateringOff = "off"
)

// Request DTO for manual watering control.
type wateringControlRequest struct {
	Command     string `json:"command" binding:"required"` // on | off
	DurationMin int    `json:"duration_min,omitempty"`     // manual hold, defaults server-side
}

// WateringControlRequest is an exported model for Swagger docs of the
// control payload.
type WateringControlRequest struct {
	// Command to run. Allowed: on, off
	Command string `json:"command" example:"on"`
	// How long the manual state holds before the schedule takes over again
	DurationMin int `json:"duration_min,omitempty" example:"10"`
}

// @Summary      Get watering settings
// @Tags         watering
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/watering/settings [get]
func (h *Handler) getWateringSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Watering.CycleSettings())
}

// @Summary      Update watering settings
// @Description  Applies immediately: the pump is stopped, the cycle recomputed and the relay re-driven
// @Tags         watering
// @Accept       json
// @Produce      json
// @Param        body  body   models.CycleSettings  true  "Cycle settings"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/watering/settings [put]
func (h *Handler) updateWateringSettings(c *gin.Context) {
	var cfg models.CycleSettings
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	err := h.services.Watering.UpdateSettings(c.Request.Context(), cfg)
	if errors.Is(err, service.ErrSettingsPersistence) {
		// Applied in memory, not written: the caller should know both.
		c.JSON(http.StatusOK, gin.H{"status": statusApplied, "persisted": false})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"persisted": true})
}

// @Summary      Manual watering control
// @Description  Holds the pump on or off for a limited time; safety limits still apply
// @Tags         watering
// @Accept       json
// @Produce      json
// @Param        body  body   WateringControlRequest  true  "Control payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/watering/control [post]
func (h *Handler) wateringControl(c *gin.Context) {
	var req wateringControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	var on bool
	switch req.Command {
	case cmdWateringOn:
		on = true
	case cmdWateringOff:
		on = false
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command: use on or off"})
		return
	}

	duration := time.Duration(req.DurationMin) * time.Minute
	if err := h.services.Watering.ManualControl(c.Request.Context(), on, duration); err != nil {
		if h.log != nil {
			h.log.Errorw("watering_control_rejected", "err", err, "command", req.Command)
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	status := statusPumpOff
	if on {
		status = statusPumpOn
	}
	h.respondWithStatus(c, status, gin.H{})
}
