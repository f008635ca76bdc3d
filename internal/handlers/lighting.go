package handlers

import (
	"net/http"
	"strconv"

	"growbox/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	cmdZoneOn  = "zone_on"
	cmdZoneOff = "zone_off"
	cmdAllOn   = "all_on"
	cmdAllOff  = "all_off"
)

type lightingControlRequest struct {
	Command string `json:"command" binding:"required"` // zone_on | zone_off | all_on | all_off
	Zone    int    `json:"zone,omitempty"`             // zone_on, zone_off
}

// LightingControlRequest is an exported model for Swagger docs of the
// control payload.
type LightingControlRequest struct {
	// Command to run. Allowed: zone_on, zone_off, all_on, all_off
	Command string `json:"command" example:"zone_on"`
	// Zone number 1-7 (zone_on, zone_off)
	Zone int `json:"zone,omitempty" example:"3"`
}

// @Summary      List lighting schedules
// @Tags         lighting
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, schedules"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/lighting/schedules [get]
func (h *Handler) listSchedules(c *gin.Context) {
	schedules, err := h.services.Lighting.Schedules(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load schedules", "schedules_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(schedules),
		"schedules": schedules,
	})
}

// @Summary      Create or update a lighting schedule
// @Description  A schedule with id 0 is created, otherwise updated. Takes effect immediately.
// @Tags         lighting
// @Accept       json
// @Produce      json
// @Param        body  body   models.LightSchedule  true  "Schedule"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/lighting/schedules [post]
func (h *Handler) saveSchedule(c *gin.Context) {
	var sched models.LightSchedule
	if err := c.ShouldBindJSON(&sched); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id, err := h.services.Lighting.SaveSchedule(c.Request.Context(), sched)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "id": id})
}

// @Summary      Delete a lighting schedule
// @Tags         lighting
// @Produce      json
// @Param        id   path  int  true  "Schedule id"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/lighting/schedules/{id} [delete]
func (h *Handler) deleteSchedule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}
	if err := h.services.Lighting.DeleteSchedule(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Manual lighting control
// @Description  Overrides zone states until the next forced schedule pass
// @Tags         lighting
// @Accept       json
// @Produce      json
// @Param        body  body   LightingControlRequest  true  "Control payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/lighting/control [post]
func (h *Handler) lightingControl(c *gin.Context) {
	var req lightingControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Command {
	case cmdZoneOn:
		err = h.services.Lighting.SetZone(ctx, req.Zone, true)
	case cmdZoneOff:
		err = h.services.Lighting.SetZone(ctx, req.Zone, false)
	case cmdAllOn:
		err = h.services.Lighting.SetAll(ctx, true)
	case cmdAllOff:
		err = h.services.Lighting.SetAll(ctx, false)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command"})
		return
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"command": req.Command})
}
