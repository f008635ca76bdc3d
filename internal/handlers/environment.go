package handlers

import (
	"errors"
	"net/http"

	"growbox/internal/models"
	"growbox/internal/service"

	"github.com/gin-gonic/gin"
)

// Closed AC command set: every accepted command is listed here, anything
// else is rejected before it reaches the hardware.
const (
	cmdACPowerOn     = "power_on"
	cmdACPowerOff    = "power_off"
	cmdACSetTemp     = "set_temperature"
	cmdACSetMode     = "set_mode"
	cmdACSetFanSpeed = "set_fan_speed"
)

type co2ModeRequest struct {
	Mode string `json:"mode" binding:"required"` // auto | manual_on | manual_off
}

type fanModeRequest struct {
	Mode       string `json:"mode" binding:"required"` // off | continuous | intermittent
	OnMinutes  int    `json:"on_minutes,omitempty"`
	OffMinutes int    `json:"off_minutes,omitempty"`
}

type acCommandRequest struct {
	Command string `json:"command" binding:"required"`
	Value   int    `json:"value,omitempty"`  // set_temperature
	Option  string `json:"option,omitempty"` // set_mode, set_fan_speed
}

// ACCommandRequest is an exported model for Swagger docs of the AC payload.
type ACCommandRequest struct {
	// Command to run. Allowed: power_on, power_off, set_temperature, set_mode, set_fan_speed
	Command string `json:"command" example:"set_temperature"`
	// Temperature setpoint in Celsius (set_temperature)
	Value int `json:"value,omitempty" example:"24"`
	// Mode or fan speed name (set_mode, set_fan_speed)
	Option string `json:"option,omitempty" example:"cool"`
}

// @Summary      Get CO2 settings
// @Tags         environment
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/environment/co2/settings [get]
func (h *Handler) getCO2Settings(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Environment.CO2Settings())
}

// @Summary      Update CO2 settings
// @Tags         environment
// @Accept       json
// @Produce      json
// @Param        body  body   models.CO2Settings  true  "CO2 settings"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/environment/co2/settings [put]
func (h *Handler) updateCO2Settings(c *gin.Context) {
	var cfg models.CO2Settings
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	err := h.services.Environment.UpdateCO2Settings(c.Request.Context(), cfg)
	if errors.Is(err, service.ErrSettingsPersistence) {
		c.JSON(http.StatusOK, gin.H{"status": statusApplied, "persisted": false})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"persisted": true})
}

// @Summary      Set CO2 control mode
// @Tags         environment
// @Accept       json
// @Produce      json
// @Param        body  body   co2ModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/environment/co2/mode [post]
func (h *Handler) setCO2Mode(c *gin.Context) {
	var req co2ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Environment.SetCO2Mode(c.Request.Context(), req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"mode": req.Mode})
}

// @Summary      Set circulation fan mode
// @Tags         environment
// @Accept       json
// @Produce      json
// @Param        body  body   fanModeRequest  true  "Fan mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/environment/fans [post]
func (h *Handler) setFanMode(c *gin.Context) {
	var req fanModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Environment.SetFanMode(c.Request.Context(), req.Mode, req.OnMinutes, req.OffMinutes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"mode": req.Mode})
}

// @Summary      AC command
// @Description  Closed command set; set_temperature uses value, set_mode and set_fan_speed use option
// @Tags         environment
// @Accept       json
// @Produce      json
// @Param        body  body   ACCommandRequest  true  "Command payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/environment/ac [post]
func (h *Handler) acCommand(c *gin.Context) {
	var req acCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Command {
	case cmdACPowerOn:
		err = h.services.Environment.SetACPower(ctx, true)
	case cmdACPowerOff:
		err = h.services.Environment.SetACPower(ctx, false)
	case cmdACSetTemp:
		err = h.services.Environment.SetACTemperature(ctx, req.Value)
	case cmdACSetMode:
		err = h.services.Environment.SetACMode(ctx, req.Option)
	case cmdACSetFanSpeed:
		err = h.services.Environment.SetACFanSpeed(ctx, req.Option)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command"})
		return
	}

	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, err.Error(), "ac_command_failed", err, "command", req.Command)
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"command": req.Command})
}
