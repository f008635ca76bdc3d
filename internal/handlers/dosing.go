package handlers

import (
	"errors"
	"net/http"

	"growbox/internal/models"
	"growbox/internal/service"

	"github.com/gin-gonic/gin"
)

type doseRequest struct {
	Pump     string  `json:"pump" binding:"required"` // nutrient_a | nutrient_b | ph_up | ph_down
	AmountML float64 `json:"amount_ml,omitempty"`
}

type manualDoseRequest struct {
	Pump    string  `json:"pump" binding:"required"`
	Seconds float64 `json:"seconds,omitempty"`
}

// DoseRequest is an exported model for Swagger docs of the dose payload.
type DoseRequest struct {
	// Pump id. Allowed: nutrient_a, nutrient_b, ph_up, ph_down
	Pump string `json:"pump" example:"ph_down"`
	// Dose size in ml; nutrient pumps always use the fixed dose size
	AmountML float64 `json:"amount_ml,omitempty" example:"3"`
}

// @Summary      Get dosing settings
// @Tags         dosing
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/dosing/settings [get]
func (h *Handler) getDosingSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Dosing.DosingSettings())
}

// @Summary      Update dosing settings
// @Tags         dosing
// @Accept       json
// @Produce      json
// @Param        body  body   models.DosingSettings  true  "Dosing settings"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/dosing/settings [put]
func (h *Handler) updateDosingSettings(c *gin.Context) {
	var cfg models.DosingSettings
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	err := h.services.Dosing.UpdateSettings(c.Request.Context(), cfg)
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

// @Summary      Start a dose
// @Description  One pump doses at a time; a busy controller answers 409
// @Tags         dosing
// @Accept       json
// @Produce      json
// @Param        body  body   DoseRequest  true  "Dose payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/dosing/dose [post]
func (h *Handler) dose(c *gin.Context) {
	var req doseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	if err := h.services.Dosing.Dose(c.Request.Context(), req.Pump, req.AmountML); err != nil {
		if errors.Is(err, service.ErrAlreadyDosing) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"pump": req.Pump})
}

// @Summary      Manual timed dose
// @Description  Runs a pump for a duration; the amount follows from the flow rate
// @Tags         dosing
// @Accept       json
// @Produce      json
// @Param        body  body   manualDoseRequest  true  "Manual dose payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/dosing/manual [post]
func (h *Handler) manualDose(c *gin.Context) {
	var req manualDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	if err := h.services.Dosing.ManualDose(c.Request.Context(), req.Pump, req.Seconds); err != nil {
		if errors.Is(err, service.ErrAlreadyDosing) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondWithStatus(c, statusApplied, gin.H{"pump": req.Pump})
}

// @Summary      Abort dosing
// @Description  Clears the dosing state and drops any queued follow-up dose
// @Tags         dosing
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/dosing/abort [post]
func (h *Handler) abortDosing(c *gin.Context) {
	if err := h.services.Dosing.Abort(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to abort dosing", "dosing_abort_failed", err)
		return
	}
	h.respondWithStatus(c, "aborted", gin.H{})
}
