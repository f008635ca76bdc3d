package handlers

import (
	"growbox/internal/logger"
	"growbox/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Live status stream (HTTP upgrade), same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/status", h.getStatus)

		h.registerWateringRoutes(api)
		h.registerEnvironmentRoutes(api)
		h.registerLightingRoutes(api)
		h.registerDosingRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerWateringRoutes(api *gin.RouterGroup) {
	watering := api.Group("/watering")
	{
		watering.GET("/settings", h.getWateringSettings)
		watering.PUT("/settings", h.updateWateringSettings)
		// Body example: {"command":"on","duration_min":10}
		watering.POST("/control", h.wateringControl)
	}
}

func (h *Handler) registerEnvironmentRoutes(api *gin.RouterGroup) {
	env := api.Group("/environment")
	{
		env.GET("/co2/settings", h.getCO2Settings)
		env.PUT("/co2/settings", h.updateCO2Settings)
		env.POST("/co2/mode", h.setCO2Mode)
		// Body example: {"mode":"intermittent","on_minutes":5,"off_minutes":10}
		env.POST("/fans", h.setFanMode)
		// Body example: {"command":"set_temperature","value":24}
		env.POST("/ac", h.acCommand)
	}
}

func (h *Handler) registerLightingRoutes(api *gin.RouterGroup) {
	lighting := api.Group("/lighting")
	{
		lighting.GET("/schedules", h.listSchedules)
		lighting.POST("/schedules", h.saveSchedule)
		lighting.DELETE("/schedules/:id", h.deleteSchedule)
		// Body example: {"command":"zone_on","zone":3}
		lighting.POST("/control", h.lightingControl)
	}
}

func (h *Handler) registerDosingRoutes(api *gin.RouterGroup) {
	dosing := api.Group("/dosing")
	{
		dosing.GET("/settings", h.getDosingSettings)
		dosing.PUT("/settings", h.updateDosingSettings)
		// Body example: {"pump":"ph_down","amount_ml":3}
		dosing.POST("/dose", h.dose)
		// Body example: {"pump":"nutrient_a","seconds":5}
		dosing.POST("/manual", h.manualDose)
		dosing.POST("/abort", h.abortDosing)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
