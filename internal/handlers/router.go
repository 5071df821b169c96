package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/auth"
	"github.com/SAP-F-2025/learning-service/internal/metrics"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/utils"
)

type HandlerManager struct {
	lessonTestHandler *ProgressionHandler
	moduleTestHandler *ProgressionHandler
	catalogHandler    *CatalogHandler
	supportHandler    *SupportHandler
	authMiddleware    *AuthMiddleware
	wsHandler         http.Handler
}

// NewHandlerManager wires the HTTP handlers. wsHandler serves GET /ws and may be nil.
func NewHandlerManager(
	serviceManager services.ServiceManager,
	authenticator *auth.Authenticator,
	wsHandler http.Handler,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		lessonTestHandler: NewProgressionHandler(models.UnitLesson, serviceManager.Progression(), serviceManager.Question(), logger),
		moduleTestHandler: NewProgressionHandler(models.UnitModule, serviceManager.Progression(), serviceManager.Question(), logger),
		catalogHandler:    NewCatalogHandler(serviceManager.Catalog(), logger),
		supportHandler:    NewSupportHandler(serviceManager.Support(), logger),
		authMiddleware:    NewAuthMiddleware(authenticator, logger),
		wsHandler:         wsHandler,
	}
}

func (hm *HandlerManager) progressionRoutes(group *gin.RouterGroup, h *ProgressionHandler) {
	learners := hm.authMiddleware.RequireRole(models.RoleStudent)
	admins := hm.authMiddleware.RequireRole(models.RoleAdmin)

	group.GET("/:unit_id/sample", learners, h.Sample)
	group.POST("/:unit_id/grade", learners, h.Grade)
	group.POST("/:unit_id/submit", learners, h.Submit)
	group.POST("/:unit_id/finish", learners, h.Finish)

	group.POST("/:unit_id/questions", admins, h.CreateQuestion)
	group.POST("/:unit_id/questions/import", admins, h.ImportQuestions)
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.Authenticate())
	{
		hm.progressionRoutes(v1.Group("/lesson-tests"), hm.lessonTestHandler)
		hm.progressionRoutes(v1.Group("/module-tests"), hm.moduleTestHandler)

		v1.GET("/module-tests/overview", hm.authMiddleware.RequireRole(models.RoleStudent), hm.catalogHandler.ModuleOverview)
		v1.GET("/lessons/:id", hm.catalogHandler.GetLesson)
		v1.GET("/modules/:id/lessons", hm.catalogHandler.ListModuleLessons)

		// STUDENT-only and SUPPORT-only operations are decided by the support service
		support := v1.Group("/support")
		{
			support.GET("/tickets", hm.supportHandler.StudentTickets)
			support.POST("/tickets", hm.supportHandler.CreateTicket)
			support.GET("/tickets/:id/messages", hm.supportHandler.Messages)
			support.POST("/tickets/:id/messages", hm.supportHandler.SendMessage)
			support.POST("/tickets/:id/close", hm.supportHandler.Close)
			support.GET("/inbox", hm.authMiddleware.RequireRole(models.RoleSupport), hm.supportHandler.Inbox)
		}
	}

	// The websocket authenticates during its own handshake
	if hm.wsHandler != nil {
		router.GET("/ws", gin.WrapH(hm.wsHandler))
	}

	router.GET("/metrics", metrics.Handler())
}
