package api

import (
	"github.com/gin-gonic/gin"

	"alivecheck-backend/internal/config"
	"alivecheck-backend/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Activity signals
		api.POST("/webhooks/checkin", h.Checkin)
		api.POST("/webhooks/subject-created", h.SubjectCreated)

		// Manual sweep triggers
		api.POST("/sweeps/overdue", h.RunOverdueSweep)
		api.POST("/sweeps/escalation", h.RunEscalationSweep)

		// Subjects
		api.GET("/subjects/:id", h.GetSubject)
		api.GET("/subjects/:id/alerts", h.ListSubjectAlerts)
		api.GET("/subjects/:id/contacts", h.ListSubjectContacts)
		api.POST("/subjects/:id/reminder", h.SendReminder)

		// Alerts
		api.GET("/alerts/:id", h.GetAlert)

		// Contacts
		api.POST("/contacts", h.CreateContact)

		// Live alert event feed
		api.GET("/ws/subjects/:id", h.WatchSubject)
	}
	r.GET("/health", h.Health)

	return r
}
