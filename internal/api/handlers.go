package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"alivecheck-backend/internal/db"
	"alivecheck-backend/internal/engine"
	"alivecheck-backend/internal/events"
	"alivecheck-backend/internal/logging"
	"alivecheck-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	db     *db.DB
	engine *engine.Engine
	hub    *events.Hub
	logger *logging.Logger
}

func NewHandler(db *db.DB, eng *engine.Engine, hub *events.Hub, logger *logging.Logger) *Handler {
	return &Handler{db: db, engine: eng, hub: hub, logger: logger}
}

type checkinRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
}

// Checkin records a proof-of-life signal for a subject.
func (h *Handler) Checkin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid checkin request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.engine.Checkin(c.Request.Context(), req.SubjectID)
	if err != nil {
		if errors.Is(err, engine.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subject not found"})
			return
		}
		h.logger.Errorf("Checkin for subject %s failed: %v", req.SubjectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record checkin"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type subjectCreatedRequest struct {
	SubjectID   string `json:"subject_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Language    string `json:"language"`
	FCMToken    string `json:"fcm_token"`
}

// SubjectCreated registers a new subject and applies the default policy and
// first deadline. Re-delivery of the same event is harmless.
func (h *Handler) SubjectCreated(c *gin.Context) {
	var req subjectCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid subject-created request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	subj := models.Subject{
		ID:          req.SubjectID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Language:    req.Language,
		FCMToken:    req.FCMToken,
	}
	if err := h.db.CreateSubject(c.Request.Context(), subj); err != nil {
		h.logger.Errorf("Failed to create subject %s: %v", req.SubjectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subject"})
		return
	}

	result, err := h.engine.InitializeSubject(c.Request.Context(), req.SubjectID)
	if err != nil {
		h.logger.Errorf("Failed to initialize subject %s: %v", req.SubjectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize subject"})
		return
	}
	c.JSON(http.StatusCreated, result)
}

// RunOverdueSweep triggers one detection pass outside the scheduler cadence.
func (h *Handler) RunOverdueSweep(c *gin.Context) {
	report := h.engine.RunOverdueSweep(c.Request.Context(), time.Now())
	c.JSON(http.StatusOK, report)
}

// RunEscalationSweep triggers one escalation pass outside the scheduler
// cadence.
func (h *Handler) RunEscalationSweep(c *gin.Context) {
	report := h.engine.RunEscalationSweep(c.Request.Context(), time.Now())
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetSubject(c *gin.Context) {
	id := c.Param("id")
	subj, err := h.db.GetSubject(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subject not found"})
			return
		}
		h.logger.Errorf("Failed to get subject %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subject"})
		return
	}
	c.JSON(http.StatusOK, subj)
}

func (h *Handler) ListSubjectAlerts(c *gin.Context) {
	id := c.Param("id")
	limit, _ := strconv.Atoi(c.Query("limit"))

	alerts, err := h.db.ListAlertsBySubject(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Errorf("Failed to list alerts for subject %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) ListSubjectContacts(c *gin.Context) {
	id := c.Param("id")
	ctype := models.ContactType(c.Query("type"))
	if !ctype.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing contact type"})
		return
	}

	contacts, err := h.db.ListContacts(c.Request.Context(), id, ctype)
	if err != nil {
		h.logger.Errorf("Failed to list contacts for subject %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contacts"})
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// SendReminder pushes a check-in reminder to the subject's own device.
func (h *Handler) SendReminder(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.SendCheckinReminder(c.Request.Context(), id); err != nil {
		if errors.Is(err, engine.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subject not found"})
			return
		}
		h.logger.Errorf("Failed to send reminder to subject %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send reminder"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *Handler) GetAlert(c *gin.Context) {
	id := c.Param("id")
	alert, err := h.db.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Errorf("Failed to get alert %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) CreateContact(c *gin.Context) {
	var contact models.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		h.logger.Errorf("Invalid request body for contact: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if contact.SubjectID == "" || !contact.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id and a valid type are required"})
		return
	}

	created, err := h.db.CreateContact(c.Request.Context(), contact)
	if err != nil {
		h.logger.Errorf("Failed to create contact: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}

	h.logger.Infof("Created contact %s for subject %s", created.ID, created.SubjectID)
	c.JSON(http.StatusCreated, created)
}

// WatchSubject upgrades the connection and streams alert lifecycle events
// for one subject until the client disconnects.
func (h *Handler) WatchSubject(c *gin.Context) {
	id := c.Param("id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for subject %s: %v", id, err)
		return
	}

	h.hub.AddConnection(id, conn)
	defer func() {
		h.hub.RemoveConnection(id, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
