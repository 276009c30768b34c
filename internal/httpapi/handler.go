// Package httpapi exposes the attendance service as a JSON API. Every
// response is an envelope with a "status" field of "success" or "error".
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/export"
	"classtrack/internal/metrics"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Handler holds the dependencies for the API endpoints.
type Handler struct {
	svc   *attendance.Service
	q     queue.Queue
	cfg   config.App
	db    *store.DB
	redis *store.Redis
}

// New creates a handler. redis may be nil when running without it.
func New(svc *attendance.Service, q queue.Queue, cfg config.App, db *store.DB, redis *store.Redis) *Handler {
	return &Handler{svc: svc, q: q, cfg: cfg, db: db, redis: redis}
}

// Register mounts all routes under /api. Login and health stay open; the
// rest requires a bearer token only when AUTH_REQUIRED is set.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/login", h.Login)
	api.GET("/health", h.Health)

	protected := api.Group("")
	if h.cfg.AuthRequired {
		protected.Use(auth.RequireUser(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	}
	protected.POST("/generate_qr", h.GenerateQR)
	protected.POST("/mark_attendance", h.MarkAttendance)
	protected.GET("/student_attendance/:student_id", h.StudentAttendance)
	protected.GET("/professor_attendance/:professor_id", h.ProfessorAttendance)
	protected.GET("/professor_attendance/:professor_id/export", h.ExportProfessorAttendance)
	protected.GET("/profile/:user_id", h.Profile)
}

// ---------- Login ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and returns the user's identity fields plus a
// signed access token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	user, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	metrics.Logins.WithLabelValues("success").Inc()

	resp := gin.H{"status": "success", "user": user}
	if h.cfg.JWTSigningKey != "" {
		token, exp, err := auth.Issue(user.ID, user.Role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
		if err != nil {
			log.Printf("token issue failed for %s: %v", req.Email, err)
		} else {
			resp["token"] = token
			resp["expires_at"] = exp.Unix()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ---------- Sessions ----------

type generateQRRequest struct {
	SessionDate string `json:"session_date" binding:"required"`
	CourseName  string `json:"course_name" binding:"required"`
	CourseType  string `json:"course_type" binding:"required"`
	ProfessorID int64  `json:"professor_id" binding:"required"`
}

// GenerateQR creates a session and returns its QR token.
func (h *Handler) GenerateQR(c *gin.Context) {
	var req generateQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	id, token, err := h.svc.GenerateQR(c.Request.Context(), req.SessionDate, req.CourseName, req.CourseType, req.ProfessorID)
	if err != nil {
		if errors.Is(err, attendance.ErrDuplicateSession) {
			c.JSON(http.StatusConflict, gin.H{"status": "error", "message": "Session already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	metrics.SessionsCreated.Inc()

	c.JSON(http.StatusOK, gin.H{"status": "success", "qr_code_data": token, "session_id": id})
}

// ---------- Attendance ----------

type markAttendanceRequest struct {
	QRCodeData string `json:"qr_code_data" binding:"required"`
	StudentID  int64  `json:"student_id" binding:"required"`
}

// MarkAttendance records a student as present at the session the QR token
// identifies, then publishes an event for the worker.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	session, err := h.svc.MarkAttendance(c.Request.Context(), req.QRCodeData, req.StudentID)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrUnknownToken):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid QR Code"})
		case errors.Is(err, attendance.ErrDuplicateAttendance):
			c.JSON(http.StatusConflict, gin.H{"status": "error", "message": "Already marked"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		}
		return
	}
	metrics.AttendanceMarked.Inc()

	if h.q != nil {
		evt := attendance.MarkEvent{SessionID: session.ID, StudentID: req.StudentID, CourseName: session.CourseName}
		if err := h.q.Publish(c.Request.Context(), queue.Message{Type: "mark", Body: encodeEvent(evt)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Attendance marked"})
}

// StudentAttendance lists a student's attendance history. An empty history
// is a success with an empty list, not an error.
func (h *Handler) StudentAttendance(c *gin.Context) {
	studentID, ok := pathID(c, "student_id")
	if !ok {
		return
	}
	entries, err := h.svc.StudentHistory(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "attendance": entries})
}

// ProfessorAttendance lists per-session roll-ups for a professor's sessions.
func (h *Handler) ProfessorAttendance(c *gin.Context) {
	professorID, ok := pathID(c, "professor_id")
	if !ok {
		return
	}
	summaries, err := h.svc.ProfessorSummary(c.Request.Context(), professorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "sessions": summaries})
}

// ExportProfessorAttendance streams the professor summary as an XLSX file.
func (h *Handler) ExportProfessorAttendance(c *gin.Context) {
	professorID, ok := pathID(c, "professor_id")
	if !ok {
		return
	}
	summaries, err := h.svc.ProfessorSummary(c.Request.Context(), professorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	f, err := export.ProfessorSummary(summaries)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_%d.xlsx"`, professorID))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("xlsx write failed: %v", err)
	}
}

// ---------- Profile ----------

// Profile returns a user's identity fields and role-specific stats.
func (h *Handler) Profile(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	user, stats, err := h.svc.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, attendance.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"user": gin.H{
			"full_name": user.FullName,
			"email":     user.Email,
			"user_id":   user.UserID,
			"role":      user.Role,
		},
		"stats": stats,
	})
}

// ---------- Health ----------

// Health reports service liveness with component booleans.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"db":     h.db.Healthy(c.Request.Context()),
		"redis":  h.redis.Healthy(c.Request.Context()),
	})
}

func encodeEvent(evt attendance.MarkEvent) []byte {
	b, _ := json.Marshal(evt)
	return b
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid " + name})
		return 0, false
	}
	return id, true
}
