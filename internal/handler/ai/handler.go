package ai

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/ai"
	"github.com/jwalitptl/medischedule-api/internal/service/chat"
)

type Handler struct {
	svc  *ai.Service
	chat *chat.Service
}

func NewHandler(svc *ai.Service, chat *chat.Service) *Handler {
	return &Handler{svc: svc, chat: chat}
}

// RegisterRoutes mounts the assistant endpoints behind limiter.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware, limiter gin.HandlerFunc) {
	ai := r.Group("/ai", limiter, authMw.Authenticate())
	{
		patient := authMw.RequireRoles(model.RolePatient)
		ai.POST("/chat", patient, h.Chat)
		ai.POST("/recommend-doctor", patient, h.RecommendDoctor)
		ai.GET("/chat-history", patient, h.ChatHistory)
		ai.POST("/summarize-conversation/:appointment_id", h.Summarize)
	}
}

func (h *Handler) Chat(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.AIChatRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Chat(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RecommendDoctor(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.RecommendDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	rec, err := h.svc.RecommendDoctor(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ChatHistory(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	history, err := h.svc.History(c.Request.Context(), user, c.Query("session_id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Summarize is open to both participants of the appointment.
func (h *Handler) Summarize(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	summary, err := h.chat.Summarize(c.Request.Context(), user, c.Param("appointment_id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
