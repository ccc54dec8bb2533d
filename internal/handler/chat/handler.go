package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/chat"
)

type Handler struct {
	svc *chat.Service
}

func NewHandler(svc *chat.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the thread endpoints. Access is checked per
// appointment, so any authenticated role may reach them.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	chat := r.Group("/chat", authMw.Authenticate())
	{
		chat.POST("/send", h.Send)
		chat.GET("/:appointment_id", h.List)
	}
}

func (h *Handler) Send(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.SendMessageRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) List(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	msgs, err := h.svc.List(c.Request.Context(), user, c.Param("appointment_id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
