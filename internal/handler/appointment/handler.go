package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/appointment"
)

type Handler struct {
	svc *appointment.Service
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	appointments := r.Group("/appointments", authMw.Authenticate())
	{
		appointments.POST("", authMw.RequireRoles(model.RolePatient), h.CreateAppointment)
		appointments.GET("/my", authMw.RequireRoles(model.RolePatient, model.RoleDoctor, model.RoleDepartmentHead), h.ListMine)
		appointments.PUT("/:id/status", authMw.RequireRoles(model.RoleDoctor, model.RoleDepartmentHead), h.UpdateStatus)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.svc.Create(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apt)
}

func (h *Handler) ListMine(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	appointments, err := h.svc.ListMine(c.Request.Context(), user)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// UpdateStatus takes the new status from the body, or from ?status= for
// older clients.
func (h *Handler) UpdateStatus(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	var req model.UpdateAppointmentStatusRequest
	if status := c.Query("status"); status != "" && c.Request.ContentLength <= 0 {
		req.Status = model.AppointmentStatus(status)
	} else if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.svc.SetStatus(c.Request.Context(), user, c.Param("id"), req.Status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apt)
}
