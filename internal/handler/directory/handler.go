package directory

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/directory"
)

type Handler struct {
	svc *directory.Service
}

func NewHandler(svc *directory.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	specialties := r.Group("/specialties")
	{
		specialties.GET("", h.ListSpecialties)
		specialties.POST("", authMw.Authenticate(), authMw.RequirePermission(model.PermManageSpecialties), h.CreateSpecialty)
	}

	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)

		own := doctors.Group("", authMw.Authenticate(), authMw.RequireRoles(model.RoleDoctor, model.RoleDepartmentHead))
		own.PUT("/profile", h.UpdateProfile)
		own.PUT("/schedule", h.UpdateSchedule)
	}
}

func (h *Handler) ListSpecialties(c *gin.Context) {
	specialties, err := h.svc.ListSpecialties(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, specialties)
}

func (h *Handler) CreateSpecialty(c *gin.Context) {
	var req model.CreateSpecialtyRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	specialty, err := h.svc.CreateSpecialty(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, specialty)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.svc.ListApprovedDoctors(c.Request.Context(), c.Query("specialty_id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	doctor, err := h.svc.GetDoctor(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var patch model.DoctorProfilePatch
	if !handler.BindJSON(c, &patch) {
		return
	}

	doctor, err := h.svc.UpdateOwnProfile(c.Request.Context(), user, &patch)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.ScheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	doctor, err := h.svc.UpdateOwnSchedule(c.Request.Context(), user, req.AvailableSlots)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}
