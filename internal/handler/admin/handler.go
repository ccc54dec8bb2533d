package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/admin"
	"github.com/jwalitptl/medischedule-api/internal/service/directory"
)

type Handler struct {
	svc       *admin.Service
	directory *directory.Service
}

func NewHandler(svc *admin.Service, directory *directory.Service) *Handler {
	return &Handler{svc: svc, directory: directory}
}

// RegisterRoutes mounts the admin console. create-user and delete-user check
// the permission matching the target role inside the service.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	admin := r.Group("/admin", authMw.Authenticate(), authMw.RequireRoles(model.RoleAdmin))
	{
		admin.GET("/doctors", authMw.RequirePermission(model.PermManageDoctors), h.ListDoctors)
		admin.PUT("/doctors/:id/approve", authMw.RequirePermission(model.PermManageDoctors), h.ApproveDoctor)
		admin.GET("/patients", authMw.RequirePermission(model.PermManagePatients), h.ListPatients)
		admin.GET("/appointments", authMw.RequirePermission(model.PermManageAppointments), h.ListAppointments)
		admin.GET("/stats", authMw.RequirePermission(model.PermViewStats), h.Stats)

		admin.POST("/create-admin", authMw.RequirePermission(model.PermCreateAdmins), h.CreateAdmin)
		admin.GET("/admins", authMw.RequirePermission(model.PermCreateAdmins), h.ListAdmins)
		admin.PUT("/update-permissions", authMw.RequirePermission(model.PermCreateAdmins), h.UpdatePermissions)
		admin.DELETE("/delete-admin/:id", authMw.RequirePermission(model.PermCreateAdmins), h.DeleteAdmin)

		admin.POST("/create-user", h.CreateUser)
		admin.DELETE("/delete-user/:id", h.DeleteUser)
	}
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.svc.ListDoctors(c.Request.Context(), model.DoctorStatus(c.Query("status")))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctors)
}

func (h *Handler) ApproveDoctor(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	status, ok := handler.BindApproval(c)
	if !ok {
		return
	}

	doctor, err := h.directory.ApproveDoctor(c.Request.Context(), user, c.Param("id"), status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.svc.ListPatients(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	appointments, err := h.svc.ListAppointments(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) CreateAdmin(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.CreateAdminRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.svc.CreateAdmin(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.UserCreatedResponse{Message: "Admin created successfully", User: created})
}

func (h *Handler) ListAdmins(c *gin.Context) {
	admins, err := h.svc.ListAdmins(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, admins)
}

func (h *Handler) UpdatePermissions(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.UpdatePermissionsRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.svc.UpdatePermissions(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteAdmin(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteAdmin(c.Request.Context(), user, c.Param("id")); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Admin deleted successfully"})
}

func (h *Handler) CreateUser(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.CreateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.svc.CreateUser(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.UserCreatedResponse{Message: "User created successfully", User: created})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), user, c.Param("id")); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "User deleted successfully"})
}
