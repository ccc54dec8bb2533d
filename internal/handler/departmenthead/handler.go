package departmenthead

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/admin"
	"github.com/jwalitptl/medischedule-api/internal/service/directory"
	"github.com/jwalitptl/medischedule-api/internal/service/rbac"
)

type Handler struct {
	svc       *admin.Service
	directory *directory.Service
}

func NewHandler(svc *admin.Service, directory *directory.Service) *Handler {
	return &Handler{svc: svc, directory: directory}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	dh := r.Group("/department-head", authMw.Authenticate())

	manageDoctors := rbac.DepartmentHeadWith(model.PermManageDoctors)
	managePatients := rbac.DepartmentHeadWith(model.PermManagePatients)
	{
		dh.POST("/promote", authMw.Require(rbac.Requirement{
			Roles:      []model.Role{model.RoleAdmin, model.RoleDepartmentHead},
			Permission: model.PermManageDoctors,
		}), h.Promote)
		dh.POST("/demote/:id", authMw.RequirePermission(model.PermManageDoctors), h.Demote)

		dh.POST("/add-doctor", authMw.Require(manageDoctors), h.AddDoctor)
		dh.GET("/my-doctors", authMw.Require(manageDoctors), h.MyDoctors)
		dh.GET("/doctors", authMw.Require(manageDoctors), h.Doctors)
		dh.PUT("/approve-doctor/:id", authMw.Require(manageDoctors), h.ApproveDoctor)
		dh.DELETE("/remove-doctor/:id", authMw.Require(manageDoctors), h.RemoveDoctor)

		dh.GET("/patients", authMw.Require(managePatients), h.Patients)
		dh.DELETE("/remove-patient/:id", authMw.Require(managePatients), h.RemovePatient)

		dh.POST("/create-user", authMw.RequireRoles(model.RoleDepartmentHead), h.CreateUser)
		dh.GET("/stats", authMw.Require(rbac.DepartmentHeadWith(model.PermViewStats)), h.Stats)
	}
}

func (h *Handler) Promote(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.PromoteRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	promoted, err := h.svc.Promote(c.Request.Context(), user, req.DoctorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.UserCreatedResponse{Message: "Doctor promoted to department head", User: promoted})
}

func (h *Handler) Demote(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	demoted, err := h.svc.Demote(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.UserCreatedResponse{Message: "Department head demoted to doctor", User: demoted})
}

func (h *Handler) AddDoctor(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	var req model.CreateUserRequest
	req.Role = model.RoleDoctor
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.svc.AddDoctor(c.Request.Context(), user, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.UserCreatedResponse{Message: "Doctor added successfully", User: created})
}

func (h *Handler) MyDoctors(c *gin.Context) {
	h.listDoctors(c, true)
}

func (h *Handler) Doctors(c *gin.Context) {
	h.listDoctors(c, false)
}

func (h *Handler) listDoctors(c *gin.Context, approvedOnly bool) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	doctors, err := h.svc.DepartmentDoctors(c.Request.Context(), user, approvedOnly)
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

func (h *Handler) RemoveDoctor(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveDoctor(c.Request.Context(), user, c.Param("id")); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Doctor removed successfully"})
}

func (h *Handler) Patients(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	patients, err := h.svc.DepartmentPatients(c.Request.Context(), user)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) RemovePatient(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}
	if err := h.svc.RemovePatient(c.Request.Context(), user, c.Param("id")); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Patient removed successfully"})
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

func (h *Handler) Stats(c *gin.Context) {
	user, ok := handler.MustUser(c)
	if !ok {
		return
	}

	stats, err := h.svc.DepartmentStats(c.Request.Context(), user)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
