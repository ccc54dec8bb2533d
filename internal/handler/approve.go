package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/model"
)

// BindApproval reads the requested doctor status from ?status= or a JSON
// body. An empty request means approved.
func BindApproval(c *gin.Context) (model.DoctorStatus, bool) {
	if status := c.Query("status"); status != "" {
		return model.DoctorStatus(status), true
	}
	var req model.ApproveDoctorRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &req) {
		return "", false
	}
	if req.Status == "" {
		return model.DoctorStatusApproved, true
	}
	return req.Status, true
}
