package model

// CreateUserRequest is used by admins and department heads to create accounts directly.
type CreateUserRequest struct {
	Email            string            `json:"email" binding:"required,email"`
	Password         string            `json:"password" binding:"required,password"`
	FullName         string            `json:"full_name" binding:"required,max=200"`
	Username         string            `json:"username" binding:"omitempty,min=3,max=50"`
	Phone            string            `json:"phone" binding:"omitempty,phone"`
	DateOfBirth      string            `json:"date_of_birth" binding:"omitempty,isodate"`
	Address          string            `json:"address" binding:"omitempty,max=500"`
	Role             Role              `json:"role" binding:"required"`
	SpecialtyID      string            `json:"specialty_id"`
	AdminPermissions *AdminPermissions `json:"admin_permissions"`
}

type CreateAdminRequest struct {
	Email            string            `json:"email" binding:"required,email"`
	Password         string            `json:"password" binding:"required,password"`
	FullName         string            `json:"full_name" binding:"required,max=200"`
	Username         string            `json:"username" binding:"omitempty,min=3,max=50"`
	Phone            string            `json:"phone" binding:"omitempty,phone"`
	AdminPermissions *AdminPermissions `json:"admin_permissions"`
}

func (r CreateAdminRequest) AsCreateUser() CreateUserRequest {
	return CreateUserRequest{
		Email:            r.Email,
		Password:         r.Password,
		FullName:         r.FullName,
		Username:         r.Username,
		Phone:            r.Phone,
		Role:             RoleAdmin,
		AdminPermissions: r.AdminPermissions,
	}
}

type UpdatePermissionsRequest struct {
	AdminID     string           `json:"admin_id" binding:"required"`
	Permissions AdminPermissions `json:"permissions"`
}

type PromoteRequest struct {
	DoctorID string `json:"doctor_id" binding:"required"`
}

type UserCreatedResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type AdminStats struct {
	TotalPatients          int64 `json:"total_patients"`
	TotalDoctors           int64 `json:"total_doctors"`
	TotalDepartmentHeads   int64 `json:"total_department_heads"`
	TotalAdmins            int64 `json:"total_admins"`
	TotalAppointments      int64 `json:"total_appointments"`
	PendingAppointments    int64 `json:"pending_appointments"`
	ConfirmedAppointments  int64 `json:"confirmed_appointments"`
	CompletedAppointments  int64 `json:"completed_appointments"`
	CancelledAppointments  int64 `json:"cancelled_appointments"`
	OnlineConsultations    int64 `json:"online_consultations"`
	InPersonConsultations  int64 `json:"in_person_consultations"`
	PendingDoctors         int64 `json:"pending_doctors"`
	ApprovedDoctors        int64 `json:"approved_doctors"`
	RejectedDoctors        int64 `json:"rejected_doctors"`
}

type DepartmentHeadStats struct {
	SpecialtyID           string `json:"specialty_id"`
	SpecialtyName         string `json:"specialty_name"`
	TotalDoctors          int64  `json:"total_doctors"`
	ApprovedDoctors       int64  `json:"approved_doctors"`
	PendingDoctors        int64  `json:"pending_doctors"`
	TotalPatients         int64  `json:"total_patients"`
	TotalAppointments     int64  `json:"total_appointments"`
	PendingAppointments   int64  `json:"pending_appointments"`
	ConfirmedAppointments int64  `json:"confirmed_appointments"`
	CompletedAppointments int64  `json:"completed_appointments"`
	CancelledAppointments int64  `json:"cancelled_appointments"`
}
