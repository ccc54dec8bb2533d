package model

import "time"

type DoctorStatus string

const (
	DoctorStatusPending  DoctorStatus = "pending"
	DoctorStatusApproved DoctorStatus = "approved"
	DoctorStatusRejected DoctorStatus = "rejected"
)

func (s DoctorStatus) Valid() bool {
	switch s {
	case DoctorStatusPending, DoctorStatusApproved, DoctorStatusRejected:
		return true
	}
	return false
}

type TimeSlot struct {
	Day       string `json:"day" binding:"required"`
	StartTime string `json:"start_time" binding:"required,clocktime"`
	EndTime   string `json:"end_time" binding:"required,clocktime"`
}

// DoctorProfile is the 1:1 companion of a doctor or department head account.
type DoctorProfile struct {
	UserID           string       `json:"user_id"`
	SpecialtyID      string       `json:"specialty_id"`
	Bio              string       `json:"bio,omitempty"`
	ExperienceYears  *int         `json:"experience_years,omitempty"`
	ConsultationFee  *float64     `json:"consultation_fee,omitempty"`
	AvailableSlots   []TimeSlot   `json:"available_slots"`
	Status           DoctorStatus `json:"status"`
	IsDepartmentHead bool         `json:"is_department_head"`
	CreatedAt        time.Time    `json:"created_at"`
}

// DoctorView is a profile enriched at read time with account and specialty names.
type DoctorView struct {
	DoctorProfile
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	SpecialtyName string `json:"specialty_name"`
}

// DoctorFilter narrows profile listings. Empty fields match everything.
type DoctorFilter struct {
	SpecialtyID string
	Status      DoctorStatus
}

// DoctorProfilePatch carries only the fields a doctor may edit; nil fields are left untouched.
type DoctorProfilePatch struct {
	SpecialtyID     *string  `json:"specialty_id"`
	Bio             *string  `json:"bio" binding:"omitempty,max=2000"`
	ExperienceYears *int     `json:"experience_years" binding:"omitempty,min=0,max=80"`
	ConsultationFee *float64 `json:"consultation_fee" binding:"omitempty,min=0"`
}

func (p DoctorProfilePatch) Empty() bool {
	return p.SpecialtyID == nil && p.Bio == nil && p.ExperienceYears == nil && p.ConsultationFee == nil
}

type ScheduleRequest struct {
	AvailableSlots []TimeSlot `json:"available_slots" binding:"dive"`
}

type ApproveDoctorRequest struct {
	Status DoctorStatus `json:"status" form:"status"`
}
