package model

// Role is the account kind carried by every user.
type Role string

const (
	RolePatient        Role = "patient"
	RoleDoctor         Role = "doctor"
	RoleDepartmentHead Role = "department_head"
	RoleAdmin          Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleDepartmentHead, RoleAdmin:
		return true
	}
	return false
}

// HasDoctorProfile reports whether accounts of this role own a DoctorProfile.
func (r Role) HasDoctorProfile() bool {
	return r == RoleDoctor || r == RoleDepartmentHead
}

// Permission names a single AdminPermissions flag.
type Permission string

const (
	PermManageDoctors      Permission = "can_manage_doctors"
	PermManagePatients     Permission = "can_manage_patients"
	PermManageAppointments Permission = "can_manage_appointments"
	PermViewStats          Permission = "can_view_stats"
	PermManageSpecialties  Permission = "can_manage_specialties"
	PermCreateAdmins       Permission = "can_create_admins"
)

// AdminPermissions are the independently toggleable flags of an admin or
// department head account.
type AdminPermissions struct {
	CanManageDoctors      bool `json:"can_manage_doctors"`
	CanManagePatients     bool `json:"can_manage_patients"`
	CanManageAppointments bool `json:"can_manage_appointments"`
	CanViewStats          bool `json:"can_view_stats"`
	CanManageSpecialties  bool `json:"can_manage_specialties"`
	CanCreateAdmins       bool `json:"can_create_admins"`
}

// FullAdminPermissions is granted to the root admin.
func FullAdminPermissions() AdminPermissions {
	return AdminPermissions{
		CanManageDoctors:      true,
		CanManagePatients:     true,
		CanManageAppointments: true,
		CanViewStats:          true,
		CanManageSpecialties:  true,
		CanCreateAdmins:       true,
	}
}

// DefaultAdminPermissions applies to admins created without an explicit set.
func DefaultAdminPermissions() AdminPermissions {
	p := FullAdminPermissions()
	p.CanCreateAdmins = false
	return p
}

// DepartmentHeadPermissions applies to department heads created without an explicit set.
func DepartmentHeadPermissions() AdminPermissions {
	return AdminPermissions{
		CanManageDoctors:  true,
		CanManagePatients: true,
		CanViewStats:      true,
	}
}

func (p AdminPermissions) Has(perm Permission) bool {
	switch perm {
	case PermManageDoctors:
		return p.CanManageDoctors
	case PermManagePatients:
		return p.CanManagePatients
	case PermManageAppointments:
		return p.CanManageAppointments
	case PermViewStats:
		return p.CanViewStats
	case PermManageSpecialties:
		return p.CanManageSpecialties
	case PermCreateAdmins:
		return p.CanCreateAdmins
	}
	return false
}
