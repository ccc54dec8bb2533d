package model

import "time"

// User is an account of any role.
type User struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	Username         string            `json:"username,omitempty"`
	PasswordHash     string            `json:"-"`
	FullName         string            `json:"full_name"`
	Phone            string            `json:"phone,omitempty"`
	DateOfBirth      string            `json:"date_of_birth,omitempty"`
	Address          string            `json:"address,omitempty"`
	Role             Role              `json:"role"`
	AdminPermissions *AdminPermissions `json:"admin_permissions,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Permissions resolves the effective permission set. Admin documents without
// an explicit set predate permissions and are treated as root admins.
func (u *User) Permissions() AdminPermissions {
	if u.AdminPermissions != nil {
		return *u.AdminPermissions
	}
	switch u.Role {
	case RoleAdmin:
		return FullAdminPermissions()
	case RoleDepartmentHead:
		return DepartmentHeadPermissions()
	}
	return AdminPermissions{}
}

// UserFilter narrows user listings. Nil slices match everything; a non-nil
// empty IDs matches nothing.
type UserFilter struct {
	Roles []Role
	IDs   []string
}
