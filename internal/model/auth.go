package model

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,password"`
	FullName    string `json:"full_name" binding:"required,max=200"`
	Username    string `json:"username" binding:"omitempty,min=3,max=50"`
	Phone       string `json:"phone" binding:"omitempty,phone"`
	DateOfBirth string `json:"date_of_birth" binding:"omitempty,isodate"`
	Address     string `json:"address" binding:"omitempty,max=500"`
	Role        Role   `json:"role"`
	SpecialtyID string `json:"specialty_id"`
}

// LoginRequest accepts either an email or a username as identifier.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

func (r LoginRequest) Identifier() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

type AuthResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}
