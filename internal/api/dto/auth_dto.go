package dto

import "time"

// SignInRequest payload for password sign-in. Accepted as JSON or form.
type SignInRequest struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	RedirectTo string `json:"redirect_to" form:"redirectTo"`
}

// SignUpRequest payload for new accounts.
type SignUpRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	FullName string `json:"full_name" form:"full_name"`
	Company  string `json:"company" form:"company"`
	Plan     string `json:"plan" form:"plan"`
}

// AuthResponse tells the browser where to go after an auth action.
type AuthResponse struct {
	Location  string     `json:"location"`
	Role      string     `json:"role,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AuthPageResponse describes the sign-in and sign-up pages.
type AuthPageResponse struct {
	Page       string         `json:"page"`
	RedirectTo string         `json:"redirect_to,omitempty"`
	Registered bool           `json:"registered,omitempty"`
	Plans      []PlanResponse `json:"plans,omitempty"`
}
