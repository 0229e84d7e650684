package auth

import "github.com/lastcall-app/lastcall-backend/internal/profiles"

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ValidateEmailRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// LoginResponse is returned by OTP verification and token refresh.
type LoginResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	ExpiresIn    int                 `json:"expires_in"`
	User         profiles.ProfileDTO `json:"user"`
	NewAccount   bool                `json:"new_account,omitempty"`
}

type EmailValidation struct {
	Email  string `json:"email"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
