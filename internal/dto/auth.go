package dto

import (
	"time"

	"github.com/noah-isme/qr-attend-api/internal/models"
)

// LoginRequest holds credentials for authenticating an owner account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token and user info.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   int64           `json:"expires_in"`
	User        models.UserInfo `json:"user"`
	IssuedAt    time.Time       `json:"issued_at"`
}
