package model

import "time"

type SaveTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type VerifyTokenResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// TokenInfo describes the stored credential without revealing it.
type TokenInfo struct {
	Provider  string    `json:"provider"`
	Masked    string    `json:"masked"`
	KeyID     string    `json:"keyId"`
	CreatedAt time.Time `json:"createdAt"`
}
