package billsync

import (
	"context"
	"net/http"
)

// TokenService manages the remote billing API credential stored by the server.
type TokenService struct {
	client *Client
}

type tokenRequest struct {
	Token string `json:"token"`
}

// Verify checks token against the remote API without storing it.
func (t *TokenService) Verify(ctx context.Context, token string) (*VerifyTokenResponse, error) {
	var result VerifyTokenResponse
	if err := t.client.doJSON(ctx, http.MethodPost, t.client.buildPath("token", "verify"), tokenRequest{Token: token}, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// Save verifies and stores token. A rejected token yields a bad request error.
func (t *TokenService) Save(ctx context.Context, token string) error {
	return t.client.doJSON(ctx, http.MethodPost, t.client.buildPath("token"), tokenRequest{Token: token}, nil, nil)
}

// Get describes the stored credential. It returns ErrNotFound when none is saved.
func (t *TokenService) Get(ctx context.Context) (*TokenInfo, error) {
	var result TokenInfo
	if err := t.client.doJSON(ctx, http.MethodGet, t.client.buildPath("token"), nil, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *TokenService) Delete(ctx context.Context) error {
	return t.client.doJSON(ctx, http.MethodDelete, t.client.buildPath("token"), nil, nil, nil)
}
