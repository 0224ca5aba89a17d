package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fslongjin/billsync/pkg/model"
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (bool, string, error)
}

type TokenRepository interface {
	Save(ctx context.Context, token string) error
	Info(ctx context.Context) (*model.TokenInfo, error)
	Delete(ctx context.Context) (bool, error)
}

// TokenService manages the credential used against the remote billing API.
type TokenService struct {
	verifier TokenVerifier
	repo     TokenRepository
	logger   *slog.Logger
}

func NewTokenService(verifier TokenVerifier, repo TokenRepository) *TokenService {
	return &TokenService{
		verifier: verifier,
		repo:     repo,
		logger:   slog.Default().With("component", "token"),
	}
}

// Verify probes the remote API with token without storing it.
func (s *TokenService) Verify(ctx context.Context, token string) (*model.VerifyTokenResponse, error) {
	token = strings.TrimSpace(token)
	valid, msg, err := s.verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &model.VerifyTokenResponse{Valid: valid, Message: msg}, nil
}

// Save stores token after it passes verification.
func (s *TokenService) Save(ctx context.Context, token string) (*model.VerifyTokenResponse, error) {
	token = strings.TrimSpace(token)
	valid, msg, err := s.verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !valid {
		return &model.VerifyTokenResponse{Valid: false, Message: msg}, nil
	}
	if err := s.repo.Save(ctx, token); err != nil {
		return nil, err
	}
	s.logger.Info("api token saved")
	return &model.VerifyTokenResponse{Valid: true, Message: "token saved"}, nil
}

func (s *TokenService) Info(ctx context.Context) (*model.TokenInfo, error) {
	return s.repo.Info(ctx)
}

func (s *TokenService) Delete(ctx context.Context) (bool, error) {
	deleted, err := s.repo.Delete(ctx)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("api token deleted")
	}
	return deleted, nil
}
