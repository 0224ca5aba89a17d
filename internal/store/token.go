package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fslongjin/billsync/internal/security"
	"github.com/fslongjin/billsync/pkg/model"
)

const TokenProvider = "zhipu"

// ErrNoToken is returned when no remote API credential has been saved.
var ErrNoToken = errors.New("api token not configured")

// TokenStore keeps the remote API credential encrypted at rest.
type TokenStore struct {
	db     *sql.DB
	cipher *security.TokenCipher
}

func NewTokenStore(cipher *security.TokenCipher) *TokenStore {
	return &TokenStore{db: DB, cipher: cipher}
}

// Save replaces the stored credential.
func (s *TokenStore) Save(ctx context.Context, token string) error {
	ciphertext, nonce, keyID, err := s.cipher.Encrypt(token)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM api_tokens WHERE provider = ?`, TokenProvider); err != nil {
		return fmt.Errorf("failed to clear api token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO api_tokens (provider, token_ciphertext, token_nonce, token_key_id, token_hash, masked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, TokenProvider, ciphertext, nonce, keyID, security.HashToken(token), security.MaskToken(token), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save api token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit api token: %w", err)
	}
	return nil
}

// CurrentToken decrypts the stored credential. It returns ErrNoToken when none is saved.
func (s *TokenStore) CurrentToken(ctx context.Context) (string, error) {
	var ciphertext, nonce string
	err := s.db.QueryRowContext(ctx, `
		SELECT token_ciphertext, token_nonce FROM api_tokens
		WHERE provider = ? ORDER BY id DESC LIMIT 1
	`, TokenProvider).Scan(&ciphertext, &nonce)
	if err == sql.ErrNoRows {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to load api token: %w", err)
	}
	return s.cipher.Decrypt(ciphertext, nonce)
}

// Info describes the stored credential, or returns nil when none is saved.
func (s *TokenStore) Info(ctx context.Context) (*model.TokenInfo, error) {
	info := &model.TokenInfo{}
	err := s.db.QueryRowContext(ctx, `
		SELECT provider, masked, token_key_id, created_at FROM api_tokens
		WHERE provider = ? ORDER BY id DESC LIMIT 1
	`, TokenProvider).Scan(&info.Provider, &info.Masked, &info.KeyID, &info.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api token info: %w", err)
	}
	return info, nil
}

// Delete removes the stored credential. It reports whether one existed.
func (s *TokenStore) Delete(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE provider = ?`, TokenProvider)
	if err != nil {
		return false, fmt.Errorf("failed to delete api token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n > 0, nil
}
