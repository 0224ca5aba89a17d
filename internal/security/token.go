package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	defaultKeyID  = "v1"
	hkdfInfo      = "billsync api token encryption"
	derivedKeyLen = 32
)

// TokenCipher encrypts the remote API credential at rest.
type TokenCipher struct {
	aead  cipher.AEAD
	keyID string
}

// NewTokenCipher accepts a raw 16/24/32 byte AES key (raw, hex or base64) or
// any other non-empty passphrase, which is stretched to a 32 byte key with
// HKDF-SHA256.
func NewTokenCipher(secret, keyID string) (*TokenCipher, error) {
	if secret == "" {
		return nil, errors.New("token encryption secret is required")
	}

	key, err := parseAESKey(secret)
	if err != nil {
		key, err = deriveKey(secret)
		if err != nil {
			return nil, err
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	if keyID == "" {
		keyID = defaultKeyID
	}
	return &TokenCipher{aead: aead, keyID: keyID}, nil
}

// LoadOrCreateKeyFile returns the secret stored at path, generating a random
// one with 0600 permissions on first use.
func LoadOrCreateKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("key file %s is empty", path)
		}
		return secret, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}

	secret, err := GenerateToken(32)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	return secret, nil
}

func (c *TokenCipher) KeyID() string {
	return c.keyID
}

// Encrypt encrypts token and returns base64 ciphertext, base64 nonce and key ID.
func (c *TokenCipher) Encrypt(token string) (ciphertext, nonce, keyID string, err error) {
	nonceBytes := make([]byte, c.aead.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonceBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertextBytes := c.aead.Seal(nil, nonceBytes, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(ciphertextBytes),
		base64.StdEncoding.EncodeToString(nonceBytes),
		c.keyID,
		nil
}

// Decrypt decrypts token from base64 ciphertext and nonce.
func (c *TokenCipher) Decrypt(ciphertext, nonce string) (string, error) {
	ciphertextBytes, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("failed to decode nonce: %w", err)
	}
	plain, err := c.aead.Open(nil, nonceBytes, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return string(plain), nil
}

// HashToken hashes token with SHA-256 and returns hex string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares a presented token against a stored hash in constant time.
func EqualHash(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}

// MaskToken keeps the first and last four characters of token.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// GenerateToken creates a random token encoded as hex.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func deriveKey(passphrase string) ([]byte, error) {
	key := make([]byte, derivedKeyLen)
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

func parseAESKey(raw string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && validAESKeyLen(len(decoded)) {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(raw); err == nil && validAESKeyLen(len(decoded)) {
		return decoded, nil
	}
	if validAESKeyLen(len(raw)) {
		return []byte(raw), nil
	}
	return nil, errors.New("invalid key length: must be 16/24/32 bytes (raw/hex/base64)")
}

func validAESKeyLen(n int) bool {
	return n == 16 || n == 24 || n == 32
}
