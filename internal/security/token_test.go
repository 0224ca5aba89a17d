package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTokenCipherEncryptDecryptRoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher("0123456789abcdef0123456789abcdef", "k1")
	if err != nil {
		t.Fatalf("NewTokenCipher() error = %v", err)
	}

	plain := "token-abc-123"
	ciphertext, nonce, keyID, err := cipher.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext == "" || nonce == "" {
		t.Fatalf("Encrypt() returned empty ciphertext/nonce")
	}
	if strings.Contains(ciphertext, plain) {
		t.Fatalf("ciphertext should not contain plaintext")
	}
	if keyID != "k1" {
		t.Fatalf("unexpected keyID: got %q want %q", keyID, "k1")
	}

	decrypted, err := cipher.Decrypt(ciphertext, nonce)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted != plain {
		t.Fatalf("Decrypt() mismatch: got %q want %q", decrypted, plain)
	}
}

func TestNewTokenCipherRequiresSecret(t *testing.T) {
	if _, err := NewTokenCipher("", ""); err == nil {
		t.Fatalf("expected error when secret is missing")
	}
}

func TestPassphraseDerivesStableKey(t *testing.T) {
	a, err := NewTokenCipher("correct horse battery staple", "")
	if err != nil {
		t.Fatalf("NewTokenCipher() error = %v", err)
	}
	b, err := NewTokenCipher("correct horse battery staple", "")
	if err != nil {
		t.Fatalf("NewTokenCipher() error = %v", err)
	}
	if a.KeyID() != defaultKeyID {
		t.Fatalf("expected default key id, got %q", a.KeyID())
	}

	ciphertext, nonce, _, err := a.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	plain, err := b.Decrypt(ciphertext, nonce)
	if err != nil || plain != "secret" {
		t.Fatalf("expected second cipher to decrypt, got %q err=%v", plain, err)
	}

	other, _ := NewTokenCipher("another passphrase", "")
	if _, err := other.Decrypt(ciphertext, nonce); err == nil {
		t.Fatalf("expected decrypt with different passphrase to fail")
	}
}

func TestLoadOrCreateKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "token.key")

	first, err := LoadOrCreateKeyFile(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKeyFile() error = %v", err)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	second, err := LoadOrCreateKeyFile(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKeyFile() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected key to be reused")
	}
}

func TestHashTokenStable(t *testing.T) {
	const token = "same-token"
	if HashToken(token) != HashToken(token) {
		t.Fatalf("HashToken should be deterministic")
	}
	if HashToken(token) == HashToken("another-token") {
		t.Fatalf("different tokens should have different hashes")
	}
	if !EqualHash(token, HashToken(token)) || EqualHash("nope", HashToken(token)) {
		t.Fatalf("EqualHash mismatch")
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("abcd1234efgh"); got != "abcd****efgh" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskToken("short"); got != "*****" {
		t.Fatalf("unexpected mask %q", got)
	}
}
