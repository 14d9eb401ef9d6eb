package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "reelscraper"
	keyringKey     = "store_secret"
	secretFileName = ".secret"
)

// ResolveSecret returns the encryption secret for the credential store,
// checking in order: the REELSCRAPER_STORE_SECRET environment variable, the
// system keyring, and a secret file under dir. When none exist a new secret
// is generated and persisted (keyring preferred, file fallback) so the
// derived key stays stable across process restarts.
func ResolveSecret(dir string) (string, error) {
	if secret := os.Getenv("REELSCRAPER_STORE_SECRET"); secret != "" {
		return secret, nil
	}

	if secret, err := keyring.Get(keyringService, keyringKey); err == nil && secret != "" {
		return secret, nil
	}

	secretPath := filepath.Join(dir, secretFileName)
	if data, err := os.ReadFile(secretPath); err == nil && len(data) > 0 {
		return string(data), nil
	}

	secret, err := generateSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate store secret: %w", err)
	}

	if err := keyring.Set(keyringService, keyringKey, secret); err == nil {
		return secret, nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create secret directory: %w", err)
	}
	if err := os.WriteFile(secretPath, []byte(secret), 0600); err != nil {
		return "", fmt.Errorf("failed to persist store secret: %w", err)
	}
	return secret, nil
}

// generateSecret produces a fresh random secret. Random generation is only
// for minting new secrets; the encryption key itself is always derived
// deterministically from the persisted secret.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
