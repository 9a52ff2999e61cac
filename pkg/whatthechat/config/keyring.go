// Credential storage in the OS keyring (Linux: Secret Service, macOS:
// Keychain, Windows: Credential Manager).
//
// Priority for resolving secrets:
//  1. Environment variable (DISCORD_TOKEN, SLACK_TOKEN, OPENAI_API_KEY)
//  2. .env file (loaded by godotenv)
//  3. OS keyring (encrypted by the OS, requires user session)
//  4. config YAML value (least secure, plaintext on disk)
package config

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "whatthechat"

	// Keyring key names for the tool's secrets.
	KeyDiscordToken = "discord_token"
	KeySlackToken   = "slack_token"
	KeyAPIKey       = "api_key"
)

// StoreSecret saves a secret to the OS keyring under the named key.
func StoreSecret(key, value string) error {
	if err := keyring.Set(keyringService, key, value); err != nil {
		return fmt.Errorf("config: storing %s in keyring: %w", key, err)
	}
	return nil
}

// DeleteSecret removes a secret from the OS keyring.
func DeleteSecret(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__wtc_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// SecretKeyFor maps a platform name to its keyring key.
func SecretKeyFor(platform string) (string, bool) {
	switch platform {
	case PlatformDiscord:
		return KeyDiscordToken, true
	case PlatformSlack:
		return KeySlackToken, true
	default:
		return "", false
	}
}

// getKeyring retrieves a secret, empty string when absent.
func getKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}
