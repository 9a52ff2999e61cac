package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or $VAR_NAME in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadFromFile reads and parses a YAML configuration file. .env files
// are loaded first and environment variable references in the YAML are
// expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	cfg, err := Parse([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	checkFilePermissions(path)

	return cfg, nil
}

// Load resolves the config for a run: the explicit path if given,
// otherwise the first file found in the standard locations, otherwise
// defaults with secrets pulled from the environment and keyring.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		return LoadFromFile(path)
	}

	loadEnvFiles()
	cfg := DefaultConfig()
	resolveSecrets(cfg)
	return cfg, nil
}

// Parse parses YAML bytes into a Config, overlaying the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes a Config as YAML with restricted permissions.
// Secrets that mirror an environment variable are written as ${VAR}
// references instead of plaintext.
func SaveToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Discord.Token = sanitizeSecret(cfg.Discord.Token, "DISCORD_TOKEN")
	sanitized.Slack.Token = sanitizeSecret(cfg.Slack.Token, "SLACK_TOKEN")
	sanitized.Model.APIKey = sanitizeSecret(cfg.Model.APIKey, "OPENAI_API_KEY")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// FindConfigFile searches the standard locations for a config file.
func FindConfigFile() string {
	candidates := []string{
		"wtc.yaml",
		"wtc.yml",
		"config.yaml",
		"config.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, home+"/.config/whatthechat/config.yaml")
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ---------- Internal ----------

// loadEnvFiles loads .env files from standard locations.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		// godotenv.Load does NOT overwrite existing env vars.
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and $VAR references in a string with
// their environment variable values.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}

		// Unset vars keep the placeholder so resolveSecrets can still
		// fall back to the keyring.
		return match
	})
}

// resolveSecrets fills in config secrets from the environment or the
// OS keyring when the config value is empty or an unexpanded
// placeholder. Environment wins over keyring.
func resolveSecrets(cfg *Config) {
	resolve := func(current *string, envVars []string, keyringKey string) {
		if *current != "" && !isEnvReference(*current) {
			return
		}
		for _, v := range envVars {
			if val := os.Getenv(v); val != "" {
				*current = val
				return
			}
		}
		if val := getKeyring(keyringKey); val != "" {
			*current = val
		} else if isEnvReference(*current) {
			*current = ""
		}
	}

	resolve(&cfg.Discord.Token, []string{"DISCORD_TOKEN", "DISCORD_BOT_TOKEN"}, KeyDiscordToken)
	resolve(&cfg.Slack.Token, []string{"SLACK_TOKEN", "SLACK_BOT_TOKEN"}, KeySlackToken)
	resolve(&cfg.Model.APIKey, []string{"OPENAI_API_KEY", "WTC_API_KEY"}, KeyAPIKey)
}

// sanitizeSecret replaces a real secret with an env var reference for
// safe storage in config files.
func sanitizeSecret(value, envVar string) string {
	if value == "" || isEnvReference(value) {
		return value
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	return value
}

// isEnvReference checks if a string is an environment variable reference.
func isEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// checkFilePermissions warns if the config file is group/world readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
