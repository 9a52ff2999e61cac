package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
platform: slack
model:
  source: remote
  name: gpt-4o-mini
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Platform != PlatformSlack {
		t.Errorf("Platform = %q", cfg.Platform)
	}
	if cfg.Model.Source != "remote" || cfg.Model.Name != "gpt-4o-mini" {
		t.Errorf("Model = %+v", cfg.Model)
	}
}

func TestParseKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := Parse([]byte(`platform: discord`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	def := DefaultConfig()
	if cfg.Model.Source != def.Model.Source || cfg.Model.Name != def.Model.Name {
		t.Errorf("Model = %+v, want defaults %+v", cfg.Model, def.Model)
	}
}

func TestLoadFromFileExpandsEnvVars(t *testing.T) {
	keyring.MockInit()
	t.Setenv("WTC_TEST_TOKEN", "xoxb-expanded")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "platform: slack\nslack:\n  token: ${WTC_TEST_TOKEN}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Slack.Token != "xoxb-expanded" {
		t.Errorf("Slack.Token = %q, want expanded env value", cfg.Slack.Token)
	}
}

func TestResolveSecretsFromEnvironment(t *testing.T) {
	keyring.MockInit()
	t.Setenv("DISCORD_TOKEN", "bot-token-from-env")

	cfg := DefaultConfig()
	resolveSecrets(cfg)

	if cfg.Discord.Token != "bot-token-from-env" {
		t.Errorf("Discord.Token = %q", cfg.Discord.Token)
	}
}

func TestResolveSecretsClearsUnresolvedPlaceholder(t *testing.T) {
	keyring.MockInit()

	cfg := DefaultConfig()
	cfg.Slack.Token = "${NEVER_SET_ANYWHERE_XYZ}"
	resolveSecrets(cfg)

	if cfg.Slack.Token != "" {
		t.Errorf("Slack.Token = %q, want empty for unresolved placeholder", cfg.Slack.Token)
	}
}

func TestResolveSecretsFromKeyring(t *testing.T) {
	keyring.MockInit()
	if err := StoreSecret(KeyAPIKey, "sk-from-keyring"); err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}

	cfg := DefaultConfig()
	resolveSecrets(cfg)

	if cfg.Model.APIKey != "sk-from-keyring" {
		t.Errorf("Model.APIKey = %q, want keyring value", cfg.Model.APIKey)
	}
}

func TestSaveToFileSanitizesSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-real-key")

	cfg := DefaultConfig()
	cfg.Model.APIKey = "sk-real-key"

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-real-key") {
		t.Error("plaintext secret written to config file")
	}
	if !strings.Contains(string(data), "${OPENAI_API_KEY}") {
		t.Errorf("expected env reference in saved config:\n%s", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("config written with open permissions %04o", perm)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	cfg.Platform = "irc"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown platform accepted")
	}

	cfg = DefaultConfig()
	cfg.Model.Source = "cloud"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown model source accepted")
	}
}
