package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("line:\n  channelAccessToken: abc\n"))
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Line.ChannelAccessToken)
	assert.Equal(t, 19800, cfg.Gateway.Port)
	assert.Equal(t, "/webhook", cfg.Gateway.WebhookPath)
	assert.Equal(t, "th", cfg.Bot.Locale)
	assert.Equal(t, []string{"@bot"}, cfg.Bot.Triggers)
	assert.Equal(t, 2*time.Minute, cfg.Bot.PendingImageTTL)
	assert.Equal(t, 50*time.Second, cfg.Bot.ReplyWindow)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.AI)
	assert.Contains(t, cfg.Providers, "openai")
}

func TestParseDurationsAndExplicitValues(t *testing.T) {
	cfg, err := Parse([]byte(`
bot:
  locale: en
  triggers: ["@help", "hey desk"]
  pendingImageTTL: 30s
  typingDelay: 0s
  maxConcurrency: 4
timeouts:
  payment: 3s
`))
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.Bot.Locale)
	assert.Equal(t, []string{"@help", "hey desk"}, cfg.Bot.Triggers)
	assert.Equal(t, 30*time.Second, cfg.Bot.PendingImageTTL)
	assert.Equal(t, time.Duration(0), cfg.Bot.TypingDelay)
	assert.Equal(t, 4, cfg.Bot.MaxConcurrency)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Payment)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.OCR)
}

func TestParseEmptyTriggerListIsKept(t *testing.T) {
	cfg, err := Parse([]byte("bot:\n  triggers: []\n"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Bot.Triggers)
	assert.Empty(t, cfg.Bot.Triggers)
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("DESKBOT_TEST_LINE_TOKEN", "from-env")
	cfg, err := Parse([]byte("line:\n  channelAccessToken: ${DESKBOT_TEST_LINE_TOKEN}\n  channelSecret: ${DESKBOT_TEST_UNSET_VAR}\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Line.ChannelAccessToken)
	assert.Equal(t, "${DESKBOT_TEST_UNSET_VAR}", cfg.Line.ChannelSecret)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("bot: [unclosed"))
	assert.Error(t, err)
}

func TestLoadResolvesKnowledgeBasePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("knowledgeBase:\n  path: kb/codes.yaml\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kb", "codes.yaml"), cfg.KnowledgeBase.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolveHome(t *testing.T) {
	t.Setenv("DESKBOT_HOME", "/srv/deskbot")
	assert.Equal(t, "/srv/deskbot", ResolveHome())
	assert.Equal(t, filepath.Join("/srv/deskbot", "config.yaml"), ResolveConfigPath(""))
	assert.Equal(t, "/etc/deskbot.yaml", ResolveConfigPath("/etc/deskbot.yaml"))
	assert.Equal(t, filepath.Join("/srv/deskbot", ".env"), EnvFile())
}

func TestResolveProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["local"] = ProviderConfig{BaseURL: "http://localhost:8080/v1"}

	name, prov, err := ResolveProvider(cfg, ModelConfig{Provider: "local", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "local", name)
	assert.Equal(t, "openai", prov.ClientType(name))

	_, _, err = ResolveProvider(cfg, ModelConfig{Provider: "missing"})
	assert.Error(t, err)

	_, prov, err = ResolveProvider(cfg, ModelConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", prov.ClientType("anthropic"))
}

func TestReloadCallbacks(t *testing.T) {
	var got *Config
	RegisterOnReload(func(c *Config) { got = c })
	cfg := DefaultConfig()
	notifyReload(cfg)
	assert.Same(t, cfg, got)
}

func TestParseTypingDelayDefault(t *testing.T) {
	cfg, err := Parse([]byte("bot:\n  locale: en\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Bot.TypingDelay)
}
