package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

var current atomic.Pointer[Config]

var (
	onReloadMu        sync.Mutex
	onReloadCallbacks []func(*Config)
)

// Get returns the current in-memory config (hot-reloaded when the file changes).
func Get() *Config { return current.Load() }

// Set sets the current in-memory config. Used at startup and by the file watcher.
func Set(c *Config) {
	if c != nil {
		current.Store(c)
	}
}

// RegisterOnReload registers a callback that runs after config is hot-reloaded (e.g. trigger phrases).
func RegisterOnReload(fn func(*Config)) {
	onReloadMu.Lock()
	defer onReloadMu.Unlock()
	onReloadCallbacks = append(onReloadCallbacks, fn)
}

func notifyReload(cfg *Config) {
	onReloadMu.Lock()
	cb := make([]func(*Config), len(onReloadCallbacks))
	copy(cb, onReloadCallbacks)
	onReloadMu.Unlock()
	for _, fn := range cb {
		fn(cfg)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	resolveRelativePaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// Parse decodes YAML config content over DefaultConfig, expanding ${ENV}
// references. Relative paths are left untouched.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyLoadDefaults(cfg)
	return cfg, nil
}

func applyLoadDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Gateway.WebhookPath == "" {
		cfg.Gateway.WebhookPath = def.Gateway.WebhookPath
	}

	b := &cfg.Bot
	if b.Locale == "" {
		b.Locale = def.Bot.Locale
	}
	// An explicit empty list disables triggers; only a null value gets the default.
	if b.Triggers == nil {
		b.Triggers = def.Bot.Triggers
	}
	if b.PendingImageTTL <= 0 {
		b.PendingImageTTL = def.Bot.PendingImageTTL
	}
	if b.ReplyWindow <= 0 {
		b.ReplyWindow = def.Bot.ReplyWindow
	}
	if b.TypingDelay < 0 {
		b.TypingDelay = 0
	}
	if b.MaxConcurrency <= 0 {
		b.MaxConcurrency = def.Bot.MaxConcurrency
	}
	if b.DedupTTL <= 0 {
		b.DedupTTL = def.Bot.DedupTTL
	}

	fillModel(&cfg.AI, def.AI)
	fillModel(&cfg.OCR, def.OCR)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for name, prov := range def.Providers {
		if _, ok := cfg.Providers[name]; !ok {
			cfg.Providers[name] = prov
		}
	}
	if cfg.KnowledgeBase.Path == "" {
		cfg.KnowledgeBase.Path = def.KnowledgeBase.Path
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = def.Cache.Backend
	}

	t := &cfg.Timeouts
	fillDuration(&t.AI, def.Timeouts.AI)
	fillDuration(&t.OCR, def.Timeouts.OCR)
	fillDuration(&t.Media, def.Timeouts.Media)
	fillDuration(&t.Payment, def.Timeouts.Payment)
	fillDuration(&t.KnowledgeBase, def.Timeouts.KnowledgeBase)
	fillDuration(&t.Send, def.Timeouts.Send)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

func fillModel(m *ModelConfig, def ModelConfig) {
	if m.Provider == "" {
		m.Provider = def.Provider
	}
	if m.Model == "" {
		m.Model = def.Model
	}
	if m.MaxTokens <= 0 {
		m.MaxTokens = def.MaxTokens
	}
}

func fillDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func resolveRelativePaths(cfg *Config, baseDir string) {
	if p := cfg.KnowledgeBase.Path; p != "" && !filepath.IsAbs(p) {
		cfg.KnowledgeBase.Path = filepath.Join(baseDir, p)
	}
}

// ResolveHome returns the DESKBOT_HOME directory.
// Priority: DESKBOT_HOME env > ~/.deskbot/
func ResolveHome() string {
	if home := os.Getenv("DESKBOT_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".deskbot"
	}
	return filepath.Join(userHome, ".deskbot")
}

// ResolveConfigPath finds the config file.
// Priority: --config flag > DESKBOT_HOME/config.yaml
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return filepath.Join(ResolveHome(), "config.yaml")
}

// GenerateToken returns a random hex token (32 bytes = 64 chars) for gateway auth.
func GenerateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "fallback-token-please-set-gateway-auth-token-in-config"
	}
	return hex.EncodeToString(b)
}

// ResolveProvider returns the provider config a model section points at.
func ResolveProvider(cfg *Config, m ModelConfig) (provider string, provCfg ProviderConfig, err error) {
	if m.Provider == "" {
		return "", ProviderConfig{}, fmt.Errorf("no provider set for model %q", m.Model)
	}
	provCfg, ok := cfg.Providers[m.Provider]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("provider %q not configured", m.Provider)
	}
	return m.Provider, provCfg, nil
}
