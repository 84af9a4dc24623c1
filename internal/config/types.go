package config

import "time"

type Config struct {
	Gateway       GatewayConfig             `yaml:"gateway" json:"gateway"`
	Line          LineConfig                `yaml:"line" json:"line"`
	Bot           BotConfig                 `yaml:"bot" json:"bot"`
	AI            ModelConfig               `yaml:"ai" json:"ai"`
	OCR           ModelConfig               `yaml:"ocr" json:"ocr"`
	Providers     map[string]ProviderConfig `yaml:"providers" json:"providers"`
	Payment       PaymentConfig             `yaml:"payment" json:"payment"`
	KnowledgeBase KnowledgeBaseConfig       `yaml:"knowledgeBase" json:"knowledgeBase"`
	Cache         CacheConfig               `yaml:"cache" json:"cache"`
	Timeouts      TimeoutsConfig            `yaml:"timeouts" json:"timeouts"`
	Logging       LoggingConfig             `yaml:"logging" json:"logging"`
}

type GatewayConfig struct {
	Port        int        `yaml:"port" json:"port"`
	WebhookPath string     `yaml:"webhookPath" json:"webhookPath"`
	Auth        AuthConfig `yaml:"auth" json:"auth"`
}

type AuthConfig struct {
	Token string `yaml:"token" json:"token"`
}

type LineConfig struct {
	ChannelAccessToken string `yaml:"channelAccessToken" json:"channelAccessToken"`
	ChannelSecret      string `yaml:"channelSecret" json:"channelSecret"` // kept for the SDK; signatures are not verified
}

type BotConfig struct {
	Locale          string        `yaml:"locale" json:"locale"`     // th | en
	Triggers        []string      `yaml:"triggers" json:"triggers"` // phrases that address the bot in groups and rooms
	PendingImageTTL time.Duration `yaml:"pendingImageTTL" json:"pendingImageTTL"`
	ReplyWindow     time.Duration `yaml:"replyWindow" json:"replyWindow"`
	TypingDelay     time.Duration `yaml:"typingDelay" json:"typingDelay"`
	MaxConcurrency  int           `yaml:"maxConcurrency" json:"maxConcurrency"`
	DedupTTL        time.Duration `yaml:"dedupTTL" json:"dedupTTL"`
}

// ModelConfig selects a provider (a key of providers) and a model on it.
type ModelConfig struct {
	Provider     string `yaml:"provider" json:"provider"`
	Model        string `yaml:"model" json:"model"`
	SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt"`
	MaxTokens    int    `yaml:"maxTokens" json:"maxTokens"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"apiKey" json:"apiKey"`
	BaseURL string `yaml:"baseURL" json:"baseURL"`
	Type    string `yaml:"type" json:"type"` // "openai" | "anthropic" (default: inferred from provider name)
}

// ClientType returns which LLM client to use for this provider.
func (p ProviderConfig) ClientType(providerName string) string {
	if p.Type != "" {
		return p.Type
	}
	if providerName == "anthropic" {
		return "anthropic"
	}
	return "openai"
}

type PaymentConfig struct {
	BaseURL   string `yaml:"baseURL" json:"baseURL"`
	SecretKey string `yaml:"secretKey" json:"secretKey"`
}

type KnowledgeBaseConfig struct {
	Path           string `yaml:"path" json:"path"`
	ReloadSchedule string `yaml:"reloadSchedule" json:"reloadSchedule"` // cron spec, empty = file watch only
}

type CacheConfig struct {
	Backend string      `yaml:"backend" json:"backend"` // memory | redis
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

type TimeoutsConfig struct {
	AI            time.Duration `yaml:"ai" json:"ai"`
	OCR           time.Duration `yaml:"ocr" json:"ocr"`
	Media         time.Duration `yaml:"media" json:"media"`
	Payment       time.Duration `yaml:"payment" json:"payment"`
	KnowledgeBase time.Duration `yaml:"knowledgeBase" json:"knowledgeBase"`
	Send          time.Duration `yaml:"send" json:"send"`
}

type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`   // debug | info | warn | error
	Format    string `yaml:"format" json:"format"` // text | json
	AddSource bool   `yaml:"addSource" json:"addSource"`
	File      bool   `yaml:"file" json:"file"` // also append to $DESKBOT_HOME/logs/deskbot.log
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:        19800,
			WebhookPath: "/webhook",
		},
		Bot: BotConfig{
			Locale:          "th",
			Triggers:        []string{"@bot"},
			PendingImageTTL: 2 * time.Minute,
			ReplyWindow:     50 * time.Second,
			TypingDelay:     time.Second,
			MaxConcurrency:  16,
			DedupTTL:        10 * time.Minute,
		},
		AI: ModelConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
		},
		OCR: ModelConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
		},
		Providers: map[string]ProviderConfig{
			"anthropic": {Type: "anthropic"},
			"openai":    {Type: "openai"},
			"deepseek":  {BaseURL: "https://api.deepseek.com", Type: "openai"},
		},
		KnowledgeBase: KnowledgeBaseConfig{
			Path: "knowledge.yaml",
		},
		Cache: CacheConfig{
			Backend: "memory",
		},
		Timeouts: TimeoutsConfig{
			AI:            60 * time.Second,
			OCR:           30 * time.Second,
			Media:         15 * time.Second,
			Payment:       10 * time.Second,
			KnowledgeBase: 5 * time.Second,
			Send:          10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
