package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lpernett/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lhdbsbz/deskbot/internal/bot"
	"github.com/lhdbsbz/deskbot/internal/config"
	"github.com/lhdbsbz/deskbot/internal/cron"
	"github.com/lhdbsbz/deskbot/internal/dispatch"
	"github.com/lhdbsbz/deskbot/internal/gateway"
	"github.com/lhdbsbz/deskbot/internal/imagecache"
	"github.com/lhdbsbz/deskbot/internal/intent"
	"github.com/lhdbsbz/deskbot/internal/kb"
	"github.com/lhdbsbz/deskbot/internal/line"
	"github.com/lhdbsbz/deskbot/internal/llm"
	"github.com/lhdbsbz/deskbot/internal/logutil"
	"github.com/lhdbsbz/deskbot/internal/message"
	"github.com/lhdbsbz/deskbot/internal/ocr"
	"github.com/lhdbsbz/deskbot/internal/payment"
	"github.com/lhdbsbz/deskbot/internal/prompts"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagPath, _ := cmd.Flags().GetString("config")
			return serve(flagPath)
		},
	}
}

func loadEnv() {
	for _, p := range []string{config.EnvFile(), ".env"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("env file not loaded", "path", p, "error", err)
		}
	}
}

// loadConfig falls back to defaults when the file does not exist.
func loadConfig(flagPath string) (*config.Config, string, error) {
	loadEnv()
	cfgPath := config.ResolveConfigPath(flagPath)
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config not found, using defaults", "path", cfgPath)
		return config.DefaultConfig(), cfgPath, nil
	}
	if err != nil {
		return nil, cfgPath, err
	}
	return cfg, cfgPath, nil
}

func serve(flagPath string) error {
	cfg, cfgPath, err := loadConfig(flagPath)
	if err != nil {
		return err
	}
	logger, closeLog, err := logutil.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)
	logger.Info("deskbot starting", "version", version, "home", config.Home(), "config", cfgPath)

	if cfg.Line.ChannelAccessToken == "" {
		return fmt.Errorf("line.channelAccessToken is required")
	}
	if cfg.Gateway.Auth.Token == "" {
		cfg.Gateway.Auth.Token = config.GenerateToken()
		logger.Warn("no gateway.auth.token configured; generated one for this run", "token", cfg.Gateway.Auth.Token)
	}
	config.Set(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	classifier := intent.NewClassifier(cfg.Bot.Triggers)
	config.RegisterOnReload(func(c *config.Config) {
		classifier.SetTriggers(c.Bot.Triggers)
		logger.Info("triggers reloaded", "triggers", c.Bot.Triggers)
	})
	if _, err := os.Stat(cfgPath); err == nil {
		go config.Watch(ctx, cfgPath)
	}

	images, pending, closeImages, err := openImageStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeImages()

	knowledge, err := kb.Open(cfg.KnowledgeBase.Path, logger)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("knowledge base not found, starting empty", "path", cfg.KnowledgeBase.Path)
		knowledge, _ = kb.New(nil)
	case err != nil:
		return fmt.Errorf("open knowledge base: %w", err)
	default:
		go knowledge.Watch(ctx)
	}

	replies := prompts.Get(cfg.Bot.Locale)
	usage := llm.NewUsageTracker(config.DataDir())
	aiModel := cfg.AI
	if aiModel.SystemPrompt == "" {
		aiModel.SystemPrompt = replies.SystemPrompt
	}
	ai, err := newCompleter(cfg, aiModel, "ai", usage)
	if err != nil {
		return fmt.Errorf("ai model: %w", err)
	}
	vision, err := newCompleter(cfg, cfg.OCR, "ocr", usage)
	if err != nil {
		return fmt.Errorf("ocr model: %w", err)
	}

	lineClient, err := line.NewClient(cfg.Line.ChannelAccessToken, line.Options{})
	if err != nil {
		return err
	}

	dedup := message.NewDedup(cfg.Bot.DedupTTL)
	sched := cron.NewScheduler(logger)
	if _, err := sched.Add("dedup-prune", "@every 1m", func(context.Context) error {
		if n := dedup.Prune(); n > 0 {
			logger.Debug("dedup pruned", "removed", n)
		}
		return nil
	}); err != nil {
		return err
	}
	kbSchedule := cfg.KnowledgeBase.ReloadSchedule
	if err := scheduleKBReload(sched, knowledge, kbSchedule); err != nil {
		return err
	}
	config.RegisterOnReload(func(c *config.Config) {
		if c.KnowledgeBase.ReloadSchedule == kbSchedule {
			return
		}
		if err := scheduleKBReload(sched, knowledge, c.KnowledgeBase.ReloadSchedule); err != nil {
			logger.Warn("kb reload schedule not changed", "error", err)
			return
		}
		kbSchedule = c.KnowledgeBase.ReloadSchedule
		logger.Info("kb reload schedule changed", "schedule", kbSchedule)
	})
	sched.Start()
	defer sched.Stop()

	// The server is built before the dispatcher so its tap can observe sends.
	srv := gateway.NewServer(cfg, nil, gateway.Stats{
		Usage:     usage,
		Scheduler: sched,
		KBEntries: knowledge.Len,
		Pending:   pending,
		Dedup:     dedup.Len,
	}, logger)

	dispatcher := dispatch.New(lineClient, logger,
		dispatch.WithObserver(srv.Observe),
		dispatch.WithTypingDelay(cfg.Bot.TypingDelay),
		dispatch.WithSendTimeout(cfg.Timeouts.Send),
	)

	b, err := bot.New(bot.Deps{
		Classifier:    classifier,
		Images:        images,
		Dispatcher:    dispatcher,
		Replies:       replies,
		KnowledgeBase: knowledge,
		Media:         lineClient,
		OCR:           ocr.NewExtractor(vision),
		AI:            ai,
		Payment:       payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey, cfg.Timeouts.Payment),
		Dedup:         dedup,
		Logger:        logger,
	}, bot.Options{
		ReplyWindow:    cfg.Bot.ReplyWindow,
		MaxConcurrency: cfg.Bot.MaxConcurrency,
		Timeouts: bot.Timeouts{
			AI:            cfg.Timeouts.AI,
			OCR:           cfg.Timeouts.OCR,
			Media:         cfg.Timeouts.Media,
			Payment:       cfg.Timeouts.Payment,
			KnowledgeBase: cfg.Timeouts.KnowledgeBase,
		},
	})
	if err != nil {
		return err
	}
	srv.Handler = b

	err = srv.Start(ctx)
	logger.Info("deskbot stopped", "usage", usage.Status())
	return err
}

const kbReloadJob = "kb-reload"

// scheduleKBReload replaces the kb-reload job. An empty schedule removes it.
func scheduleKBReload(sched *cron.Scheduler, knowledge *kb.Store, schedule string) error {
	_ = sched.Remove(kbReloadJob)
	if schedule == "" {
		return nil
	}
	if _, err := sched.Add(kbReloadJob, schedule, func(context.Context) error { return knowledge.Reload() }); err != nil {
		return fmt.Errorf("kb reload schedule: %w", err)
	}
	return nil
}

func newCompleter(cfg *config.Config, m config.ModelConfig, purpose string, usage *llm.UsageTracker) (*llm.Completer, error) {
	name, prov, err := config.ResolveProvider(cfg, m)
	if err != nil {
		return nil, err
	}
	return llm.NewCompleter(llm.Binding{
		Provider:  name,
		API:       prov.ClientType(name),
		Model:     m.Model,
		APIKey:    prov.APIKey,
		BaseURL:   prov.BaseURL,
		System:    m.SystemPrompt,
		MaxTokens: m.MaxTokens,
		Purpose:   purpose,
	}, usage), nil
}

// openImageStore returns the pending-image store, a size reporter for health
// (nil when the backend cannot report one) and a close func.
func openImageStore(ctx context.Context, cfg *config.Config) (imagecache.Store, func() int, func(), error) {
	ttl := cfg.Bot.PendingImageTTL
	switch cfg.Cache.Backend {
	case "", "memory":
		store := imagecache.NewMemoryStore(ttl)
		return store, store.Len, func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Cache.Redis.Addr, err)
		}
		return imagecache.NewRedisStore(rdb, ttl), nil, func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
