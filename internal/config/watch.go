package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const reloadDebounce = 200 * time.Millisecond

// Watch watches the config file with Viper (WatchConfig + OnConfigChange) and hot-reloads.
// Run in a goroutine. On reload, updates in-memory config and runs RegisterOnReload callbacks.
func Watch(ctx context.Context, path string) {
	WatchFile(ctx, path, func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Warn("config hot-reload load failed", "path", path, "error", err)
			return
		}
		Set(cfg)
		notifyReload(cfg)
		slog.Info("config hot-reloaded", "path", path)
	})
}

// WatchFile calls onChange, debounced, whenever the YAML file at path is
// written or recreated. It blocks until ctx is done.
func WatchFile(ctx context.Context, path string, onChange func()) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("watch initial read failed", "path", path, "error", err)
		return
	}

	d := newDebouncer(reloadDebounce, onChange)
	defer d.stop()

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if filepath.Clean(e.Name) != filepath.Clean(path) {
			return
		}
		d.trigger()
	})
	v.WatchConfig()

	<-ctx.Done()
}

type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
