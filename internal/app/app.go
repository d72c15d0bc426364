package app

import (
	"context"
	"fmt"
	"time"

	"github.com/walkai/stride/internal/config"
	"github.com/walkai/stride/internal/prefs"
	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/session"
	"github.com/walkai/stride/internal/ui"
	"github.com/walkai/stride/internal/walkai"
)

// Options configure the stride application.
type Options struct {
	ConfigPath      string
	PrefsPath       string // empty uses default ~/.config/stride/prefs.toml
	APIBase         string // overrides the configured backend URL
	PollEvery       int    // seconds; zero uses the configured value
	InvitationToken string
}

// Run boots the stride TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	userPrefs := prefs.Load(opts.PrefsPath)

	apiBase := cfg.APIBase
	if opts.APIBase != "" {
		apiBase = opts.APIBase
	}
	client, err := walkai.NewClient(apiBase)
	if err != nil {
		return fmt.Errorf("init walk:ai client: %w", err)
	}

	// Restore the previous session cookie, if one was kept.
	if value, ok, err := session.Load(); err == nil && ok {
		client.SetSessionCookie(value)
	}

	interval := time.Duration(cfg.PollSeconds) * time.Second
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	cache := query.NewCache(ctx)

	uiOpts := ui.Options{
		Context:         ctx,
		Client:          client,
		Cache:           cache,
		Config:          &cfg,
		PollTick:        interval,
		ThemeName:       userPrefs.Theme,
		DefaultGPU:      userPrefs.GPUProfile,
		PrefsPath:       opts.PrefsPath,
		InvitationToken: opts.InvitationToken,
	}
	return ui.Run(uiOpts)
}
