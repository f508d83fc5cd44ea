// Command refresh runs the hot hero and patch refresh jobs once, for use
// from an external scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"metabuild/internal/config"
	"metabuild/internal/logging"
	"metabuild/internal/metacache"
	"metabuild/internal/notify"
	"metabuild/internal/opendota"
	"metabuild/internal/patches"
	"metabuild/internal/store"
)

func main() {
	heroesFlag := flag.Bool("heroes", false, "Refresh hot hero meta")
	patchFlag := flag.Bool("patch", false, "Refresh patch state")
	maxItems := flag.Int("max", 10, "Items per stage to report for each hero")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall job timeout")
	flag.Parse()

	if !*heroesFlag && !*patchFlag {
		*heroesFlag, *patchFlag = true, true
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("[Refresh] Failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.DSN())
	if err != nil {
		logging.Fatal().Err(err).Msg("[Refresh] Failed to open store")
	}
	defer st.Close()

	if err := store.Bootstrap(ctx, st, cfg.Cache.HotHeroes, time.Now().UTC()); err != nil {
		logging.Fatal().Err(err).Msg("[Refresh] Bootstrap failed")
	}

	notifier := notify.NewWebhookClient(cfg.Notify.DiscordWebhookURL)
	failed := false

	if *heroesFlag && !refreshHeroes(ctx, cfg, st, notifier, *maxItems) {
		failed = true
	}
	if *patchFlag && !refreshPatch(ctx, cfg, st, notifier) {
		failed = true
	}

	if failed {
		st.Close()
		os.Exit(1)
	}
}

// refreshHeroes returns false only when no hero could be refreshed
func refreshHeroes(ctx context.Context, cfg *config.Config, st store.Store, notifier *notify.WebhookClient, max int) bool {
	provider := opendota.NewBreakerClient(
		opendota.NewClient(
			opendota.WithBaseURL(cfg.OpenDota.BaseURL),
			opendota.WithTimeout(cfg.OpenDotaTimeout()),
		),
		opendota.DefaultBreakerSettings(),
	)
	cache := metacache.New(st, provider, metacache.Config{
		CatalogTTL:  cfg.CatalogTTL(),
		MetaTTL:     cfg.MetaTTL(),
		StoredItems: cfg.Cache.StoredItems,
		HotHeroes:   cfg.Cache.HotHeroes,
		Concurrency: metacache.DefaultConfig().Concurrency,
	})

	results, err := cache.RefreshHotHeroes(ctx, max)
	if err != nil {
		logging.Error().Err(err).Msg("[Refresh] Hot hero refresh failed")
		return false
	}

	var failures []notify.Failure
	for _, r := range results {
		if r.Status != metacache.StatusOK {
			failures = append(failures, notify.Failure{HeroID: r.HeroID, Error: r.Error})
			logging.Warn().Int("hero_id", r.HeroID).Str("error", r.Error).Msg("[Refresh] Hero failed")
			continue
		}
		logging.Info().Int("hero_id", r.HeroID).Msg("[Refresh] Hero refreshed")
	}

	if len(failures) > 0 {
		if err := notifier.HotRefreshFailed(ctx, failures, len(results)); err != nil {
			logging.Warn().Err(err).Msg("[Refresh] Failed to send failure notification")
		}
	}
	return len(results) == 0 || len(failures) < len(results)
}

func refreshPatch(ctx context.Context, cfg *config.Config, st store.Store, notifier *notify.WebhookClient) bool {
	opts := []patches.Option{patches.WithURL(cfg.Patches.URL)}
	if notifier.Enabled() {
		opts = append(opts, patches.WithNotifier(notifier))
	}

	state, changed, err := patches.NewTracker(st, opts...).Refresh(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("[Refresh] Patch refresh failed")
		return false
	}
	logging.Info().Str("patch", state.PatchID).Bool("changed", changed).Msg("[Refresh] Patch state updated")
	return true
}
