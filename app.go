package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"metabuild/internal/config"
	"metabuild/internal/heroes"
	"metabuild/internal/logging"
	"metabuild/internal/metacache"
	"metabuild/internal/notify"
	"metabuild/internal/opendota"
	"metabuild/internal/patches"
	"metabuild/internal/recommend"
	"metabuild/internal/rules"
	"metabuild/internal/store"

	"github.com/gorilla/websocket"
)

// App holds the wired service components
type App struct {
	cfg      *config.Config
	store    store.Store
	cache    *metacache.Cache
	heroes   *heroes.Registry
	tracker  *patches.Tracker
	builder  *recommend.Builder
	notifier *notify.WebhookClient
	upgrader websocket.Upgrader

	liveMu   sync.Mutex
	live     map[*websocket.Conn]struct{}
	stopLive chan struct{}
}

// NewApp wires caches, rules, patches and the builder over st and provider
func NewApp(cfg *config.Config, st store.Store, provider opendota.Provider) *App {
	notifier := notify.NewWebhookClient(cfg.Notify.DiscordWebhookURL)

	cache := metacache.New(st, provider, metacache.Config{
		CatalogTTL:  cfg.CatalogTTL(),
		MetaTTL:     cfg.MetaTTL(),
		StoredItems: cfg.Cache.StoredItems,
		HotHeroes:   cfg.Cache.HotHeroes,
		Concurrency: metacache.DefaultConfig().Concurrency,
	})
	registry := heroes.NewRegistry(provider, cfg.HeroNamesTTL())

	trackerOpts := []patches.Option{patches.WithURL(cfg.Patches.URL)}
	if notifier.Enabled() {
		trackerOpts = append(trackerOpts, patches.WithNotifier(notifier))
	}
	tracker := patches.NewTracker(st, trackerOpts...)

	return &App{
		cfg:      cfg,
		store:    st,
		cache:    cache,
		heroes:   registry,
		tracker:  tracker,
		builder:  recommend.NewBuilder(cache, rules.NewEngine(st), tracker, registry),
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		live:     make(map[*websocket.Conn]struct{}),
		stopLive: make(chan struct{}),
	}
}

// startup warms the hero name registry in the background
func (a *App) startup(ctx context.Context) {
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := a.heroes.Load(loadCtx); err != nil {
			logging.Warn().Err(err).Msg("[Heroes] Initial load failed, names will be retried on demand")
		}
	}()
}

// shutdown closes live connections; the store is closed by main
func (a *App) shutdown() {
	a.liveMu.Lock()
	defer a.liveMu.Unlock()

	select {
	case <-a.stopLive:
		return
	default:
	}
	close(a.stopLive)
	for conn := range a.live {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
