package main

import (
	"context"
	"os"
	"sync"
	"time"

	"ghostlock/internal/automation"
	"ghostlock/internal/cache"
	"ghostlock/internal/logging"
	"ghostlock/internal/providers/henrik"
	"ghostlock/internal/providers/trackgg"
	"ghostlock/internal/resolve"
	"ghostlock/internal/riot"
	"ghostlock/internal/store"
	"ghostlock/internal/xmpp"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

// App struct
type App struct {
	ctx     context.Context
	log     *zap.Logger
	logSink *logging.SinkCore

	settings *store.Store
	riot     *riot.Client
	events   *riot.EventSocket
	engine   *automation.Engine
	poller   *automation.Poller
	cache    *cache.ResolutionCache
	chat     *xmpp.Session

	// provMu guards the provider set, which SaveSettings swaps while
	// match resolution may be reading it.
	provMu   sync.Mutex
	resolver *resolve.Resolver
	bulk     *trackgg.Client
	fallback *henrik.Client

	chatMu      sync.Mutex
	chatPolling bool
	chatTick    time.Duration

	stopPoll      chan struct{}
	windowVisible bool
}

// NewApp creates a new App application struct
func NewApp(log *zap.Logger, sink *logging.SinkCore) *App {
	riotClient := riot.NewClient(log)
	engine := automation.NewEngine(riotClient, log)

	a := &App{
		log:           log,
		logSink:       sink,
		riot:          riotClient,
		events:        riot.NewEventSocket(log),
		engine:        engine,
		cache:         cache.New(),
		chat:          xmpp.NewSession(log),
		chatTick:      500 * time.Millisecond,
		stopPoll:      make(chan struct{}),
		windowVisible: true,
	}
	a.poller = automation.NewPoller(riotClient, engine, log)
	a.poller.OnSnapshot = a.onMatchSnapshot
	a.poller.OnTransition = a.onMatchTransition
	return a
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	// Mirror log entries into the UI feed now that events can flow
	a.logSink.SetSink(func(e logging.Entry) {
		runtime.EventsEmit(ctx, "log:entry", map[string]interface{}{
			"time":    e.Time.UnixMilli(),
			"level":   e.Level,
			"message": e.Message,
		})
	})

	settingsStore, err := store.New()
	if err != nil {
		a.log.Error("failed to open settings store", zap.Error(err))
	} else {
		a.settings = settingsStore
	}

	settings := store.DefaultSettings()
	if a.settings != nil {
		if loaded, err := a.settings.Load(); err != nil {
			a.log.Error("failed to load settings", zap.Error(err))
		} else {
			settings = loaded
		}
	}
	a.applySettings(settings)

	a.RegisterHotkeys()
	go a.pollForGameClient()
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	close(a.stopPoll)
	a.poller.Stop()
	a.chat.Disconnect()
	a.events.Disconnect()
	a.riot.Disconnect()
	if a.settings != nil {
		a.settings.Close()
	}
}

// applySettings pushes stored settings into the running components.
// The provider set is rebuilt as a unit; when a session is already
// live the fresh bulk client gets its availability probe immediately,
// since the connect-time probe has already come and gone.
func (a *App) applySettings(settings store.Settings) {
	a.engine.SetConfig(settings.AutomationConfig())

	lookupKey := settings.LookupAPIKey
	if lookupKey == "" {
		lookupKey = os.Getenv("TRACKGG_API_KEY")
	}
	henrikKey := settings.HenrikAPIKey
	if henrikKey == "" {
		henrikKey = os.Getenv("HENRIK_API_KEY")
	}

	bulk := trackgg.New(lookupKey)
	if url := os.Getenv("TRACKGG_API_URL"); url != "" {
		bulk.SetBaseURL(url)
	}
	fallback := henrik.New(henrikKey)
	resolver := resolve.New(a.riot, bulk, fallback, a.cache, a.log)

	a.provMu.Lock()
	a.bulk = bulk
	a.fallback = fallback
	a.resolver = resolver
	a.provMu.Unlock()

	if a.riot.IsConnected() && bulk.Configured() {
		go a.probeBulk(bulk)
	}
}

// probeBulk runs the once-per-session availability check on a bulk
// lookup client.
func (a *App) probeBulk(bulk *trackgg.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bulk.Probe(ctx); err != nil {
		a.log.Info("bulk lookup service unavailable", zap.Error(err))
	}
}

func (a *App) getResolver() *resolve.Resolver {
	a.provMu.Lock()
	defer a.provMu.Unlock()
	return a.resolver
}

func (a *App) getBulk() *trackgg.Client {
	a.provMu.Lock()
	defer a.provMu.Unlock()
	return a.bulk
}
