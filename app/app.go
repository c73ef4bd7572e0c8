package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/config"
	"github.com/saiset-co/sai-feed/feed"
	"github.com/saiset-co/sai-feed/gateway"
	"github.com/saiset-co/sai-feed/logger"
	"github.com/saiset-co/sai-feed/metrics"
	"github.com/saiset-co/sai-feed/mutation"
	"github.com/saiset-co/sai-feed/notify"
	"github.com/saiset-co/sai-feed/persist"
	"github.com/saiset-co/sai-feed/profile"
	"github.com/saiset-co/sai-feed/session"
	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type options struct {
	fs       afero.Fs
	notifier types.Notifier
	dialer   fasthttp.DialFunc
}

type Option func(*options)

func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithNotifier replaces the log notifier that receives user messages.
func WithNotifier(notifier types.Notifier) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

func WithDialer(dialer fasthttp.DialFunc) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// App wires the cache, the gateway and the controllers built on them for
// one signed-in session.
type App struct {
	config          *types.ServiceConfig
	logger          *logger.Manager
	metrics         types.MetricsManager
	gateway         *gateway.Client
	session         *session.Manager
	store           *cache.Store
	collector       *cache.Collector
	persister       types.Persister
	notifications   *notify.Recorder
	runner          *mutation.Runner
	feed            *feed.Controller
	profile         *profile.Controller
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewFromFile(ctx context.Context, configPath string, opts ...Option) (*App, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	configManager, err := config.NewManager(ctx, configPath)
	if err != nil {
		return nil, err
	}

	return New(ctx, configManager, opts...)
}

func New(ctx context.Context, configManager types.ConfigManager, opts ...Option) (*App, error) {
	o := &options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(o)
	}

	cfg := configManager.GetConfig()
	if cfg == nil {
		return nil, types.ErrConfigIsNil
	}

	if err := utils.Validator().Struct(cfg); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	loggerManager, err := logger.NewManager(configManager)
	if err != nil {
		return nil, types.WrapError(err, "failed to create logger")
	}

	metricsManager, err := metrics.NewMetricsManager(loggerManager.Named("metrics"), cfg.Metrics)
	if err != nil && !errors.Is(err, types.ErrMetricsIsDisabled) {
		return nil, types.WrapError(err, "failed to create metrics manager")
	}

	gatewayOpts := []gateway.Option{gateway.WithMetrics(metricsManager)}
	if o.dialer != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithDialer(o.dialer))
	}
	client := gateway.NewClient(loggerManager.Named("gateway"), cfg.Gateway, gatewayOpts...)

	tokenStore, err := session.NewTokenStore(cfg.Session, o.fs)
	if err != nil {
		return nil, types.WrapError(err, "failed to create token store")
	}
	sessionManager := session.NewManager(loggerManager.Named("session"), client, tokenStore)
	client.SetCredentials(sessionManager)

	persister, err := persist.NewPersister(ctx, loggerManager.Named("persist"), cfg.Cache.Persist)
	if err != nil && !errors.Is(err, types.ErrPersistDisabled) {
		return nil, types.WrapError(err, "failed to create cache persister")
	}

	cacheLogger := loggerManager.Named("cache")
	store := cache.NewStore(cacheLogger, cache.WithMetrics(metricsManager))

	var next types.Notifier = notify.NewLogNotifier(loggerManager.Named("notify"))
	if o.notifier != nil {
		next = o.notifier
	}
	notifications := notify.NewRecorder(next)

	runner := mutation.NewRunner(store, notifications, loggerManager.Named("mutation"), mutation.WithMetrics(metricsManager))
	previews := profile.NewPreviewStore(o.fs, cfg.Profile.PreviewDir, loggerManager.Named("profile"))

	a := &App{
		config:          cfg,
		logger:          loggerManager,
		metrics:         metricsManager,
		gateway:         client,
		session:         sessionManager,
		store:           store,
		collector:       cache.NewCollector(store, cacheLogger, cfg.Cache),
		persister:       persister,
		notifications:   notifications,
		runner:          runner,
		feed:            feed.NewController(store, client, runner, loggerManager.Named("feed"), cfg.Feed),
		profile:         profile.NewController(store, client, sessionManager, runner, previews, loggerManager.Named("profile"), cfg.Profile),
		shutdownTimeout: 10 * time.Second,
	}

	a.state.Store(StateStopped)
	sessionManager.OnInvalidate(a.dropSessionData)

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	if !a.state.CompareAndSwap(StateStopped, StateStarting) {
		return types.ErrServiceIsRunning
	}

	if err := a.logger.Start(); err != nil && !errors.Is(err, types.ErrAlreadyRunning) {
		a.state.Store(StateStopped)
		return types.WrapError(err, "failed to start logger")
	}

	if err := a.session.Restore(); err != nil {
		a.logger.Warn("Failed to restore session", zap.Error(err))
	}

	if a.persister != nil {
		if err := a.persister.Start(); err != nil {
			a.state.Store(StateStopped)
			return types.WrapError(err, "failed to start cache persister")
		}
		a.hydrate(ctx)
	}

	if err := a.collector.Start(); err != nil {
		a.state.Store(StateStopped)
		return types.WrapError(err, "failed to start cache collector")
	}

	if a.metrics != nil {
		if err := a.metrics.Start(); err != nil {
			a.logger.Error("Failed to start metrics manager", zap.Error(err))
		}
	}

	a.state.Store(StateRunning)
	a.logger.Info("Feed client started",
		zap.String("name", a.config.Name),
		zap.String("version", a.config.Version),
		zap.Bool("authenticated", a.session.IsAuthenticated()))

	return nil
}

func (a *App) Stop() error {
	if !a.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrServiceIsNotRunning
	}
	defer a.state.Store(StateStopped)

	a.feed.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if a.persister != nil {
		a.dehydrate(ctx)
	}

	var g errgroup.Group

	g.Go(func() error {
		if err := a.collector.Stop(); err != nil {
			a.logger.Error("Failed to stop cache collector", zap.Error(err))
			return err
		}
		return nil
	})

	if a.persister != nil {
		g.Go(func() error {
			if err := a.persister.Stop(); err != nil {
				a.logger.Error("Failed to stop cache persister", zap.Error(err))
				return err
			}
			return nil
		})
	}

	if a.metrics != nil && a.metrics.IsRunning() {
		g.Go(func() error {
			if err := a.metrics.Stop(); err != nil {
				a.logger.Error("Failed to stop metrics manager", zap.Error(err))
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	a.logger.Info("Feed client stopped")
	_ = a.logger.Stop()

	return err
}

func (a *App) IsRunning() bool {
	return a.state.Load().(State) == StateRunning
}

func (a *App) Config() *types.ServiceConfig {
	return a.config
}

func (a *App) Logger() types.Logger {
	return a.logger
}

// SetLogLevel changes the level of every component logger at once.
func (a *App) SetLogLevel(level string) error {
	return a.logger.SetLevel(level)
}

func (a *App) Metrics() types.MetricsManager {
	return a.metrics
}

func (a *App) Store() *cache.Store {
	return a.store
}

func (a *App) Session() *session.Manager {
	return a.session
}

func (a *App) Gateway() *gateway.Client {
	return a.gateway
}

func (a *App) Feed() *feed.Controller {
	return a.feed
}

func (a *App) Profile() *profile.Controller {
	return a.profile
}

func (a *App) Notifications() *notify.Recorder {
	return a.notifications
}

// hydrate seeds the cache with the snapshot saved by the previous run. The
// snapshot belongs to the stored session, so it is skipped without one.
func (a *App) hydrate(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}

	entries, err := a.persister.Load(ctx)
	if err != nil {
		a.logger.Warn("Failed to load cache snapshot", zap.Error(err))
		return
	}

	if _, err := persist.Restore[feed.Posts](a.store, feed.PostsKey, entries); err != nil {
		a.logger.Warn("Failed to restore feed", zap.Error(err))
	}
	if _, err := persist.Restore[types.ProfileBundle](a.store, profile.ProfileKey, entries); err != nil {
		a.logger.Warn("Failed to restore profile", zap.Error(err))
	}

	a.logger.Debug("Cache snapshot restored", zap.Int("entries", len(entries)))
}

func (a *App) dehydrate(ctx context.Context) {
	if !a.session.IsAuthenticated() {
		return
	}

	entries, err := persist.Dehydrate(a.store, feed.PostsKey, profile.ProfileKey)
	if err != nil {
		a.logger.Warn("Failed to encode cache snapshot", zap.Error(err))
		return
	}

	if err := a.persister.Save(ctx, entries); err != nil {
		a.logger.ErrorWithErrStack("Failed to save cache snapshot", err)
	}
}

// dropSessionData runs when the session ends. Nothing cached for the old
// user may survive it.
func (a *App) dropSessionData() {
	a.store.Clear()
	a.feed.Release()
	a.profile.Release()

	if a.persister == nil || !a.persister.IsRunning() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.persister.Clear(ctx); err != nil {
		a.logger.Warn("Failed to clear cache snapshot", zap.Error(err))
	}
}
