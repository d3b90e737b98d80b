package bot

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/welcomer/internal/collector"
	"github.com/felixgeelhaar/welcomer/internal/config"
	"github.com/felixgeelhaar/welcomer/internal/discord"
	"github.com/felixgeelhaar/welcomer/internal/health"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
	"github.com/felixgeelhaar/welcomer/internal/reconcile"
	"github.com/felixgeelhaar/welcomer/internal/roles"
	"github.com/felixgeelhaar/welcomer/internal/scope"
	"github.com/felixgeelhaar/welcomer/internal/server"
	"github.com/felixgeelhaar/welcomer/internal/session"
	"github.com/felixgeelhaar/welcomer/internal/telemetry"
	"github.com/felixgeelhaar/welcomer/internal/version"
)

// flushTimeout bounds the final trace export.
const flushTimeout = 5 * time.Second

// Core is the platform-independent part of the bot.
type Core struct {
	Handler    *Handler
	Registry   *session.Registry
	Dispatcher *collector.Dispatcher
	Roles      *roles.Directory
	Scope      *scope.Controller
}

// Assemble builds the onboarding core on top of any gateway.
func Assemble(cfg config.Config, q questionnaire.Questionnaire, gw platform.Gateway, logger *log.Logger, m *metrics.Metrics) (*Core, error) {
	logger = log.OrDiscard(logger)

	dispatcher := collector.NewDispatcher(cfg.EventBuffer, logger, m)
	col, err := collector.New(cfg.Mode(), gw, dispatcher, logger, m)
	if err != nil {
		return nil, err
	}

	dir := roles.NewDirectory(gw, logger, m)
	ctl := scope.NewController(gw, dir, scope.Config{
		CategoryName:  q.CategoryName,
		ChannelPrefix: q.ChannelPrefix,
		AdminRole:     q.AdminRole,
	}, logger, m)

	registry := session.NewRegistry(session.Deps{
		Questionnaire: q,
		Scope:         ctl,
		Roles:         dir,
		Collector:     col,
		Messenger:     gw,
		Timing: session.Timing{
			AnswerTimeout:   cfg.AnswerTimeout,
			TimeoutGrace:    cfg.TimeoutGrace,
			CompletionDelay: cfg.CompletionDelay,
			CleanupTimeout:  cfg.CleanupTimeout,
		},
		Logger:  logger,
		Metrics: m,
	})

	var sweeper Sweeper
	if cfg.ReconcileOnStart {
		sweeper = reconcile.New(gw, dir, registry, reconcile.Config{
			AdminRole:       q.AdminRole,
			RegisteredRoles: q.RegisteredRoles(),
			Interval:        cfg.ReconcileInterval,
		}, logger, m)
	}

	handler := NewHandler(registry, sweeper, HandlerConfig{
		GuildIDs:         cfg.GuildIDs,
		ReconcileOnStart: cfg.ReconcileOnStart,
		Messages:         q.Messages,
	}, logger)

	return &Core{
		Handler:    handler,
		Registry:   registry,
		Dispatcher: dispatcher,
		Roles:      dir,
		Scope:      ctl,
	}, nil
}

// App is the bot process: gateway connection, onboarding core and the
// operational HTTP server.
type App struct {
	cfg      config.Config
	q        questionnaire.Questionnaire
	logger   *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// New creates an App with its own metrics registry.
func New(cfg config.Config, q questionnaire.Questionnaire, logger *log.Logger) *App {
	reg, m := metrics.NewRegistry()
	return &App{
		cfg:      cfg,
		q:        q,
		logger:   log.OrDiscard(logger),
		registry: reg,
		metrics:  m,
	}
}

// Run serves until ctx is cancelled, then lets every session clean up.
func (a *App) Run(ctx context.Context) error {
	tcfg := telemetry.FromEndpoint(a.cfg.OTelEndpoint, version.GetInfo().Short())
	tcfg.Environment = a.cfg.Environment
	shutdownTracing, err := telemetry.InitProvider(ctx, tcfg)
	if err != nil {
		a.logger.WithError(err).Warn("tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := shutdownTracing(fctx); err != nil {
			a.logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	gw, err := discord.New(a.cfg.Token, a.logger)
	if err != nil {
		return err
	}
	core, err := Assemble(a.cfg, a.q, gw, a.logger, a.metrics)
	if err != nil {
		return err
	}

	var router *discord.Router
	l := &listener{Handler: core.Handler}
	l.register = func(ctx context.Context, guildIDs []string) {
		if len(a.cfg.GuildIDs) > 0 {
			guildIDs = a.cfg.GuildIDs
		}
		if err := router.RegisterCommand(ctx, gw, guildIDs); err != nil {
			a.logger.WithError(err).Error("failed to register command", "command", a.cfg.CommandName)
		}
	}
	router = discord.NewRouter(ctx, gw, discord.RouterConfig{
		CommandName:        a.cfg.CommandName,
		CommandDescription: a.cfg.CommandDescription,
		Expired:            a.cfg.ExpiredNotice,
	}, l, core.Dispatcher, a.logger, a.metrics)
	router.Bind(gw)

	probes := health.NewProbeManager(version.GetInfo().Short())
	probes.AddChecker(health.NewGatewayChecker(gw))
	probes.AddChecker(health.NewSessionsChecker(core.Registry, 0))
	srv := server.NewServer(probes, server.Config{
		Address: a.cfg.HTTPAddr,
		Metrics: metrics.HandlerFor(a.registry),
	})
	go func() {
		if err := srv.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("http server stopped")
		}
	}()

	if err := gw.Open(); err != nil {
		_ = srv.Shutdown(context.Background())
		return err
	}
	probes.MarkInitialized()
	a.logger.Info("welcomer running", "modality", a.cfg.Mode(), "questionnaire", a.q.Name)

	<-ctx.Done()
	a.logger.Info("shutting down", "active_sessions", core.Registry.Len())
	probes.MarkShutdown()
	if err := srv.Shutdown(context.Background()); err != nil {
		a.logger.WithError(err).Warn("http server shutdown failed")
	}
	core.Handler.Wait()
	return gw.Close()
}

// listener registers the command on the first Ready before handing the
// event to the handler.
type listener struct {
	*Handler
	once     sync.Once
	register func(ctx context.Context, guildIDs []string)
}

func (l *listener) Ready(ctx context.Context, guildIDs []string) {
	l.once.Do(func() { l.register(ctx, guildIDs) })
	l.Handler.Ready(ctx, guildIDs)
}
