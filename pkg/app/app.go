// Package app assembles a proctoring session from configuration: capture,
// perception, audio, audit sinks, the Redis feed, metrics and the dashboard.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teslashibe/go-proctor/internal/config"
	"github.com/teslashibe/go-proctor/internal/observe"
	"github.com/teslashibe/go-proctor/pkg/audioio"
	"github.com/teslashibe/go-proctor/pkg/auditlog"
	"github.com/teslashibe/go-proctor/pkg/perception"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/web"
)

// mockFrameInterval paces the synthetic camera at ~30 FPS
const mockFrameInterval = 33 * time.Millisecond

// Options are command line choices that are not part of the config file
type Options struct {
	Mock    bool // Synthetic camera, perception and microphone
	Version string
	Logger  *slog.Logger
}

// App is the proctor application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	// Observability
	provider *observe.Provider
	metrics  *observe.Metrics

	// Perception
	frames  proctor.FrameSource
	faces   proctor.FaceProvider
	objects proctor.ObjectProvider

	// Audio
	sampler *audioio.AmplitudeSampler
	tone    *audioio.ToneAlert

	// Audit
	sinks    auditlog.Multi
	history  auditlog.SessionLister
	redis    *redis.Client
	feed     *auditlog.RedisFeed
	feedDone chan struct{}

	webServer *web.Server
	session   *proctor.Session

	// Released in reverse order by Shutdown
	closers  []func() error
	shutOnce sync.Once
}

// New creates an application for cfg. Call Init before Run.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, opts: opts, logger: logger}, nil
}

// Session returns the session built by Init
func (a *App) Session() *proctor.Session {
	return a.session
}

// Init builds every component and the session.
// Optional components that fail to start are logged and skipped.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("initializing proctor", "version", a.opts.Version, "mock", a.opts.Mock)

	if err := a.initMetrics(ctx); err != nil {
		a.logger.Warn("metrics disabled", "error", err)
	}
	if err := a.initPerception(); err != nil {
		return fmt.Errorf("perception: %w", err)
	}
	if err := a.initAudio(); err != nil {
		if errors.Is(err, audioio.ErrUnavailable) {
			a.logger.Info("no microphone backend on this host, audio monitoring off", "error", err)
		} else {
			a.logger.Warn("audio monitoring disabled", "error", err)
		}
	}
	if err := a.initAudit(ctx); err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	if err := a.initRedis(ctx); err != nil {
		a.logger.Warn("redis feed disabled", "error", err)
	}
	a.initDashboard()

	return a.initSession()
}

func (a *App) initMetrics(ctx context.Context) error {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	p, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: a.opts.Version})
	if err != nil {
		return err
	}
	m, err := observe.NewMetrics(p.MeterProvider())
	if err != nil {
		p.Shutdown(ctx)
		return err
	}
	a.provider, a.metrics = p, m
	a.onShutdown(func() error { return p.Shutdown(context.Background()) })
	return nil
}

func (a *App) initPerception() error {
	if a.opts.Mock {
		cam := a.cfg.Camera
		a.frames = perception.NewMockCamera(cam.Width, cam.Height, mockFrameInterval, 0)
		scripted := perception.NewScriptedPerception(perception.DefaultScenarios())
		a.faces, a.objects = scripted, scripted
		return nil
	}

	camera, err := perception.NewCamera(a.cfg.Camera, a.logger)
	if err != nil {
		return err
	}
	a.frames = camera

	faces, err := perception.NewFaceDetector(a.cfg.Faces, a.logger)
	if err != nil {
		return err
	}
	a.faces = faces
	a.onShutdown(faces.Close)

	if a.cfg.Objects.Enabled {
		objects, err := perception.NewObjectDetector(a.cfg.Objects.ObjectConfig, a.logger)
		if err != nil {
			// Face checks still work without the object model
			a.logger.Warn("object detection disabled", "error", err)
			return nil
		}
		a.objects = objects
		a.onShutdown(objects.Close)
	}
	return nil
}

func (a *App) initAudio() error {
	acfg := a.cfg.Audio.Config
	if a.opts.Mock {
		acfg.Backend = audioio.BackendMock
	}

	var src audioio.Source
	if acfg.Backend == audioio.BackendMock {
		// Loud bursts every 20s so the audio alert path is exercised
		src = audioio.NewMockSource(acfg, a.logger, audioio.WithBursts(20*time.Second, time.Second, 0.5))
	} else {
		var err error
		if src, err = audioio.NewSource(acfg, a.logger); err != nil {
			return err
		}
	}
	a.sampler = audioio.NewAmplitudeSampler(src)

	if a.cfg.Alert.Enabled {
		sink, err := audioio.NewSink(acfg, a.logger)
		if err != nil {
			a.logger.Warn("alert tone disabled", "error", err)
			return nil
		}
		a.tone = audioio.NewToneAlert(sink)
		a.onShutdown(a.tone.Close)
	}
	return nil
}

func (a *App) initAudit(ctx context.Context) error {
	st := a.cfg.Storage
	if st.TextLog != "" {
		a.sinks = append(a.sinks, auditlog.NewTextSink(st.TextLog))
	}
	if st.SQLitePath != "" {
		store, err := auditlog.OpenSQLite(ctx, st.SQLitePath, a.logger)
		if err != nil {
			return err
		}
		a.sinks = append(a.sinks, store)
		a.history = store
		a.onShutdown(store.Close)
	}
	if st.PostgresDSN != "" {
		store, err := auditlog.OpenPostgres(ctx, st.PostgresDSN, a.logger)
		if err != nil {
			return err
		}
		a.sinks = append(a.sinks, store)
		a.history = store
		a.onShutdown(func() error {
			store.Close()
			return nil
		})
	}
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		return nil
	}
	client, err := auditlog.NewRedisClient(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return err
	}
	a.redis = client
	a.onShutdown(client.Close)
	return nil
}

func (a *App) initDashboard() {
	if !a.cfg.Dashboard.Enabled {
		return
	}
	opts := web.Options{
		Port:    a.cfg.Dashboard.Port,
		Logger:  a.logger,
		History: a.history,
		Camera:  a.cfg.Dashboard.CameraPreview,
	}
	if a.provider != nil {
		opts.Metrics = a.provider.Handler()
	}
	a.webServer = web.NewServer(opts)
}

func (a *App) initSession() error {
	id := uuid.NewString()
	deps := proctor.Deps{
		ID:      id,
		Frames:  a.frames,
		Faces:   a.faces,
		Objects: a.objects,
		Logger:  a.logger,
	}
	if a.sampler != nil {
		deps.Audio = a.sampler
	}
	if a.tone != nil {
		deps.Alerts = a.tone
	}
	if len(a.sinks) > 0 {
		deps.Log = a.sinks
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics
	}
	if a.redis != nil {
		a.feed = auditlog.NewRedisFeed(a.redis, id, a.logger)
		deps.Observers = append(deps.Observers, a.feed)
	}
	if a.webServer != nil {
		deps.Observers = append(deps.Observers, a.webServer)
	}

	session, err := proctor.NewSession(a.cfg.Proctor(), deps)
	if err != nil {
		return err
	}
	a.session = session
	if a.webServer != nil {
		a.webServer.Attach(session)
	}
	return nil
}

// Run starts the dashboard and the session and blocks until the session
// ends: ctx cancelled, a dashboard stop, end of stream or the duration limit.
// It returns the audit log flush error, if any.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return errors.New("app: Run called before Init")
	}

	if a.webServer != nil {
		a.webServer.StartAsync()
	}

	var stopFeed context.CancelFunc
	if a.feed != nil {
		var feedCtx context.Context
		feedCtx, stopFeed = context.WithCancel(context.Background())
		a.feedDone = make(chan struct{})
		go func() {
			defer close(a.feedDone)
			a.feed.Run(feedCtx)
		}()
	}

	err := a.session.Run(ctx)

	if stopFeed != nil {
		stopFeed()
		<-a.feedDone
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Shutdown gracefully shuts down all components. Safe to call twice.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.shutOnce.Do(func() {
		if a.session != nil {
			select {
			case <-a.session.Done():
				// Run already reported the flush result
			default:
				if err := a.session.Stop(); err != nil {
					errs = append(errs, err)
				}
			}
		}
		if a.webServer != nil {
			if err := a.webServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("dashboard: %w", err))
			}
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (a *App) onShutdown(fn func() error) {
	a.closers = append(a.closers, fn)
}
