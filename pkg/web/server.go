// Package web serves the live proctoring dashboard: a JSON API, websocket
// feeds for status, violation events and the camera, and the metrics
// endpoint.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-proctor/pkg/auditlog"
	"github.com/teslashibe/go-proctor/pkg/hub"
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

const (
	maxRecords    = 500
	maxViolations = 500

	eventReplay = 200 // Events a new /ws/events subscriber catches up on
	cameraQueue = 8   // A viewer this many frames behind is disconnected
)

// Controller is the session surface the dashboard can drive
type Controller interface {
	Stats() proctor.Stats
	Stop() error
}

// Event is one entry on the events feed
type Event struct {
	Type      string                  `json:"type"` // violation, audio_alert
	Violation *proctor.ViolationEvent `json:"violation,omitempty"`
	Audio     *proctor.AudioSample    `json:"audio,omitempty"`
}

// Options configures the server
type Options struct {
	Port    string
	Logger  *slog.Logger
	Metrics http.Handler           // Served at /metrics when set
	History auditlog.SessionLister // Backs /api/sessions when set
	Camera  bool                   // Stream frames on /ws/camera
}

// Server is the dashboard server. It implements proctor.Observer.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger
	opts   Options

	ctrlMu sync.RWMutex
	ctrl   Controller

	// Latest stats pushed by the frame loop
	stats   proctor.Stats
	statsMu sync.RWMutex

	// Ring buffers of recent activity
	records    []proctor.Record
	violations []Event
	activityMu sync.RWMutex

	statusHub *hub.Hub
	eventsHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates a dashboard server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:       opts.Port,
		logger:     logger.With("component", "web"),
		opts:       opts,
		records:    make([]proctor.Record, 0, maxRecords),
		violations: make([]Event, 0, maxViolations),
		statusHub:  hub.New(hub.Options{Name: "status", Logger: logger, Replay: 1}),
		eventsHub:  hub.New(hub.Options{Name: "events", Logger: logger, Replay: eventReplay}),
		cameraHub:  hub.New(hub.Options{Name: "camera", Logger: logger, Queue: cameraQueue}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Proctor Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/records", s.handleRecords)
	api.Get("/violations", s.handleViolations)
	api.Get("/sessions", s.handleSessions)
	api.Get("/feeds", s.handleFeeds)
	api.Post("/session/stop", s.handleStop)

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Attach connects the session the dashboard reports on and controls
func (s *Server) Attach(ctrl Controller) {
	s.ctrlMu.Lock()
	s.ctrl = ctrl
	s.ctrlMu.Unlock()

	st := ctrl.Stats()
	s.statsMu.Lock()
	s.stats = st
	s.statsMu.Unlock()
	s.statusHub.PublishJSON(st)
}

func (s *Server) controller() Controller {
	s.ctrlMu.RLock()
	defer s.ctrlMu.RUnlock()
	return s.ctrl
}

// Start starts the hubs and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve starts the hubs and serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())

	go s.statusHub.Run()
	go s.eventsHub.Run()
	go s.cameraHub.Run()

	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("dashboard server failed", "error", err)
		}
	}()
}

// Shutdown disconnects websocket clients and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.statusHub.Stop()
	s.eventsHub.Stop()
	s.cameraHub.Stop()
	return s.app.ShutdownWithContext(ctx)
}

// FrameProcessed records the frame and pushes status and camera updates
func (s *Server) FrameProcessed(frame proctor.Frame, rec proctor.Record, stats proctor.Stats) {
	s.statsMu.Lock()
	s.stats = stats
	s.statsMu.Unlock()

	s.activityMu.Lock()
	s.records = appendRing(s.records, rec, maxRecords)
	s.activityMu.Unlock()

	s.statusHub.PublishJSON(stats)
	if s.opts.Camera && len(frame.JPEG) > 0 && s.cameraHub.Subscribers() > 0 {
		s.cameraHub.Publish(hub.JPEG(frame.JPEG))
	}
}

// ViolationRaised records and broadcasts a violation
func (s *Server) ViolationRaised(ev proctor.ViolationEvent) {
	s.pushEvent(Event{Type: "violation", Violation: &ev})
}

// AudioAlert records and broadcasts an audio alert
func (s *Server) AudioAlert(sample proctor.AudioSample) {
	s.pushEvent(Event{Type: "audio_alert", Audio: &sample})
}

func (s *Server) pushEvent(ev Event) {
	s.activityMu.Lock()
	s.violations = appendRing(s.violations, ev, maxViolations)
	s.activityMu.Unlock()
	s.eventsHub.PublishJSON(ev)
}

func appendRing[T any](ring []T, v T, limit int) []T {
	if len(ring) >= limit {
		copy(ring, ring[1:])
		ring = ring[:len(ring)-1]
	}
	return append(ring, v)
}
