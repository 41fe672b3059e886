package proctor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Session lifecycle errors
var (
	ErrAlreadyRunning = errors.New("proctor: session already running")
	ErrSessionStopped = errors.New("proctor: session stopped")
	ErrNotStarted     = errors.New("proctor: session not started")
	ErrNoFrameSource  = errors.New("proctor: no frame source")
	ErrNoFaceProvider = errors.New("proctor: no face provider")
)

// flushTimeout bounds the audit log flush at stop
const flushTimeout = 30 * time.Second

// State is the session lifecycle state
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText encodes the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateRunning, StateStopped} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Record is one audit log entry for a processed frame
type Record struct {
	SessionID       string      `json:"session_id"`
	Seq             int64       `json:"seq"`
	Timestamp       time.Time   `json:"timestamp"`
	Result          FrameResult `json:"result"`
	NewViolations   []string    `json:"new_violations,omitempty"`
	TotalViolations int         `json:"total_violations"`
	AudioAmplitude  int         `json:"audio_amplitude"`
}

// Summary is the trailing audit log entry written once at stop
type Summary struct {
	SessionID       string    `json:"session_id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Frames          int64     `json:"frames"`
	TotalViolations int       `json:"total_violations"`
	AudioAlerts     int       `json:"audio_alerts"`
	Reason          string    `json:"reason"`
}

// LogSink persists the audit log. Finalize is called exactly once per session.
type LogSink interface {
	Append(ctx context.Context, rec Record) error
	Finalize(ctx context.Context, summary Summary) error
}

// Stats is a point-in-time view of a session for live display
type Stats struct {
	SessionID       string       `json:"session_id"`
	State           State        `json:"state"`
	StartedAt       time.Time    `json:"started_at,omitempty"`
	Frames          int64        `json:"frames"`
	TotalViolations int          `json:"total_violations"`
	AudioAlerts     int          `json:"audio_alerts"`
	LastAmplitude   int          `json:"last_amplitude"`
	AudioExceeded   bool         `json:"audio_exceeded"`
	LastResult      *FrameResult `json:"last_result,omitempty"`
}

// Deps are the collaborators of a session. Frames and Faces are required.
type Deps struct {
	ID        string // Optional; a random UUID by default
	Frames    FrameSource
	Faces     FaceProvider
	Objects   ObjectProvider // Optional
	Audio     SampleSource   // Optional; nil disables audio monitoring
	Alerts    AlertSink      // Optional
	Log       LogSink        // Optional
	Observers []Observer
	Metrics   MetricsRecorder
	Logger    *slog.Logger
	Now       func() time.Time // Defaults to time.Now
}

// Session drives the frame cycle and the audio monitor and owns the
// violation counter and audit records.
//
//	Idle --Start--> Running --Stop / quit / end of stream / duration--> Stopped
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	agg    *Aggregator
	state  *FrameState
	bus    *EventBus
	alerts *AlertDispatcher
	audio  *AudioMonitor

	mu         sync.Mutex
	lifecycle  State
	startedAt  time.Time
	frames     int64
	total      int
	last       ViolationSet
	lastResult *FrameResult
	records    []Record
	cancel     context.CancelFunc
	done       chan struct{}
	finalErr   error
}

// NewSession creates an idle session
func NewSession(cfg Config, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("proctor: invalid config: %w", err)
	}
	if deps.Frames == nil {
		return nil, ErrNoFrameSource
	}
	if deps.Faces == nil {
		return nil, ErrNoFaceProvider
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	id := deps.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := deps.Logger.With("session", id)

	s := &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    deps.Now,
		agg:    NewAggregator(cfg),
		state:  NewFrameState(cfg),
		done:   make(chan struct{}),
	}
	s.alerts = NewAlertDispatcher(deps.Alerts, cfg.Tone, deps.Metrics, logger)
	s.bus = NewEventBus(id, s.alerts, deps.Metrics, deps.Observers...)
	if deps.Audio != nil {
		s.audio = NewAudioMonitor(cfg.AudioThreshold, s.alerts, deps.Metrics, logger, deps.Observers...)
	}
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.cfg
}

// Start opens the frame source and launches the frame loop, the audio
// monitor and the alert dispatcher. Cancelling ctx acts as a quit signal.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.lifecycle {
	case StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrSessionStopped
	}

	if err := s.deps.Frames.Open(ctx); err != nil {
		return fmt.Errorf("proctor: open frame source: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.lifecycle = StateRunning
	s.startedAt = s.now()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.alerts.Run(gctx) })
	if s.audio != nil {
		g.Go(func() error { return s.audio.Run(gctx, s.deps.Audio) })
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionStarted(ctx)
	}
	s.logger.Info("proctoring session started",
		"audio", s.audio != nil,
		"max_duration", s.cfg.MaxDuration,
		"gaze_dwell", s.cfg.GazeDwellThreshold,
		"head_persistence", s.cfg.HeadPosePersistence,
	)

	go s.supervise(runCtx, cancel, g)
	return nil
}

// Stop ends the session and flushes the audit log. It is idempotent, safe
// to call from any goroutine, and returns the flush error if any.
// It must not be called from an Observer callback.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.lifecycle {
	case StateIdle:
		s.lifecycle = StateStopped
		close(s.done)
		s.mu.Unlock()
		return nil
	case StateRunning:
		s.cancel()
	}
	s.mu.Unlock()

	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

// Wait blocks until the session has stopped and been finalized
func (s *Session) Wait() error {
	s.mu.Lock()
	if s.lifecycle == StateIdle {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()

	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

// Run starts the session and waits for it to end. Cancel ctx to quit.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// Done is closed once the session is stopped and finalized
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stats returns a snapshot of the live counters
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		SessionID:       s.id,
		State:           s.lifecycle,
		StartedAt:       s.startedAt,
		Frames:          s.frames,
		TotalViolations: s.total,
		LastResult:      s.lastResult,
	}
	s.mu.Unlock()

	if s.audio != nil {
		st.LastAmplitude = s.audio.LastAmplitude()
		st.AudioExceeded = s.audio.LastExceeded()
		st.AudioAlerts = s.audio.Alerts()
	}
	return st
}

// Records returns a copy of the audit records so far
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Session) supervise(ctx context.Context, cancel context.CancelFunc, g *errgroup.Group) {
	reason := s.frameLoop(ctx)
	cancel()

	// Release the audio device so a read in progress returns
	if s.deps.Audio != nil {
		if err := s.deps.Audio.Close(); err != nil {
			s.logger.Warn("close audio source", "error", err)
		}
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("session worker failed", "error", err)
	}

	s.finish(reason)
}

func (s *Session) frameLoop(ctx context.Context) string {
	for {
		if ctx.Err() != nil {
			return "stopped"
		}
		if s.cfg.MaxDuration > 0 && s.now().Sub(s.startedAt) >= s.cfg.MaxDuration {
			s.logger.Info("session duration elapsed", "duration", s.cfg.MaxDuration)
			return "duration elapsed"
		}

		frame, err := s.deps.Frames.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "stopped"
			}
			s.logger.Info("frame source ended", "error", err)
			return "end of stream"
		}

		s.processFrame(ctx, frame)
	}
}

func (s *Session) processFrame(ctx context.Context, frame Frame) {
	began := time.Now()
	now := s.now()

	snap := BuildSnapshot(frame, s.deps.Faces, s.deps.Objects, now)
	res := s.agg.Aggregate(snap, s.state)

	// last and total are written only here; the lock is for Stats readers
	s.mu.Lock()
	prev, total, seq := s.last, s.total, s.frames+1
	s.mu.Unlock()

	edge := s.bus.Commit(prev, res.Violations, seq, total, now)

	rec := Record{
		SessionID:       s.id,
		Seq:             seq,
		Timestamp:       now,
		Result:          res,
		NewViolations:   edge.New.Messages(),
		TotalViolations: total + edge.New.Len(),
	}
	if s.audio != nil {
		rec.AudioAmplitude = s.audio.LastAmplitude()
	}

	s.mu.Lock()
	s.frames = seq
	s.total = rec.TotalViolations
	s.last = res.Violations
	s.lastResult = &rec.Result
	s.records = append(s.records, rec)
	s.mu.Unlock()

	if !res.Violations.Empty() {
		s.logger.Warn("violations", "seq", seq, "violations", res.Violations.Messages(), "total", rec.TotalViolations)
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordFrame(ctx, time.Since(began))
	}
	if len(s.deps.Observers) > 0 {
		stats := s.Stats()
		for _, o := range s.deps.Observers {
			o.FrameProcessed(frame, rec, stats)
		}
	}
}

func (s *Session) finish(reason string) {
	if err := s.deps.Frames.Close(); err != nil {
		s.logger.Warn("close frame source", "error", err)
	}

	s.mu.Lock()
	s.lifecycle = StateStopped
	records := s.records
	summary := Summary{
		SessionID:       s.id,
		StartedAt:       s.startedAt,
		EndedAt:         s.now(),
		Frames:          s.frames,
		TotalViolations: s.total,
		Reason:          reason,
	}
	s.mu.Unlock()
	if s.audio != nil {
		summary.AudioAlerts = s.audio.Alerts()
	}

	var err error
	if s.cfg.SaveLog && s.deps.Log != nil && len(records) > 0 {
		err = s.flush(records, summary)
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionEnded(context.Background())
	}
	s.logger.Info("proctoring session ended",
		"reason", reason,
		"frames", summary.Frames,
		"violations", summary.TotalViolations,
		"audio_alerts", summary.AudioAlerts,
	)

	s.mu.Lock()
	s.finalErr = err
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) flush(records []Record, summary Summary) error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	var errs []error
	for _, rec := range records {
		if err := s.deps.Log.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("append record %d: %w", rec.Seq, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	if err := s.deps.Log.Finalize(ctx, summary); err != nil {
		errs = append(errs, fmt.Errorf("finalize: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("audit log flush incomplete", "error", err)
		return fmt.Errorf("proctor: flush audit log: %w", err)
	}
	s.logger.Info("audit log flushed", "records", len(records))
	return nil
}
