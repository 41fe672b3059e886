package proctor

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// fakeFrames yields limit frames then io.EOF. A negative limit never ends.
type fakeFrames struct {
	mu      sync.Mutex
	limit   int
	served  int
	opened  int
	closed  int
	openErr error
}

func (f *fakeFrames) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.opened++
	return nil
}

func (f *fakeFrames) Next(ctx context.Context) (Frame, error) {
	f.mu.Lock()
	if f.limit >= 0 && f.served >= f.limit {
		f.mu.Unlock()
		return Frame{}, io.EOF
	}
	f.served++
	seq := f.served
	infinite := f.limit < 0
	f.mu.Unlock()

	if infinite {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return Frame{Seq: int64(seq), Width: testWidth, Height: testHeight}, nil
}

func (f *fakeFrames) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// fakeFaces reports a fixed face count, pose and gaze for every frame
type fakeFaces struct {
	count     int
	detectErr error
	pose      *HeadPose
	gaze      *Point
}

func (f *fakeFaces) DetectFaces(frame Frame) ([]Face, error) {
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return make([]Face, f.count), nil
}

func (f *fakeFaces) Landmarks(frame Frame, face Face) (Landmarks, error) {
	return Landmarks{{X: 1, Y: 1}}, nil
}

func (f *fakeFaces) Pose(frame Frame, lm Landmarks) (HeadPose, error) {
	if f.pose == nil {
		return HeadPose{}, errors.New("pose unavailable")
	}
	return *f.pose, nil
}

func (f *fakeFaces) Gaze(frame Frame, lm Landmarks) (Point, bool) {
	if f.gaze == nil {
		return Point{}, false
	}
	return *f.gaze, true
}

type fakeObjects struct {
	labels []string
	err    error
}

func (f *fakeObjects) DetectObjects(frame Frame) ([]DetectedObject, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]DetectedObject, len(f.labels))
	for i, l := range f.labels {
		out[i] = DetectedObject{Label: l, Confidence: 0.9}
	}
	return out, nil
}

// fakeLog records everything appended and finalized
type fakeLog struct {
	mu        sync.Mutex
	records   []Record
	summaries []Summary
	appendErr error
}

func (l *fakeLog) Append(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *fakeLog) Finalize(ctx context.Context, s Summary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries = append(l.summaries, s)
	return nil
}

func (l *fakeLog) finalized() []Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Summary(nil), l.summaries...)
}

// fakeAlerts counts triggers
type fakeAlerts struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *fakeAlerts) Trigger(ctx context.Context, freq int, d time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.err
}

func (a *fakeAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// fakeSamples yields the scripted amplitudes, then err (io.EOF if nil)
type fakeSamples struct {
	mu         sync.Mutex
	amplitudes []int
	err        error
	closed     bool
}

func (s *fakeSamples) NextSample(ctx context.Context) (AudioSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.amplitudes) == 0 {
		if s.err != nil {
			return AudioSample{}, s.err
		}
		return AudioSample{}, io.EOF
	}
	a := s.amplitudes[0]
	s.amplitudes = s.amplitudes[1:]
	return AudioSample{Timestamp: time.Now(), Amplitude: a}, nil
}

func (s *fakeSamples) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// recordingObserver captures callbacks
type recordingObserver struct {
	mu         sync.Mutex
	frames     int
	violations []ViolationEvent
	audio      []AudioSample
}

func (o *recordingObserver) FrameProcessed(frame Frame, rec Record, stats Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames++
}

func (o *recordingObserver) ViolationRaised(ev ViolationEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.violations = append(o.violations, ev)
}

func (o *recordingObserver) AudioAlert(s AudioSample) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio = append(o.audio, s)
}

func (o *recordingObserver) events() []ViolationEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ViolationEvent(nil), o.violations...)
}

// stepClock advances by step on every call
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
