package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn records writes and blocks reads until closed. Once released it
// counts any further use, as a pooled connection would be reused.
type fakeConn struct {
	mu         sync.Mutex
	written    [][]byte
	closed     chan struct{}
	once       sync.Once
	writeDelay time.Duration

	released atomic.Bool
	late     atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) Close() error {
	if c.released.Load() {
		c.late.Add(1)
	}
	c.once.Do(func() { close(c.closed) })
	return nil
}
func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}
func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	time.Sleep(c.writeDelay)
	if c.released.Load() {
		c.late.Add(1)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func recv(t *testing.T, sub *Subscriber) Payload {
	t.Helper()
	select {
	case p, ok := <-sub.queue:
		if !ok {
			t.Fatal("subscriber queue closed")
		}
		return p
	case <-time.After(time.Second):
		t.Fatal("no payload")
	}
	return Payload{}
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	h := New(Options{Name: "events"})
	go h.Run()
	defer h.Stop()

	a, b := Subscribe(h, newFakeConn()), Subscribe(h, newFakeConn())
	waitFor(t, func() bool { return h.Subscribers() == 2 })

	if err := h.PublishJSON(map[string]int{"total": 3}); err != nil {
		t.Fatal(err)
	}
	for i, sub := range []*Subscriber{a, b} {
		p := recv(t, sub)
		if p.Kind != KindJSON || p.Seq != 1 || string(p.Data) != `{"total":3}` {
			t.Errorf("subscriber %d: got %+v", i, p)
		}
	}
}

func TestHub_ReplaysRecentPayloads(t *testing.T) {
	tests := []struct {
		name    string
		replay  int
		queue   int
		publish int
		want    []uint64
	}{
		{"no replay", 0, 4, 3, nil},
		{"bounded by replay", 2, 8, 5, []uint64{4, 5}},
		{"bounded by queue", 10, 2, 5, []uint64{4, 5}},
		{"all", 10, 10, 3, []uint64{1, 2, 3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := New(Options{Name: "test", Replay: tc.replay, Queue: tc.queue})
			go h.Run()
			defer h.Stop()

			// early has room for everything, so once it holds every payload
			// the hub has processed the whole inbox
			early := &Subscriber{hub: h, conn: newFakeConn(), queue: make(chan Payload, 64)}
			h.join <- early
			for i := 0; i < tc.publish; i++ {
				h.Publish(JPEG([]byte{byte(i)}))
			}
			waitFor(t, func() bool { return len(early.queue) == tc.publish })

			sub := Subscribe(h, newFakeConn())
			waitFor(t, func() bool { return h.Subscribers() == 2 })
			var got []uint64
			for len(sub.queue) > 0 {
				got = append(got, (<-sub.queue).Seq)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("replayed %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("replayed %v, want %v", got, tc.want)
					break
				}
			}
		})
	}
}

func TestHub_EvictsSlowSubscriber(t *testing.T) {
	h := New(Options{Name: "camera", Queue: 1})
	go h.Run()
	defer h.Stop()

	slow := Subscribe(h, newFakeConn())
	waitFor(t, func() bool { return h.Subscribers() == 1 })

	h.Publish(JPEG([]byte{1}))
	h.Publish(JPEG([]byte{2}))
	waitFor(t, func() bool { return h.Subscribers() == 0 })

	// The queued payload survives, then the queue is closed
	if p, ok := <-slow.queue; !ok || p.Data[0] != 1 {
		t.Errorf("first payload: %+v %v", p, ok)
	}
	if _, ok := <-slow.queue; ok {
		t.Error("expected queue closed")
	}

	st := h.Stats()
	if st.Evicted != 1 || st.Dropped != 1 || st.Published != 2 {
		t.Errorf("stats: %+v", st)
	}
}

func TestHub_StopClosesSubscribers(t *testing.T) {
	h := New(Options{Name: "status"})
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	sub := Subscribe(h, newFakeConn())
	waitFor(t, h.IsRunning)
	h.Stop()
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, ok := <-sub.queue; ok {
		t.Error("expected queue closed")
	}
	if h.IsRunning() {
		t.Error("hub still running")
	}
	if Subscribe(h, newFakeConn()) != nil {
		t.Error("Subscribe after Stop should return nil")
	}
}

func TestSubscriber_ServeWritesAndLeaves(t *testing.T) {
	h := New(Options{Name: "events", Replay: 1})
	go h.Run()
	defer h.Stop()

	h.Publish(JPEG([]byte{7}))
	conn := newFakeConn()
	sub := Subscribe(h, conn)
	served := make(chan struct{})
	go func() {
		sub.Serve()
		close(served)
	}()

	waitFor(t, func() bool { return conn.writes() >= 1 })

	// Peer disconnects
	conn.Close()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
	waitFor(t, func() bool { return h.Subscribers() == 0 })
}

func TestSubscriber_ServeWaitsForWriter(t *testing.T) {
	h := New(Options{Name: "events", Replay: 1})
	go h.Run()
	defer h.Stop()

	h.Publish(JPEG([]byte{1}))
	conn := newFakeConn()
	conn.writeDelay = 100 * time.Millisecond
	sub := Subscribe(h, conn)
	waitFor(t, func() bool { return h.Subscribers() == 1 })

	served := make(chan struct{})
	go func() {
		sub.Serve()
		// The websocket handler returns here and the connection goes back
		// to the pool
		conn.released.Store(true)
		close(served)
	}()

	// Disconnect while the writer is inside WriteMessage
	time.Sleep(20 * time.Millisecond)
	conn.Close()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	time.Sleep(3 * conn.writeDelay)
	if n := conn.late.Load(); n != 0 {
		t.Errorf("connection used %d times after Serve returned", n)
	}
}
