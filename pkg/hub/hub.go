package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultQueue = 256

// Options configure a Hub
type Options struct {
	Name   string
	Logger *slog.Logger
	Replay int // Recent payloads handed to new subscribers, 0 = none
	Queue  int // Per-subscriber queue length, default 256
}

// Stats are the delivery counters of a hub
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"` // Payloads lost to a full inbox or a slow subscriber
	Evicted     uint64 `json:"evicted"` // Subscribers disconnected for falling behind
}

// Hub owns a set of subscribers. All membership and replay changes happen on
// the Run goroutine.
type Hub struct {
	name   string
	logger *slog.Logger
	replay int
	queue  int

	inbox chan Payload
	join  chan *Subscriber
	leave chan *Subscriber

	done     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	subs    map[*Subscriber]struct{}
	running bool

	published atomic.Uint64
	dropped   atomic.Uint64
	evicted   atomic.Uint64
}

// New creates a hub. Call Run to start delivering.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queue := opts.Queue
	if queue <= 0 {
		queue = defaultQueue
	}
	return &Hub{
		name:   opts.Name,
		logger: logger.With("feed", opts.Name),
		replay: opts.Replay,
		queue:  queue,
		inbox:  make(chan Payload, defaultQueue),
		join:   make(chan *Subscriber),
		leave:  make(chan *Subscriber),
		done:   make(chan struct{}),
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Name returns the feed name
func (h *Hub) Name() string {
	return h.name
}

// Run delivers payloads until Stop
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	var (
		recent []Payload
		seq    uint64
	)

	for {
		select {
		case sub := <-h.join:
			// Catch up first; a subscriber whose queue cannot hold the replay
			// simply starts with the newest part of it
			start := max(0, len(recent)-cap(sub.queue))
			for _, p := range recent[start:] {
				sub.queue <- p
			}
			h.mu.Lock()
			h.subs[sub] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber joined", "subscribers", n, "replayed", len(recent)-start)

		case sub := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.queue)
			}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber left", "subscribers", n)

		case p := <-h.inbox:
			seq++
			p.Seq = seq
			if h.replay > 0 {
				if len(recent) == h.replay {
					recent = append(recent[:0], recent[1:]...)
				}
				recent = append(recent, p)
			}

			h.mu.Lock()
			for sub := range h.subs {
				select {
				case sub.queue <- p:
				default:
					close(sub.queue)
					delete(h.subs, sub)
					h.evicted.Add(1)
					h.dropped.Add(1)
					h.logger.Warn("evicted slow subscriber", "seq", p.Seq)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for sub := range h.subs {
				close(sub.queue)
				delete(h.subs, sub)
			}
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every subscriber. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish queues p for delivery. It never blocks; when the inbox is full the
// payload is dropped and counted.
func (h *Hub) Publish(p Payload) {
	select {
	case h.inbox <- p:
		h.published.Add(1)
	default:
		h.dropped.Add(1)
		h.logger.Warn("feed inbox full, dropping payload")
	}
}

// PublishJSON encodes v and publishes it
func (h *Hub) PublishJSON(v any) error {
	p, err := JSON(v)
	if err != nil {
		return err
	}
	h.Publish(p)
	return nil
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns the delivery counters
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.Subscribers(),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
		Evicted:     h.evicted.Load(),
	}
}

// IsRunning reports whether Run is active
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
