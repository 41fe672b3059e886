package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

const (
	// ChannelPrefix prefixes the per-session Redis channel
	ChannelPrefix  = "proctor:"
	publishTimeout = 5 * time.Second
	queueSize      = 64
)

// Event types carried on the Redis channel
const (
	EventViolation  = "violation"
	EventAudioAlert = "audio_alert"
)

// Message is the JSON envelope published to Redis
type Message struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
	At        int64           `json:"at"` // Unix millis
}

// Publisher is the subset of the Redis client used for publishing
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Channel returns the Redis channel for a session
func Channel(sessionID string) string {
	return ChannelPrefix + sessionID
}

// RedisFeed forwards violation events and audio alerts to Redis. Observer
// callbacks only enqueue; Run does the publishing, so a slow or absent Redis
// never stalls the frame cycle.
type RedisFeed struct {
	client    Publisher
	sessionID string
	logger    *slog.Logger

	queue   chan Message
	dropped atomic.Int64
}

// NewRedisFeed creates a feed for one session
func NewRedisFeed(client Publisher, sessionID string, logger *slog.Logger) *RedisFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{
		client:    client,
		sessionID: sessionID,
		logger:    logger,
		queue:     make(chan Message, queueSize),
	}
}

// Dropped returns how many messages were discarded on a full queue
func (f *RedisFeed) Dropped() int64 {
	return f.dropped.Load()
}

// FrameProcessed is a no-op; per-frame status goes to the dashboard only
func (f *RedisFeed) FrameProcessed(proctor.Frame, proctor.Record, proctor.Stats) {}

// ViolationRaised queues a violation event
func (f *RedisFeed) ViolationRaised(ev proctor.ViolationEvent) {
	f.enqueue(EventViolation, ev.At, ev)
}

// AudioAlert queues an audio alert
func (f *RedisFeed) AudioAlert(sample proctor.AudioSample) {
	f.enqueue(EventAudioAlert, sample.Timestamp, sample)
}

func (f *RedisFeed) enqueue(event string, at time.Time, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		f.logger.Warn("redis feed: encode failed", "event", event, "error", err)
		return
	}
	msg := Message{Event: event, SessionID: f.sessionID, Data: data, At: at.UnixMilli()}
	select {
	case f.queue <- msg:
	default:
		f.dropped.Add(1)
	}
}

// Run publishes queued messages until ctx is done, then drains what is left
func (f *RedisFeed) Run(ctx context.Context) error {
	channel := Channel(f.sessionID)
	for {
		select {
		case msg := <-f.queue:
			f.publish(context.Background(), channel, msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-f.queue:
					f.publish(context.Background(), channel, msg)
				default:
					if n := f.Dropped(); n > 0 {
						f.logger.Warn("redis feed dropped messages", "count", n)
					}
					return nil
				}
			}
		}
	}
}

func (f *RedisFeed) publish(parent context.Context, channel string, msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, publishTimeout)
	defer cancel()
	if err := f.client.Publish(ctx, channel, body).Err(); err != nil {
		f.logger.Warn("redis publish failed", "channel", channel, "event", msg.Event, "error", err)
	}
}

// NewRedisClient connects to addr and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Subscribe delivers messages from every session channel to handler until
// ctx is done.
func Subscribe(ctx context.Context, client *redis.Client, handler func(channel string, msg Message)) error {
	pubsub := client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			handler(m.Channel, msg)
		}
	}
}
