// proctor-watch follows a running proctor dashboard (or the Redis feed)
// and prints violation events as they happen.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-proctor/internal/httpc"
	"github.com/teslashibe/go-proctor/internal/log"
	"github.com/teslashibe/go-proctor/pkg/auditlog"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/web"
)

const reconnectDelay = 2 * time.Second

func main() {
	addr := flag.String("addr", "localhost:8080", "Dashboard host:port")
	redisAddr := flag.String("redis", "", "Follow the Redis feed at host:port instead of the dashboard")
	stop := flag.Bool("stop", false, "Ask the dashboard to stop the session and exit")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := log.Setup(log.Options{Level: *logLevel})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	base := "http://" + *addr
	var err error
	switch {
	case *stop:
		err = httpc.PostJSON(ctx, base+"/api/session/stop", nil, nil)
		if err == nil {
			fmt.Println("🛑 Session stopped")
		}
	case *redisAddr != "":
		err = watchRedis(ctx, *redisAddr)
	default:
		printStatus(ctx, base)
		err = watchDashboard(ctx, *addr)
	}
	if err != nil {
		logger.Error("proctor-watch failed", "error", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, base string) {
	var st proctor.Stats
	if err := httpc.GetJSON(ctx, base+"/api/status", &st); err != nil {
		log.Warn("status unavailable", "error", err)
		return
	}
	fmt.Printf("📋 Session %s (%s): %d frames, %d violation incidents\n",
		st.SessionID, st.State, st.Frames, st.TotalViolations)
}

// watchDashboard streams /ws/events, reconnecting until ctx is done
func watchDashboard(ctx context.Context, addr string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/events"}
	dialer := websocket.Dialer{HandshakeTimeout: httpc.DefaultConnectTimeout}

	for {
		conn, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("dashboard unreachable, retrying", "addr", addr, "error", err)
		} else {
			log.Info("following dashboard events", "url", u.String())
			readEvents(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func readEvents(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadJSON on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		var ev web.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				log.Warn("event stream closed", "error", err)
			}
			return
		}
		printEvent(ev)
	}
}

func printEvent(ev web.Event) {
	switch {
	case ev.Violation != nil:
		v := ev.Violation
		fmt.Printf("%s ⚠️  #%d %s (frame %d)\n", v.At.Format("15:04:05"), v.Total, v.Message, v.Seq)
	case ev.Audio != nil:
		fmt.Printf("%s 🔊 suspicious audio, amplitude %d\n", ev.Audio.Timestamp.Format("15:04:05"), ev.Audio.Amplitude)
	}
}

func watchRedis(ctx context.Context, addr string) error {
	client, err := auditlog.NewRedisClient(ctx, addr, os.Getenv("PROCTOR_REDIS_PASSWORD"), 0)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info("following redis feed", "addr", addr, "pattern", auditlog.ChannelPrefix+"*")
	return auditlog.Subscribe(ctx, client, func(channel string, msg auditlog.Message) {
		at := time.UnixMilli(msg.At).Format("15:04:05")
		fmt.Printf("%s [%s] %s %s\n", at, msg.SessionID, msg.Event, msg.Data)
	})
}
