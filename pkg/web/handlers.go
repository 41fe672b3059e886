package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-proctor/pkg/hub"
)

// handleStatus returns the latest session stats
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if ctrl := s.controller(); ctrl != nil {
		return c.JSON(ctrl.Stats())
	}
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return c.JSON(s.stats)
}

// handleRecords returns the most recent records, oldest first
func (s *Server) handleRecords(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be positive"})
	}

	s.activityMu.RLock()
	defer s.activityMu.RUnlock()
	recs := s.records
	if len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return c.JSON(recs)
}

// handleViolations returns recent violation and audio events
func (s *Server) handleViolations(c *fiber.Ctx) error {
	s.activityMu.RLock()
	defer s.activityMu.RUnlock()
	return c.JSON(s.violations)
}

// handleSessions lists stored sessions
func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.opts.History == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session history not configured"})
	}
	sessions, err := s.opts.History.Sessions(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		s.logger.Error("list sessions failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(sessions)
}

// handleStop ends the running session
func (s *Server) handleStop(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no session attached"})
	}
	s.logger.Info("session stop requested from dashboard", "ip", c.IP())
	// Stop flushes the audit log; the session is stopped even when that fails
	if err := ctrl.Stop(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"stopped": true, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"stopped": true})
}

// handleFeeds reports websocket delivery counters per feed
func (s *Server) handleFeeds(c *fiber.Ctx) error {
	feeds := make(map[string]hub.Stats, 3)
	for _, h := range []*hub.Hub{s.statusHub, s.eventsHub, s.cameraHub} {
		feeds[h.Name()] = h.Stats()
	}
	return c.JSON(feeds)
}

// handleStatusWS sends the latest stats, then live updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	serveFeed(s.statusHub, c)
}

// handleEventsWS replays recent events, then streams new ones
func (s *Server) handleEventsWS(c *websocket.Conn) {
	serveFeed(s.eventsHub, c)
}

// handleCameraWS streams JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	serveFeed(s.cameraHub, c)
}

func serveFeed(h *hub.Hub, c *websocket.Conn) {
	if sub := hub.Subscribe(h, c); sub != nil {
		sub.Serve()
	}
}
