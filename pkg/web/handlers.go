package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-pacvision/pkg/debug"
	"github.com/teslashibe/go-pacvision/pkg/hub"
)

// handleState returns the latest snapshot
func (s *Server) handleState(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.state == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no state yet",
		})
	}
	return c.JSON(s.state)
}

// handleGrid renders the latest snapshot as ASCII
func (s *Server) handleGrid(c *fiber.Ctx) error {
	s.stateMu.RLock()
	st := s.state
	s.stateMu.RUnlock()
	if st == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("no state yet\n")
	}
	return c.SendString(debug.RenderGrid(st.Grid, st.Character))
}

// handleStats returns loop statistics
func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.StatsFunc == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "stats not configured",
		})
	}
	return c.JSON(s.StatsFunc())
}

// handleEvents returns recent events
func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

// handleBackground serves the extracted static map
func (s *Server) handleBackground(c *fiber.Ctx) error {
	s.backgroundMu.RLock()
	data := s.background
	s.backgroundMu.RUnlock()
	if data == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}

// serveHub attaches a websocket connection to a broadcast hub until it closes
func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			conn.Close()
			return
		}
		client.Run()
	}
}
