// Package web provides the real-time perception dashboard
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"image/png"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-pacvision/internal/log"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/hub"
	"github.com/teslashibe/go-pacvision/pkg/session"
)

//go:embed static
var staticFiles embed.FS

const maxEvents = 500

// Event is a notable perception event shown in the dashboard log
type Event struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // map, pellet, character, info
	Message string `json:"message"`
}

// Server is the web dashboard server. It implements session.Sink and
// session.BackgroundSink.
type Server struct {
	app  *fiber.App
	port string

	// Latest snapshot
	state   *grid.State
	stateMu sync.RWMutex

	// PNG of the extracted static map
	background   []byte
	backgroundMu sync.RWMutex

	// Event buffer (last maxEvents entries)
	events   []Event
	eventsMu sync.RWMutex

	// Hubs for websocket broadcast, stopped by Shutdown
	stateHub *hub.Hub
	eventHub *hub.Hub
	hubCtx   context.Context
	cancel   context.CancelFunc
	hubsOnce sync.Once

	// StatsFunc supplies loop statistics for /api/stats
	StatsFunc func() session.Stats
}

// NewServer creates a new web dashboard server
func NewServer(port string) *Server {
	s := &Server{
		port:     port,
		events:   make([]Event, 0, maxEvents),
		stateHub: hub.New("state"),
		eventHub: hub.New("events"),
	}
	s.hubCtx, s.cancel = context.WithCancel(context.Background())

	app := fiber.New(fiber.Config{
		AppName:               "pacvision",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/grid", s.handleGrid)
	api.Get("/stats", s.handleStats)
	api.Get("/events", s.handleEvents)
	api.Get("/background.png", s.handleBackground)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/state", websocket.New(s.serveHub(s.stateHub)))
	app.Get("/ws/events", websocket.New(s.serveHub(s.eventHub)))

	// Dashboard page
	static, _ := fs.Sub(staticFiles, "static")
	app.Use("/", filesystem.New(filesystem.Config{
		Root:  http.FS(static),
		Index: "index.html",
	}))

	s.app = app
	return s
}

// Start starts the hubs and blocks serving HTTP
func (s *Server) Start() error {
	s.startHubs()
	return s.listen()
}

// StartAsync starts the hubs, then serves HTTP in a goroutine
func (s *Server) StartAsync() {
	s.startHubs()
	go func() {
		if err := s.listen(); err != nil {
			log.Warn("web server error", "error", err)
		}
	}()
}

func (s *Server) listen() error {
	log.Info("web dashboard listening", "url", fmt.Sprintf("http://localhost:%s", s.port))
	return s.app.Listen(":" + s.port)
}

// startHubs runs both hubs once. After Shutdown they exit immediately.
func (s *Server) startHubs() {
	s.hubsOnce.Do(func() {
		go s.stateHub.Run(s.hubCtx)
		go s.eventHub.Run(s.hubCtx)
	})
}

// Publish stores the snapshot and broadcasts it to state viewers
func (s *Server) Publish(st grid.State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = &st
	s.stateMu.Unlock()

	if err := s.stateHub.BroadcastJSON(st); err != nil {
		log.Warn("encode state", "error", err)
	}
	s.diffEvents(prev, &st)
}

// PublishBackground stores the extracted map for /api/background.png
func (s *Server) PublishBackground(f *frame.Frame) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.ToRGBA()); err != nil {
		log.Warn("encode background", "error", err)
		return
	}

	s.backgroundMu.Lock()
	s.background = buf.Bytes()
	s.backgroundMu.Unlock()

	s.AddEvent("map", fmt.Sprintf("static map extracted (%dx%d)", f.Width, f.Height))
}

// AddEvent adds an event and broadcasts it to clients
func (s *Server) AddEvent(eventType, message string) {
	entry := Event{
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
		Message: message,
	}

	s.eventsMu.Lock()
	s.events = append(s.events, entry)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	s.eventHub.BroadcastJSON(entry)
}

// diffEvents reports pellet and character changes between two snapshots
func (s *Server) diffEvents(prev, cur *grid.State) {
	if prev == nil {
		return
	}
	if cur.Eaten > prev.Eaten && cur.Character != nil {
		s.AddEvent("pellet", fmt.Sprintf("pellet eaten at (%d,%d), %d left",
			cur.Character.X, cur.Character.Y, cur.Remaining))
	}
	switch {
	case prev.Character != nil && cur.Character == nil:
		s.AddEvent("character", "character lost")
	case prev.Character == nil && cur.Character != nil:
		s.AddEvent("character", fmt.Sprintf("character found at (%d,%d)", cur.Character.X, cur.Character.Y))
	}
}

// StateHub returns the snapshot hub for external use
func (s *Server) StateHub() *hub.Hub {
	return s.stateHub
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
