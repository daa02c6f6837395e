// statewatch - follow a running pacvision dashboard from the terminal
// Prints loop stats once, then every grid snapshot pushed over the websocket.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-pacvision/internal/httpc"
	"github.com/teslashibe/go-pacvision/pkg/debug"
	"github.com/teslashibe/go-pacvision/pkg/grid"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Dashboard host:port")
	ascii := flag.Bool("ascii", false, "Print the full maze for every snapshot")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Subset of the dashboard's /api/stats payload
	var stats struct {
		SessionID string  `json:"session_id"`
		Processed int     `json:"frames_processed"`
		Skipped   int     `json:"frames_skipped"`
		MeanMs    float64 `json:"latency_mean_ms"`
		StdDevMs  float64 `json:"latency_stddev_ms"`
	}
	if err := httpc.GetJSON(ctx, "http://"+*addr+"/api/stats", &stats); err != nil {
		log.Printf("⚠️  Stats unavailable: %v", err)
	} else {
		fmt.Printf("📊 Session %s: %d frames, %d skipped, %.1f±%.1f ms\n",
			stats.SessionID, stats.Processed, stats.Skipped, stats.MeanMs, stats.StdDevMs)
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/state"}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer ws.Close()
	fmt.Printf("🔌 Connected to %s\n", u.String())

	go func() {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		ws.Close()
	}()

	last := -1
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("⚠️  Connection closed: %v", err)
			}
			return
		}

		var s grid.State
		if err := json.Unmarshal(data, &s); err != nil {
			log.Printf("⚠️  Bad snapshot: %v", err)
			continue
		}

		if *ascii {
			fmt.Print("\033[H\033[2J")
			fmt.Print(debug.RenderGrid(s.Grid, s.Character))
		} else if s.Eaten == last {
			continue
		}
		last = s.Eaten

		pos := "-"
		if s.Character != nil {
			pos = fmt.Sprintf("(%d,%d)", s.Character.X, s.Character.Y)
		}
		fmt.Printf("🟡 %s eaten %d/%d, %d left\n", pos, s.Eaten, s.Total, s.Remaining)
	}
}
