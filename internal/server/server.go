package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/scythe504/ninjahunt-backend/internal/feed"
	"github.com/scythe504/ninjahunt-backend/internal/game"
)

// Server exposes the read-only HTTP surface: health, game status, the
// leaderboard, and the websocket feed. It never mutates game state; all
// mutation goes through the chat command surface.
type Server struct {
	port       int
	controller *game.Controller
	hub        *feed.Hub
}

func NewServer(port int, controller *game.Controller, hub *feed.Hub) *http.Server {
	s := &Server{
		port:       port,
		controller: controller,
		hub:        hub,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
