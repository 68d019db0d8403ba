package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/scythe504/ninjahunt-backend/internal"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HelloWorldHandler)
	r.HandleFunc("/healthz", s.HealthHandler)

	r.HandleFunc("/status", s.StatusHandler)
	r.HandleFunc("/leaderboard", s.LeaderboardHandler)
	r.HandleFunc("/leaderboard/{memberId}", s.PersonalEntryHandler)

	r.HandleFunc("/ws/feed", s.hub.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS Headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Wildcard allows all origins
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false") // Credentials not allowed with wildcard origins

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "No one expects the ninja duck"}

	jsonResp, err := json.Marshal(resp)
	if err != nil {
		log.Printf("error handling JSON marshal. Err: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	_, _ = w.Write(jsonResp)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeTimedResponse(w, http.StatusOK, internal.StatusData{
		Running: s.controller.Running(),
		State:   s.controller.State(),
	})
}

func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.controller.Aggregator().Leaderboard(r.Context())
	if err != nil {
		log.Printf("[LeaderboardHandler] Failed to compute leaderboard: %v", err)
		s.writeTimedResponse(w, http.StatusInternalServerError, "failed to compute leaderboard")
		return
	}
	if rows == nil {
		rows = []internal.LeaderboardRow{}
	}
	s.writeTimedResponse(w, http.StatusOK, rows)
}

func (s *Server) PersonalEntryHandler(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["memberId"]
	entry, err := s.controller.Aggregator().PersonalEntry(r.Context(), memberID)
	if err != nil {
		log.Printf("[PersonalEntryHandler] Failed to look up member %s: %v", memberID, err)
		s.writeTimedResponse(w, http.StatusInternalServerError, "failed to look up member")
		return
	}
	if entry == nil {
		s.writeTimedResponse(w, http.StatusNotFound, "member has no score yet")
		return
	}
	s.writeTimedResponse(w, http.StatusOK, entry)
}

func (s *Server) writeTimedResponse(w http.ResponseWriter, status int, data any) {
	startTime := time.Now().UnixMilli()
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: startTime,
		Data:          data,
	}

	// Calculate response times
	endTime := time.Now().UnixMilli()
	resp.RespEndTime = endTime
	resp.NetRespTime = endTime - startTime

	// Set response headers
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)

	// Send JSON response
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
