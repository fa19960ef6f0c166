package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"i4.energy/across/fakemodem/modem"
)

// Fleet tracks the emulators currently running, keyed by the port or peer
// address they serve.
type Fleet struct {
	mu     sync.Mutex
	modems map[string]*modem.Modem
}

func NewFleet() *Fleet {
	return &Fleet{modems: make(map[string]*modem.Modem)}
}

func (f *Fleet) Add(name string, m *modem.Modem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modems[name] = m
}

func (f *Fleet) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.modems, name)
}

// Stats returns a snapshot of every running emulator's counters
func (f *Fleet) Stats() map[string]modem.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := make(map[string]modem.Stats, len(f.modems))
	for name, m := range f.modems {
		stats[name] = m.Stats()
	}
	return stats
}

// Server exposes diagnostics of the running emulators over HTTP
type Server struct {
	Logger *slog.Logger
	Fleet  *Fleet
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleStats reports the counters of every running emulator
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	type StatsResponse struct {
		Modems map[string]modem.Stats `json:"modems"`
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(StatsResponse{Modems: s.Fleet.Stats()}); err != nil {
		s.Logger.Error("Failed to encode stats", "error", err)
	}
}
