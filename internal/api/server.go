// Package api provides the debug HTTP server for a swim node.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coreswim/swim/internal/swim"
)

// Server is the debug HTTP server exposed alongside a running node: a
// health probe, a neighbour-table dump, and (optionally) Prometheus
// metrics.
type Server struct {
	node           *swim.Node
	metricsEnabled bool
}

// NewServer creates a debug HTTP server for node.
func NewServer(node *swim.Node) *Server {
	return &Server{node: node}
}

// EnableMetrics mounts the Prometheus /metrics endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all debug routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/members", s.handleMembers)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          s.node.Status().String(),
		"id":               s.node.ID().String(),
		"restart_counter": s.node.RestartCounter(),
		"tx":              s.node.Tx(),
		"nodes_in_cluster": s.node.NodesInCluster(),
	})
}

type memberView struct {
	ID             string `json:"id"`
	Host           string `json:"host"`
	Port           uint16 `json:"port"`
	Status         string `json:"status"`
	RestartCounter uint64 `json:"restart_counter"`
	Access         string `json:"access"`
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	neighbours := s.node.Neighbours()
	out := make([]memberView, 0, len(neighbours))
	for _, nb := range neighbours {
		out = append(out, memberView{
			ID:             nb.ID.String(),
			Host:           nb.Host,
			Port:           nb.Port,
			Status:         nb.Status.String(),
			RestartCounter: nb.RestartCounter,
			Access:         nb.Access.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
