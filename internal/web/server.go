// Package web serves the robot's status page, its JSON twin, and any extra
// endpoints the program wires in (the driver station websocket).
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/sweeney/teleop/internal/status"
)

// Server is the status HTTP server.
type Server struct {
	tracker *status.Tracker
	mux     *http.ServeMux
	srv     *http.Server
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker, mux: http.NewServeMux()}
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/index.json", s.handleJSON)
	s.mux.HandleFunc("/telemetry.json", s.handleTelemetry)
	s.srv = &http.Server{Addr: addr, Handler: s.mux}
	return s
}

// Handle registers an extra handler. Must be called before serving.
func (s *Server) Handle(pattern string, h http.Handler) { s.mux.Handle(pattern, h) }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) ListenAndServe() error { return s.srv.ListenAndServe() }
func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/index.html":
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// handleTelemetry serves only the latest frame's sections, optionally
// narrowed with ?section=NAME.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	sections := status.Sections(s.tracker.Snapshot())
	if want := r.URL.Query().Get("section"); want != "" {
		var found []status.SectionJSON
		for _, sec := range sections {
			if sec.Name == want {
				found = append(found, sec)
			}
		}
		if len(found) == 0 {
			http.Error(w, "no such section: "+want, http.StatusNotFound)
			return
		}
		sections = found
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(sections)
}
