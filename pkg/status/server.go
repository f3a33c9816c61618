package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/hw"
)

// ErrUnknownPin is returned by Source.SetPin for a pin it doesn't have.
var ErrUnknownPin = errors.New("unknown pin")

// maxSend limits the body of POST /send.
const maxSend = 4096

// Source is the terminal seen by the server. Its methods are invoked
// on the loop goroutine.
type Source interface {
	Report() *Report
	// Send queues p for the host and returns how many bytes fit.
	Send(p []byte) int
	SetPin(name string, level bool) error
}

// Server serves the status API.
type Server struct {
	Addr   string
	Loop   *fx.Loop
	Source Source
	// WebSocket is mounted at /ws when set.
	WebSocket http.Handler

	router *mux.Router
}

// NewServer creates a Server.
func NewServer(addr string, loop *fx.Loop, source Source) *Server {
	return &Server{Addr: addr, Loop: loop, Source: source}
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "status-server"
}

// Handler builds the routes.
func (s *Server) Handler() http.Handler {
	if s.router != nil {
		return s.router
	}
	r := mux.NewRouter()
	r.HandleFunc("/status", s.getStatus).Methods("GET")
	r.HandleFunc("/status.pb", s.getStatusPB).Methods("GET")
	r.HandleFunc("/send", s.send).Methods("POST")
	r.HandleFunc("/pins/{name}/{level}", s.setPin).Methods("PUT")
	if s.WebSocket != nil {
		r.Handle("/ws", s.WebSocket)
	}
	s.router = r
	return r
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler()}
	glog.Infof("status server on %s", s.Addr)
	return fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
}

func (s *Server) report(ctx context.Context) (*Report, error) {
	var r *Report
	err := s.Loop.Do(ctx, func() { r = s.Source.Report() })
	return r, err
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.report(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getStatusPB(w http.ResponseWriter, r *http.Request) {
	report, err := s.report(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	data, err := report.Encode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxSend+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) > maxSend {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	var accepted int
	if err := s.Loop.Do(r.Context(), func() { accepted = s.Source.Send(data) }); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Accepted int `json:"accepted"`
		Dropped  int `json:"dropped"`
	}{accepted, len(data) - accepted})
}

func parseLevel(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "0", "low":
		return hw.Low, true
	case "1", "high":
		return hw.High, true
	}
	return false, false
}

func (s *Server) setPin(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	level, ok := parseLevel(params["level"])
	if !ok {
		http.Error(w, "level must be low or high", http.StatusBadRequest)
		return
	}
	var err error
	if doErr := s.Loop.Do(r.Context(), func() { err = s.Source.SetPin(params["name"], level) }); doErr != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	switch {
	case errors.Is(err, ErrUnknownPin):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("status: encode response: %v", err)
	}
}
