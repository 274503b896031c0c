// Package testutil provides stub collaborators for tests: a fake
// orchestration backend emitting a canned progress stream, and a fake
// install-data/audit sink recording what was submitted.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/swarmlink/orchestrate-go/internal/domain"
)

// StreamServer is a fake orchestration backend. Each frame is written
// as a "data: "-marked line followed by a flush, mimicking the real
// service's chunking.
type StreamServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	frames   []string
	status   int
	commands []string
	holdOpen bool
	release  chan struct{}
}

// NewStreamServer creates a backend that emits the given frames, in
// order, for every request.
func NewStreamServer(frames ...string) *StreamServer {
	s := &StreamServer{
		frames:  frames,
		status:  http.StatusOK,
		release: make(chan struct{}),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *StreamServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.commands = append(s.commands, r.URL.Query().Get("command"))
	status := s.status
	frames := s.frames
	hold := s.holdOpen
	s.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "stream unavailable", status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, frame := range frames {
		w.Write([]byte("data: " + frame + "\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}

	if hold {
		select {
		case <-s.release:
		case <-r.Context().Done():
		}
	}
}

// HoldOpen keeps the response body open after the frames until Release
// is called or the client goes away.
func (s *StreamServer) HoldOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdOpen = true
}

// Release lets held-open responses finish.
func (s *StreamServer) Release() {
	close(s.release)
}

// URL returns the backend's endpoint.
func (s *StreamServer) URL() string {
	return s.srv.URL
}

// Client returns an HTTP client wired to the backend.
func (s *StreamServer) Client() *http.Client {
	return s.srv.Client()
}

// FailWith makes subsequent requests answer with the given status.
func (s *StreamServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Commands returns the command query parameters received so far.
func (s *StreamServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Close shuts the backend down.
func (s *StreamServer) Close() {
	s.srv.Close()
}

// SideEffectServer records install-data and audit submissions.
type SideEffectServer struct {
	srv *httptest.Server

	mu          sync.Mutex
	records     []domain.RunRecord
	audits      []domain.AuditEvent
	failPersist bool
}

// NewSideEffectServer creates a recording sink.
func NewSideEffectServer() *SideEffectServer {
	s := &SideEffectServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/install", s.handleInstall)
	mux.HandleFunc("/audit", s.handleAudit)
	s.srv = httptest.NewServer(mux)
	return s
}

func (s *SideEffectServer) handleInstall(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.failPersist
	s.mu.Unlock()
	if fail {
		http.Error(w, "persistence unavailable", http.StatusInternalServerError)
		return
	}

	var record domain.RunRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (s *SideEffectServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	var event domain.AuditEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.audits = append(s.audits, event)
	s.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

// InstallURL returns the install-data endpoint.
func (s *SideEffectServer) InstallURL() string {
	return s.srv.URL + "/install"
}

// AuditURL returns the audit endpoint.
func (s *SideEffectServer) AuditURL() string {
	return s.srv.URL + "/audit"
}

// Client returns an HTTP client wired to the sink.
func (s *SideEffectServer) Client() *http.Client {
	return s.srv.Client()
}

// FailPersist makes subsequent install-data calls answer 500.
func (s *SideEffectServer) FailPersist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPersist = true
}

// Records returns the run records received so far.
func (s *SideEffectServer) Records() []domain.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RunRecord(nil), s.records...)
}

// Audits returns the audit events received so far.
func (s *SideEffectServer) Audits() []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEvent(nil), s.audits...)
}

// Close shuts the sink down.
func (s *SideEffectServer) Close() {
	s.srv.Close()
}
