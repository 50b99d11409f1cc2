// ABOUTME: HTTP host for the chat widget: page, JSON control API, and SSE render stream
// ABOUTME: Submissions are accepted synchronously and completed in the background

package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/2389/portfolio-chat/internal/chat"
	"github.com/2389/portfolio-chat/internal/state"
)

// maxRequestBytes limits JSON request bodies.
const maxRequestBytes = 16 << 10

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 30 * time.Second

var widgetTemplate = template.Must(template.ParseFS(templateFS, "templates/widget.html"))

// Server serves one widget instance.
type Server struct {
	controller *chat.Controller
	stream     *Stream
	logger     *slog.Logger
	mux        *http.ServeMux

	// ctx outlives individual requests so replies finish after the submit
	// handler has returned.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New creates the HTTP host. The stream must be the renderer the controller
// was built with.
func New(controller *chat.Controller, stream *Stream, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		controller: controller,
		stream:     stream,
		logger:     logger.With("component", "webchat"),
		mux:        http.NewServeMux(),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/toggle", s.handleToggle)
	s.mux.HandleFunc("POST /api/submit", s.handleSubmit)
	s.mux.HandleFunc("POST /api/quick-prompt", s.handleSubmit)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Wait blocks until every accepted submission has finished.
func (s *Server) Wait() {
	s.inflight.Wait()
}

// Close abandons pending replies, waits for them to settle, and
// disconnects event streams. Submissions after Close are rejected.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.inflight.Wait()
	s.stream.Close()
}

// submit hands text to the controller. The controller's decision is made
// before this returns; the reply is rendered later.
func (s *Server) submit(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	accepted, done := s.controller.SubmitAsync(s.ctx, text)
	if !accepted {
		return false
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		<-done
	}()
	return true
}

type indexData struct {
	Title        string
	Snapshot     state.Snapshot
	Messages     []Message
	QuickPrompts []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Title:        "Portfolio Chat",
		Snapshot:     s.controller.State().Snapshot(),
		Messages:     s.stream.Transcript(),
		QuickPrompts: s.stream.QuickPrompts(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := widgetTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render widget", "error", err)
	}
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.State().Snapshot())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.controller.Toggle()
	s.writeJSON(w, http.StatusOK, s.controller.State().Snapshot())
}

// SubmitRequest is the body of POST /api/submit and /api/quick-prompt.
type SubmitRequest struct {
	Text string `json:"text"`
}

// SubmitResponse reports whether the controller took the submission.
type SubmitResponse struct {
	Accepted bool `json:"accepted"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendJSONError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.writeJSON(w, http.StatusAccepted, SubmitResponse{Accepted: s.submit(req.Text)})
}

// handleEvents streams render events as Server-Sent Events until the
// client disconnects or the server closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	events, subID := s.stream.Subscribe(r.Context())
	defer s.stream.broadcaster.Unsubscribe(subID)

	s.writeSSEEvent(w, EventState, s.controller.State().Snapshot())
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case ev, ok := <-events:
			if !ok {
				return
			}
			s.writeSSEEvent(w, ev.Type, ev.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
