// ABOUTME: Fake inference backend speaking the widget's chat wire protocol
// ABOUTME: Injects failures, delay, and overload so the client's retry path can be exercised

package backend

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/2389/portfolio-chat/internal/clock"
	"github.com/2389/portfolio-chat/internal/provider"
)

const (
	// maxBodyBytes limits request bodies.
	maxBodyBytes = 64 << 10

	// Confidence reported for trigger matches and for the default reply.
	matchedConfidence = 0.95
	defaultConfidence = 0.6

	redeliveryWindow = 5 * time.Minute
	redeliveryLimit  = 10000
)

// Options configures the fake backend.
type Options struct {
	// ChatEndpoint is the path answering chat requests. Defaults to /chat.
	ChatEndpoint string

	// FailFirst makes the first N requests of each conversation fail with 500.
	FailFirst int

	// Delay holds every chat reply back by this long.
	Delay time.Duration

	// RPS limits accepted requests per second; 0 disables the limit.
	// Requests over the limit get 503.
	RPS   float64
	Burst int

	Triggers []provider.Trigger
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Stats counts what the backend has seen.
type Stats struct {
	Requests     int `json:"requests"`
	Replies      int `json:"replies"`
	Injected     int `json:"injected_failures"`
	Throttled    int `json:"throttled"`
	Rejected     int `json:"rejected"`
	Redeliveries int `json:"redeliveries"`
}

// Server is an http.Handler implementing the chat endpoint.
type Server struct {
	endpoint  string
	failFirst int
	delay     time.Duration
	triggers  []provider.Trigger
	limiter   *rate.Limiter
	seen      *Redeliveries
	clock     clock.Clock
	logger    *slog.Logger
	mux       *http.ServeMux

	mu       sync.Mutex
	failures map[string]int
	stats    Stats
}

// New creates a fake backend.
func New(opts Options) *Server {
	if opts.ChatEndpoint == "" {
		opts.ChatEndpoint = provider.DefaultChatEndpoint
	}
	if opts.Triggers == nil {
		opts.Triggers = provider.DefaultTriggers()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		endpoint:  opts.ChatEndpoint,
		failFirst: opts.FailFirst,
		delay:     opts.Delay,
		triggers:  opts.Triggers,
		seen:      NewRedeliveries(redeliveryWindow, redeliveryLimit, opts.Clock),
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "backend"),
		mux:       http.NewServeMux(),
		failures:  make(map[string]int),
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	s.mux.HandleFunc("POST "+s.endpoint, s.handleChat)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Stats returns a copy of the counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Server) count(f func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.stats)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.count(func(st *Stats) { st.Requests++ })

	if s.limiter != nil && !s.limiter.Allow() {
		s.count(func(st *Stats) { st.Throttled++ })
		s.logger.Warn("throttling chat request")
		sendJSONError(w, http.StatusServiceUnavailable, "backend overloaded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.count(func(st *Stats) { st.Rejected++ })
			sendJSONError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		sendJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if s.seen.CheckAndMark(PayloadKey(body)) {
		s.count(func(st *Stats) { st.Redeliveries++ })
		s.logger.Info("redelivered payload", "bytes", len(body))
	}

	var msg provider.OutboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.count(func(st *Stats) { st.Rejected++ })
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg.Message == "" || msg.ConversationID == "" {
		s.count(func(st *Stats) { st.Rejected++ })
		sendJSONError(w, http.StatusBadRequest, "message and conversation_id are required")
		return
	}

	if s.injectFailure(msg.ConversationID) {
		s.logger.Info("injecting failure", "conversation_id", msg.ConversationID)
		sendJSONError(w, http.StatusInternalServerError, "injected failure")
		return
	}

	if s.delay > 0 {
		if err := s.clock.Sleep(r.Context(), s.delay); err != nil {
			s.logger.Debug("client went away during delay", "conversation_id", msg.ConversationID)
			return
		}
	}

	reply := provider.Match(s.triggers, msg.Message)
	confidence := defaultConfidence
	if reply != provider.DefaultReply {
		confidence = matchedConfidence
	}

	s.count(func(st *Stats) { st.Replies++ })
	s.logger.Debug("answering chat request",
		"conversation_id", msg.ConversationID,
		"role", msg.Metadata.Role)

	writeJSON(w, http.StatusOK, provider.InboundReply{
		Reply:          reply,
		ConversationID: msg.ConversationID,
		Confidence:     confidence,
	})
}

// injectFailure reports whether this request should fail, counting it
// against the conversation's budget.
func (s *Server) injectFailure(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures[conversationID] >= s.failFirst {
		return false
	}
	s.failures[conversationID]++
	s.stats.Injected++
	return true
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
