// ABOUTME: chat.Renderer that turns render calls into events for browser widgets
// ABOUTME: Keeps the transcript so freshly loaded pages show the conversation so far

package webchat

import (
	"bytes"
	"context"
	"html"
	"html/template"
	"log/slog"
	"slices"
	"sync"

	"github.com/yuin/goldmark"

	"github.com/2389/portfolio-chat/internal/chat"
	"github.com/2389/portfolio-chat/internal/state"
)

// Event types sent over the SSE stream.
const (
	EventMessage             = "message"
	EventQuickPrompts        = "quick_prompts"
	EventQuickPromptsRemoved = "quick_prompts_removed"
	EventState               = "state"
)

// maxTranscript bounds the messages kept for page reloads.
const maxTranscript = 200

// Event is one render instruction for connected pages.
type Event struct {
	Type string
	Data any
}

// Message is a rendered chat bubble.
type Message struct {
	Sender chat.Sender   `json:"sender"`
	HTML   template.HTML `json:"html"`
}

type quickPromptsPayload struct {
	Prompts []string `json:"prompts"`
}

// Stream renders chat output as events and fans them out to subscribers.
type Stream struct {
	md          goldmark.Markdown
	broadcaster *Broadcaster
	logger      *slog.Logger

	mu         sync.Mutex
	transcript []Message
	prompts    []string
}

// NewStream creates a Stream. Pass nil logger for default.
func NewStream(logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		md:          goldmark.New(),
		broadcaster: NewBroadcaster(logger),
		logger:      logger.With("component", "webchat"),
	}
}

// RenderMessage appends a message to the transcript and publishes it.
func (s *Stream) RenderMessage(text string, sender chat.Sender) {
	msg := Message{Sender: sender, HTML: s.toHTML(text, sender)}

	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	if len(s.transcript) > maxTranscript {
		s.transcript = slices.Clone(s.transcript[len(s.transcript)-maxTranscript:])
	}
	s.mu.Unlock()

	s.broadcaster.Publish(Event{Type: EventMessage, Data: msg})
}

// RenderQuickPrompts shows the prompt buttons.
func (s *Stream) RenderQuickPrompts(prompts []string) {
	s.mu.Lock()
	s.prompts = slices.Clone(prompts)
	s.mu.Unlock()

	s.broadcaster.Publish(Event{Type: EventQuickPrompts, Data: quickPromptsPayload{Prompts: prompts}})
}

// RemoveQuickPrompts hides the prompt buttons.
func (s *Stream) RemoveQuickPrompts() {
	s.mu.Lock()
	s.prompts = nil
	s.mu.Unlock()

	s.broadcaster.Publish(Event{Type: EventQuickPromptsRemoved, Data: struct{}{}})
}

// UpdateUIState publishes the new state snapshot.
func (s *Stream) UpdateUIState(snap state.Snapshot) {
	s.broadcaster.Publish(Event{Type: EventState, Data: snap})
}

// Transcript returns the messages rendered so far.
func (s *Stream) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transcript)
}

// QuickPrompts returns the prompts currently shown, if any.
func (s *Stream) QuickPrompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.prompts)
}

// Subscribe registers for future events until ctx is cancelled.
func (s *Stream) Subscribe(ctx context.Context) (<-chan Event, string) {
	return s.broadcaster.Subscribe(ctx)
}

// Close disconnects every subscriber.
func (s *Stream) Close() {
	s.broadcaster.Close()
}

// toHTML converts message text to markup. Bot replies are markdown with raw
// HTML omitted; user text has already been through the controller's
// sanitizer; anything else is escaped.
func (s *Stream) toHTML(text string, sender chat.Sender) template.HTML {
	switch sender {
	case chat.SenderBot:
		var buf bytes.Buffer
		if err := s.md.Convert([]byte(text), &buf); err != nil {
			s.logger.Error("failed to convert markdown", "error", err)
			return template.HTML(html.EscapeString(text))
		}
		return template.HTML(buf.String())
	case chat.SenderUser:
		return template.HTML(text)
	default:
		return template.HTML(html.EscapeString(text))
	}
}
