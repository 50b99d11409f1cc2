// ABOUTME: Conversation controller mediating UI events, state, and the response provider
// ABOUTME: Enforces one call in flight and always returns the conversation to idle

package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/2389/portfolio-chat/internal/provider"
	"github.com/2389/portfolio-chat/internal/state"
)

// DefaultGreeting is rendered as the first bot message when the widget opens.
const DefaultGreeting = "Hi! I'm Le, Henrique's AI assistant. I'm connected to his knowledge base. " +
	"What would you like to know about his system architectures, production metrics, or tech stack?"

// DefaultErrorMessage is the generic system message shown when a call fails.
const DefaultErrorMessage = "Oops. Ocorreu um erro ao comunicar com o servidor de inferência. " +
	"A conexão deve ser restaurada em breve."

// DefaultQuickPrompts returns the prompts offered before the first message.
func DefaultQuickPrompts() []string {
	return []string{
		"Como você escala sistemas?",
		"Fale da arquitetura na Omni Saúde",
		"Qual o seu foco em GenAI?",
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithGreeting sets the first bot message.
func WithGreeting(greeting string) Option {
	return func(c *Controller) { c.greeting = greeting }
}

// WithQuickPrompts sets the prompts rendered on initialization.
func WithQuickPrompts(prompts []string) Option {
	return func(c *Controller) { c.quickPrompts = slices.Clone(prompts) }
}

// WithErrorMessage sets the system message rendered when a call fails.
func WithErrorMessage(msg string) Option {
	return func(c *Controller) { c.errorMessage = msg }
}

// WithSanitizer replaces SanitizeHTML.
func WithSanitizer(s Sanitizer) Option {
	return func(c *Controller) {
		if s != nil {
			c.sanitize = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller runs the submit flow for one widget.
type Controller struct {
	state    *state.State
	provider provider.Provider
	renderer Renderer
	sanitize Sanitizer
	logger   *slog.Logger

	greeting     string
	quickPrompts []string
	errorMessage string

	// mu serializes the loading check with the transition into loading,
	// and guards promptsShown.
	mu           sync.Mutex
	promptsShown bool
}

// NewController wires a controller to its state, provider, and renderer.
// The state should have been created with the renderer (or something that
// forwards to it) as its UIUpdater.
func NewController(st *state.State, p provider.Provider, r Renderer, opts ...Option) *Controller {
	c := &Controller{
		state:        st,
		provider:     p,
		renderer:     r,
		sanitize:     SanitizeHTML,
		logger:       slog.Default(),
		greeting:     DefaultGreeting,
		quickPrompts: DefaultQuickPrompts(),
		errorMessage: DefaultErrorMessage,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chat", "conversation_id", st.ConversationID())
	return c
}

// State returns the controller's conversation state.
func (c *Controller) State() *state.State {
	return c.state
}

// Submit runs one submission to completion. It returns false without doing
// anything when the text is blank or a call is already in flight.
func (c *Controller) Submit(ctx context.Context, raw string) bool {
	text, ok := c.begin(raw)
	if !ok {
		return false
	}
	c.finish(ctx, text)
	return true
}

// SubmitAsync accepts or rejects the submission synchronously, exactly like
// Submit, and completes the provider call in the background. The returned
// channel is closed once the conversation is back to idle; it is nil when
// the submission was rejected.
func (c *Controller) SubmitAsync(ctx context.Context, raw string) (bool, <-chan struct{}) {
	text, ok := c.begin(raw)
	if !ok {
		return false, nil
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.finish(ctx, text)
	}()
	return true, done
}

// QuickPrompt submits a predefined prompt as if the user had typed it.
func (c *Controller) QuickPrompt(ctx context.Context, text string) bool {
	return c.Submit(ctx, text)
}

// Init renders the greeting and quick prompts the first time it is called.
// Later calls do nothing and return false.
func (c *Controller) Init() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked()
}

// Toggle flips the widget between open and closed and returns the new
// value. Opening runs Init.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	open := !c.state.Snapshot().IsOpen
	c.state.SetOpen(open)
	if open {
		c.initLocked()
	}
	c.renderer.UpdateUIState(c.state.Snapshot())
	return open
}

func (c *Controller) initLocked() bool {
	if !c.state.MarkInitialized() {
		return false
	}
	c.renderer.RenderMessage(c.greeting, SenderBot)
	if len(c.quickPrompts) > 0 {
		c.renderer.RenderQuickPrompts(slices.Clone(c.quickPrompts))
		c.promptsShown = true
	}
	return true
}

// begin validates the input and, if accepted, renders the user message and
// moves the state to loading. It returns the sanitized text to send.
func (c *Controller) begin(raw string) (string, bool) {
	text, err := ValidateMessage(raw)
	if err != nil {
		c.logger.Debug("ignoring submission", "reason", err)
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status() == state.StatusLoading {
		c.logger.Debug("ignoring submission while a reply is pending")
		return "", false
	}

	safe := c.sanitize(text)
	c.renderer.RenderMessage(safe, SenderUser)
	if c.promptsShown {
		c.promptsShown = false
		c.renderer.RemoveQuickPrompts()
	}
	if err := c.state.SetStatus(state.StatusLoading); err != nil {
		c.logger.Error("failed to enter loading state", "error", err)
		return "", false
	}
	return safe, true
}

// finish performs the provider call and renders its outcome. The state
// returns to idle on every path.
func (c *Controller) finish(ctx context.Context, text string) {
	defer func() {
		if err := c.state.SetStatus(state.StatusIdle); err != nil {
			c.logger.Error("failed to return to idle", "error", err)
		}
	}()

	reply, err := c.provider.Respond(ctx, text)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			c.logger.Debug("chat request abandoned", "error", err)
			return
		}
		c.logger.Error("chat request failed", "error", err)
		c.renderer.RenderMessage(c.errorMessage, SenderSystem)
		return
	}

	if reply.ConversationID != "" && reply.ConversationID != c.state.ConversationID() {
		c.logger.Debug("backend answered with a different conversation id", "server_conversation_id", reply.ConversationID)
	}
	c.renderer.RenderMessage(reply.Reply, SenderBot)
}
