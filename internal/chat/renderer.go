// ABOUTME: Render collaborator contract used by the chat controller
// ABOUTME: Hosts implement it for the web widget, the terminal REPL, and tests

package chat

import (
	"github.com/2389/portfolio-chat/internal/state"
)

// Sender identifies who a rendered message belongs to.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Renderer displays messages and reflects state changes. User text arrives
// already sanitized; bot text is the provider's reply as received.
type Renderer interface {
	state.UIUpdater

	RenderMessage(text string, sender Sender)
	RenderQuickPrompts(prompts []string)
	RemoveQuickPrompts()
}

// MultiRenderer fans every call out to each renderer in order.
type MultiRenderer []Renderer

func (m MultiRenderer) RenderMessage(text string, sender Sender) {
	for _, r := range m {
		r.RenderMessage(text, sender)
	}
}

func (m MultiRenderer) RenderQuickPrompts(prompts []string) {
	for _, r := range m {
		r.RenderQuickPrompts(prompts)
	}
}

func (m MultiRenderer) RemoveQuickPrompts() {
	for _, r := range m {
		r.RemoveQuickPrompts()
	}
}

func (m MultiRenderer) UpdateUIState(snap state.Snapshot) {
	for _, r := range m {
		r.UpdateUIState(snap)
	}
}
