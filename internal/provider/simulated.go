// ABOUTME: Simulated-mode provider answering from a keyword trigger table
// ABOUTME: Emulates network latency and always succeeds with confidence 0.99

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/2389/portfolio-chat/internal/clock"
)

// Simulated latency bounds: uniformly random in [MinLatency, MinLatency+LatencySpread).
const (
	MinLatency    = 1200 * time.Millisecond
	LatencySpread = 800 * time.Millisecond
)

// DefaultReply is used when no trigger matches.
const DefaultReply = "A arquitetura está preparada para me conectar ao backend via REST em breve. " +
	"Por enquanto, posso adiantar que Henrique é especialista em projetar sistemas LLM auditáveis, " +
	"especialmente usando LangGraph e Pydantic."

// Trigger maps keywords to a canned reply. A trigger matches when any of
// its keywords is a case-insensitive substring of the message.
type Trigger struct {
	Keywords []string
	Reply    string
}

// DefaultTriggers returns the built-in trigger table, in match order.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Keywords: []string{"escala", "scale"},
			Reply: "Sobre escala: Na Omni Saúde, o sistema lida com +60.000 conversas por mês. " +
				"Henrique utilizou FastAPI e Async I/O para garantir alta concorrência sem bloqueio de thread, " +
				"suportando picos de tráfego com latência mínima.",
		},
		{
			Keywords: []string{"arquitetura", "architecture"},
			Reply: "A principal filosofia arquitetural do Henrique é 'Determinismo sobre Probabilidade'. " +
				"Ele não faz apenas chamadas à API da OpenAI; ele constrói guardrails estritos usando " +
				"Domain-Driven Design e validações tipadas para garantir outputs seguros.",
		},
		{
			Keywords: []string{"omni"},
			Reply: "Na Omni Saúde, o grande impacto foi aumentar a resolução autônoma de tickets de 55% para 88%, " +
				"reduzindo drasticamente a carga da equipe humana. Tudo isso com um fluxo Human-in-the-Loop " +
				"em um ambiente altamente regulado.",
		},
	}
}

// Match returns the reply of the first trigger matching text, or
// DefaultReply when none does.
func Match(triggers []Trigger, text string) string {
	lower := strings.ToLower(text)
	for _, t := range triggers {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return t.Reply
			}
		}
	}
	return DefaultReply
}

// RandomLatency returns a duration in [MinLatency, MinLatency+LatencySpread).
func RandomLatency() time.Duration {
	return MinLatency + rand.N(LatencySpread)
}

// Simulated answers locally without any network access.
type Simulated struct {
	conversationID string
	triggers       []Trigger
	latency        func() time.Duration
	clock          clock.Clock
	logger         *slog.Logger
}

// NewSimulated creates the simulated provider for a conversation.
func NewSimulated(conversationID string, options ...Option) *Simulated {
	s := newSettings(options)
	return &Simulated{
		conversationID: conversationID,
		triggers:       s.triggers,
		latency:        s.latency,
		clock:          s.clock,
		logger:         s.logger.With("component", "provider", "mode", "simulated"),
	}
}

// Respond waits the simulated latency and returns the matching canned reply.
// The only error is ctx ending during the wait.
func (s *Simulated) Respond(ctx context.Context, text string) (InboundReply, error) {
	delay := s.latency()
	if err := s.clock.Sleep(ctx, delay); err != nil {
		return InboundReply{}, fmt.Errorf("simulated reply abandoned: %w", err)
	}

	reply := Match(s.triggers, text)
	s.logger.Debug("simulated reply",
		"conversation_id", s.conversationID,
		"latency", delay)

	return InboundReply{
		Reply:          reply,
		ConversationID: s.conversationID,
		Confidence:     SimulatedConfidence,
	}, nil
}
