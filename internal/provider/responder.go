// ABOUTME: Mode switch between the live and simulated providers
// ABOUTME: The flag is read on every call and exactly one provider handles it

package provider

import (
	"context"
	"fmt"
)

// Provider resolves a user message to a reply.
type Provider interface {
	Respond(ctx context.Context, text string) (InboundReply, error)
}

// Responder routes each call to the live or simulated provider.
type Responder struct {
	useMock   bool
	live      Provider
	simulated Provider
}

// New builds a Responder for the conversation from validated options.
func New(opts Options, conversationID string, options ...Option) (*Responder, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider options: %w", err)
	}
	return &Responder{
		useMock:   opts.UseMock,
		live:      NewLive(opts, conversationID, options...),
		simulated: NewSimulated(conversationID, options...),
	}, nil
}

// Simulated reports whether calls are answered locally.
func (r *Responder) Simulated() bool {
	return r.useMock
}

// Respond delegates to exactly one provider according to the mode flag.
func (r *Responder) Respond(ctx context.Context, text string) (InboundReply, error) {
	if r.useMock {
		return r.simulated.Respond(ctx, text)
	}
	return r.live.Respond(ctx, text)
}
