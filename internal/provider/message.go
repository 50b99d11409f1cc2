// ABOUTME: Wire types exchanged with the inference backend
// ABOUTME: OutboundMessage is built per send; InboundReply is returned by every provider

package provider

import (
	"net/http"
	"time"
)

// RoleRecruiter is the fixed role sent in every outbound message's metadata.
const RoleRecruiter = "recruiter"

// SimulatedConfidence is the confidence reported by every simulated reply.
const SimulatedConfidence = 0.99

// timestampLayout matches JavaScript's Date.toISOString output.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Metadata accompanies every outbound message.
type Metadata struct {
	Role            string `json:"role"`
	ClientTimestamp string `json:"client_timestamp"`
}

// OutboundMessage is the JSON body POSTed to the chat endpoint.
type OutboundMessage struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversation_id"`
	Metadata       Metadata `json:"metadata"`
}

// NewOutboundMessage builds the message for text sent at the given time.
func NewOutboundMessage(text, conversationID string, sentAt time.Time) OutboundMessage {
	return OutboundMessage{
		Message:        text,
		ConversationID: conversationID,
		Metadata: Metadata{
			Role:            RoleRecruiter,
			ClientTimestamp: sentAt.UTC().Format(timestampLayout),
		},
	}
}

// InboundReply is the answer to one user message.
type InboundReply struct {
	Reply          string  `json:"reply"`
	ConversationID string  `json:"conversation_id"`
	Confidence     float64 `json:"confidence"`
}

// RetryContext tracks one outbound call across its attempts. The body is
// encoded once so every attempt sends identical bytes.
type RetryContext struct {
	URL              string
	Body             []byte
	Header           http.Header
	RetriesRemaining int
}
