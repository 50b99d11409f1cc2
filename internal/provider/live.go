// ABOUTME: Live-mode provider that POSTs to the inference backend
// ABOUTME: Per-attempt timeout plus exponential backoff retry, implemented as an explicit loop

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/portfolio-chat/internal/clock"
)

// maxReplySize bounds how much of a response body is read.
const maxReplySize = 1 << 20

// Backoff returns the wait after a failed attempt that left remaining
// retries: 2^(maxRetries-remaining) seconds.
func Backoff(maxRetries, remaining int) time.Duration {
	exp := maxRetries - remaining
	if exp < 0 {
		exp = 0
	}
	return time.Duration(1<<uint(exp)) * time.Second
}

// Live sends messages to the inference backend over HTTP.
type Live struct {
	url            string
	maxRetries     int
	timeout        time.Duration
	conversationID string
	httpClient     *http.Client
	clock          clock.Clock
	logger         *slog.Logger
}

// NewLive creates the live provider for a conversation.
func NewLive(opts Options, conversationID string, options ...Option) *Live {
	s := newSettings(options)
	return &Live{
		url:            opts.URL(),
		maxRetries:     opts.MaxRetries,
		timeout:        opts.Timeout,
		conversationID: conversationID,
		httpClient:     s.httpClient,
		clock:          s.clock,
		logger:         s.logger.With("component", "provider", "mode", "live"),
	}
}

// Respond sends text and returns the backend's reply verbatim. Failed
// attempts are retried with backoff; once retries run out the last failure
// is returned inside an *ExhaustedRetriesError. Cancelling ctx abandons the
// call and returns ctx's error.
func (l *Live) Respond(ctx context.Context, text string) (InboundReply, error) {
	msg := NewOutboundMessage(text, l.conversationID, l.clock.Now())
	body, err := json.Marshal(msg)
	if err != nil {
		return InboundReply{}, fmt.Errorf("encoding chat message: %w", err)
	}

	rc := &RetryContext{
		URL:              l.url,
		Body:             body,
		Header:           http.Header{"Content-Type": []string{"application/json"}},
		RetriesRemaining: l.maxRetries,
	}

	attempts := 0
	for {
		attempts++
		reply, err := l.attempt(ctx, rc)
		if err == nil {
			l.logger.Debug("chat reply received",
				"conversation_id", l.conversationID,
				"attempts", attempts)
			return reply, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return InboundReply{}, fmt.Errorf("chat request abandoned: %w", ctxErr)
		}

		if rc.RetriesRemaining == 0 {
			l.logger.Error("chat request failed, retries exhausted",
				"conversation_id", l.conversationID,
				"attempts", attempts,
				"error", err)
			return InboundReply{}, &ExhaustedRetriesError{Attempts: attempts, Last: err}
		}

		delay := Backoff(l.maxRetries, rc.RetriesRemaining)
		l.logger.Warn("retrying chat request",
			"conversation_id", l.conversationID,
			"attempts_left", rc.RetriesRemaining-1,
			"backoff", delay,
			"error", err)

		if err := l.clock.Sleep(ctx, delay); err != nil {
			return InboundReply{}, fmt.Errorf("chat request abandoned: %w", err)
		}
		rc.RetriesRemaining--
	}
}

// attempt makes one request. The timer cancels the request with a
// *TimeoutError cause so it can be told apart from the caller cancelling.
func (l *Live) attempt(ctx context.Context, rc *RetryContext) (InboundReply, error) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	timer := l.clock.AfterFunc(l.timeout, func() {
		cancel(&TimeoutError{After: l.timeout})
	})
	defer timer.Stop()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, rc.URL, bytes.NewReader(rc.Body))
	if err != nil {
		return InboundReply{}, &TransportError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header = rc.Header.Clone()

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return InboundReply{}, classify(attemptCtx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return InboundReply{}, classify(attemptCtx, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return InboundReply{}, &TransportError{StatusCode: resp.StatusCode}
	}

	var reply InboundReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return InboundReply{}, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoding reply: %w", err),
		}
	}
	return reply, nil
}

// classify turns a request error into a *TimeoutError when the attempt's
// timer fired, and a *TransportError otherwise.
func classify(attemptCtx context.Context, err error) error {
	var timeout *TimeoutError
	if errors.As(context.Cause(attemptCtx), &timeout) {
		return timeout
	}
	return &TransportError{Err: err}
}
