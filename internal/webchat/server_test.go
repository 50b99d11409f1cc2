// ABOUTME: Tests for the widget HTTP host and its render stream
// ABOUTME: Drives the JSON API with httptest and reads the SSE stream from a live test server

package webchat

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/portfolio-chat/internal/chat"
	"github.com/2389/portfolio-chat/internal/provider"
	"github.com/2389/portfolio-chat/internal/state"
)

// gatedProvider answers with reply once release is closed, or returns
// ctx's error if cancelled first.
type gatedProvider struct {
	reply   string
	err     error
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (p *gatedProvider) Respond(ctx context.Context, text string) (provider.InboundReply, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.mu.Unlock()

	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return provider.InboundReply{}, ctx.Err()
		}
	}
	if p.err != nil {
		return provider.InboundReply{}, p.err
	}
	return provider.InboundReply{Reply: p.reply, ConversationID: "conv-web", Confidence: 0.99}, nil
}

func (p *gatedProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func newTestServer(t *testing.T, p provider.Provider) (*Server, *Stream) {
	t.Helper()
	stream := NewStream(nil)
	st := state.New("conv-web", stream)
	ctrl := chat.NewController(st, p, stream)
	srv := New(ctrl, stream, nil)
	t.Cleanup(srv.Close)
	return srv, stream
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) state.Snapshot {
	t.Helper()
	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func decodeSubmit(t *testing.T, rec *httptest.ResponseRecorder) SubmitResponse {
	t.Helper()
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &gatedProvider{})

	rec := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestState_InitialSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, &gatedProvider{})

	rec := do(t, srv, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	snap := decodeSnapshot(t, rec)
	assert.Equal(t, state.Snapshot{ConversationID: "conv-web", Status: state.StatusIdle}, snap)
}

func TestToggle_OpensAndGreets(t *testing.T) {
	srv, stream := newTestServer(t, &gatedProvider{})

	snap := decodeSnapshot(t, do(t, srv, http.MethodPost, "/api/toggle", ""))
	assert.True(t, snap.IsOpen)
	assert.True(t, snap.IsInitialized)

	transcript := stream.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, chat.SenderBot, transcript[0].Sender)
	assert.Contains(t, string(transcript[0].HTML), "<p>Hi!")
	assert.Equal(t, chat.DefaultQuickPrompts(), stream.QuickPrompts())

	snap = decodeSnapshot(t, do(t, srv, http.MethodPost, "/api/toggle", ""))
	assert.False(t, snap.IsOpen)
	assert.Len(t, stream.Transcript(), 1)
}

func TestSubmit_AcceptedAndRendered(t *testing.T) {
	p := &gatedProvider{reply: "Scaling uses **async I/O**."}
	srv, stream := newTestServer(t, p)
	do(t, srv, http.MethodPost, "/api/toggle", "")

	resp := decodeSubmit(t, do(t, srv, http.MethodPost, "/api/submit", `{"text":"  how do you scale?  "}`))
	assert.True(t, resp.Accepted)
	srv.Wait()

	assert.Equal(t, []string{"how do you scale?"}, p.Calls())
	assert.Empty(t, stream.QuickPrompts())

	transcript := stream.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, Message{Sender: chat.SenderUser, HTML: "how do you scale?"}, transcript[1])
	assert.Equal(t, chat.SenderBot, transcript[2].Sender)
	assert.Contains(t, string(transcript[2].HTML), "<strong>async I/O</strong>")

	snap := decodeSnapshot(t, do(t, srv, http.MethodGet, "/api/state", ""))
	assert.Equal(t, state.StatusIdle, snap.Status)
}

func TestSubmit_Rejections(t *testing.T) {
	p := &gatedProvider{reply: "ok", release: make(chan struct{})}
	srv, _ := newTestServer(t, p)

	assert.False(t, decodeSubmit(t, do(t, srv, http.MethodPost, "/api/submit", `{"text":"   "}`)).Accepted)

	assert.True(t, decodeSubmit(t, do(t, srv, http.MethodPost, "/api/submit", `{"text":"first"}`)).Accepted)
	assert.False(t, decodeSubmit(t, do(t, srv, http.MethodPost, "/api/submit", `{"text":"second"}`)).Accepted)
	assert.False(t, decodeSubmit(t, do(t, srv, http.MethodPost, "/api/quick-prompt", `{"text":"third"}`)).Accepted)

	snap := decodeSnapshot(t, do(t, srv, http.MethodGet, "/api/state", ""))
	assert.Equal(t, state.StatusLoading, snap.Status)

	close(p.release)
	srv.Wait()
	assert.Equal(t, []string{"first"}, p.Calls())
}

func TestSubmit_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &gatedProvider{})

	rec := do(t, srv, http.MethodPost, "/api/submit", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())

	big := `{"text":"` + strings.Repeat("a", maxRequestBytes) + `"}`
	rec = do(t, srv, http.MethodPost, "/api/submit", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/submit", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSubmit_FailureRendersSystemMessage(t *testing.T) {
	p := &gatedProvider{err: &provider.ExhaustedRetriesError{Attempts: 4, Last: &provider.TimeoutError{After: 10 * time.Second}}}
	srv, stream := newTestServer(t, p)

	assert.True(t, decodeSubmit(t, do(t, srv, http.MethodPost, "/api/submit", `{"text":"hi"}`)).Accepted)
	srv.Wait()

	transcript := stream.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, chat.SenderSystem, transcript[1].Sender)
	assert.Contains(t, string(transcript[1].HTML), "Oops.")
	assert.NotContains(t, string(transcript[1].HTML), "timed out")
}

func TestSubmit_UserMarkupIsEscaped(t *testing.T) {
	srv, stream := newTestServer(t, &gatedProvider{reply: "<script>alert(1)</script>plain"})

	do(t, srv, http.MethodPost, "/api/submit", `{"text":"<b>bold</b>"}`)
	srv.Wait()

	transcript := stream.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", string(transcript[0].HTML))
	assert.NotContains(t, string(transcript[1].HTML), "<script>")
}

func TestClose_AbandonsPendingReplyAndRejectsNewOnes(t *testing.T) {
	p := &gatedProvider{release: make(chan struct{})}
	srv, stream := newTestServer(t, p)

	assert.True(t, decodeSubmit(t, do(t, srv, http.MethodPost, "/api/submit", `{"text":"hi"}`)).Accepted)
	srv.Close()

	assert.Equal(t, state.StatusIdle, srv.controller.State().Status())
	assert.Len(t, stream.Transcript(), 1)
	assert.False(t, decodeSubmit(t, do(t, srv, http.MethodPost, "/api/submit", `{"text":"again"}`)).Accepted)
}

func TestIndex_RendersTranscript(t *testing.T) {
	srv, _ := newTestServer(t, &gatedProvider{})
	do(t, srv, http.MethodPost, "/api/toggle", "")

	rec := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `data-conversation="conv-web"`)
	assert.Contains(t, body, `class="open"`)
	assert.Contains(t, body, `<div class="msg bot"><p>Hi!`)
	assert.Contains(t, body, "Fale da arquitetura na Omni Saúde")

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/missing", "").Code)
}

type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, sc *bufio.Scanner) sseEvent {
	t.Helper()
	var ev sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return ev
}

func TestEvents_StreamsRenderCalls(t *testing.T) {
	p := &gatedProvider{reply: "Sobre escala"}
	srv, stream := newTestServer(t, p)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	sc := bufio.NewScanner(resp.Body)

	first := readSSE(t, sc)
	assert.Equal(t, EventState, first.name)
	assert.JSONEq(t, `{"conversation_id":"conv-web","status":"idle","is_open":false,"is_initialized":false}`, first.data)

	require.Eventually(t, func() bool { return stream.broadcaster.Len() == 1 }, time.Second, 5*time.Millisecond)

	do(t, srv, http.MethodPost, "/api/toggle", "")
	do(t, srv, http.MethodPost, "/api/quick-prompt", `{"text":"Como você escala sistemas?"}`)
	srv.Wait()

	var names []string
	for range 8 {
		names = append(names, readSSE(t, sc).name)
	}
	assert.Equal(t, []string{
		EventMessage,             // greeting
		EventQuickPrompts,        // prompts
		EventState,               // opened
		EventMessage,             // user
		EventQuickPromptsRemoved, // first submission
		EventState,               // loading
		EventMessage,             // reply
		EventState,               // idle
	}, names)
}
