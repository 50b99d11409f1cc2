// ABOUTME: Tests for the submit flow, initialization, and toggle behavior
// ABOUTME: Uses a scripted provider and a recording renderer to assert render order

package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/portfolio-chat/internal/clock"
	"github.com/2389/portfolio-chat/internal/provider"
	"github.com/2389/portfolio-chat/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type event struct {
	Kind    string
	Text    string
	Sender  Sender
	Prompts []string
	Status  state.Status
	IsOpen  bool
}

type recordingRenderer struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingRenderer) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingRenderer) RenderMessage(text string, sender Sender) {
	r.add(event{Kind: "message", Text: text, Sender: sender})
}

func (r *recordingRenderer) RenderQuickPrompts(prompts []string) {
	r.add(event{Kind: "prompts", Prompts: prompts})
}

func (r *recordingRenderer) RemoveQuickPrompts() {
	r.add(event{Kind: "remove_prompts"})
}

func (r *recordingRenderer) UpdateUIState(snap state.Snapshot) {
	r.add(event{Kind: "state", Status: snap.Status, IsOpen: snap.IsOpen})
}

func (r *recordingRenderer) Events() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingRenderer) Messages(sender Sender) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == "message" && e.Sender == sender {
			out = append(out, e.Text)
		}
	}
	return out
}

// scriptedProvider answers with reply or err. When gate is set, it blocks
// until the gate is closed or ctx ends.
type scriptedProvider struct {
	reply provider.InboundReply
	err   error
	gate  chan struct{}

	mu       sync.Mutex
	received []string
	observed []state.Status
	st       *state.State
}

func (p *scriptedProvider) Respond(ctx context.Context, text string) (provider.InboundReply, error) {
	p.mu.Lock()
	p.received = append(p.received, text)
	if p.st != nil {
		p.observed = append(p.observed, p.st.Status())
	}
	p.mu.Unlock()

	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return provider.InboundReply{}, ctx.Err()
		}
	}
	return p.reply, p.err
}

func (p *scriptedProvider) Received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}

// pausingRenderer holds the first idle notification until release is closed.
type pausingRenderer struct {
	recordingRenderer
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *pausingRenderer) UpdateUIState(snap state.Snapshot) {
	if snap.Status == state.StatusIdle {
		r.once.Do(func() {
			close(r.entered)
			<-r.release
		})
	}
	r.recordingRenderer.UpdateUIState(snap)
}

func (r *pausingRenderer) LastStatus() state.Status {
	var last state.Status
	for _, e := range r.Events() {
		if e.Kind == "state" {
			last = e.Status
		}
	}
	return last
}

// blockAfterFirst answers the first call at once and holds later calls
// until gate is closed.
type blockAfterFirst struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (p *blockAfterFirst) Respond(ctx context.Context, text string) (provider.InboundReply, error) {
	if p.calls.Add(1) > 1 {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return provider.InboundReply{}, ctx.Err()
		}
	}
	return provider.InboundReply{Reply: "re: " + text}, nil
}

func newTestController(t *testing.T, p *scriptedProvider, opts ...Option) (*Controller, *recordingRenderer) {
	t.Helper()
	r := &recordingRenderer{}
	st := state.New("conv-test", r)
	p.st = st
	return NewController(st, p, r, opts...), r
}

func TestSubmit_WhitespaceIsNoOp(t *testing.T) {
	p := &scriptedProvider{}
	c, r := newTestController(t, p)

	for _, raw := range []string{"", "   ", "\t\n "} {
		assert.False(t, c.Submit(context.Background(), raw))
	}

	assert.Empty(t, r.Events())
	assert.Empty(t, p.Received())
	assert.Equal(t, state.StatusIdle, c.State().Status())
}

func TestSubmit_SuccessRendersInOrder(t *testing.T) {
	p := &scriptedProvider{reply: provider.InboundReply{Reply: "hello back", ConversationID: "conv-test", Confidence: 0.8}}
	c, r := newTestController(t, p)

	require.True(t, c.Submit(context.Background(), "  hello  "))

	want := []event{
		{Kind: "message", Text: "hello", Sender: SenderUser},
		{Kind: "state", Status: state.StatusLoading},
		{Kind: "message", Text: "hello back", Sender: SenderBot},
		{Kind: "state", Status: state.StatusIdle},
	}
	if diff := cmp.Diff(want, r.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"hello"}, p.Received())
	assert.Equal(t, []state.Status{state.StatusLoading}, p.observed)
}

func TestSubmit_SanitizesBeforeRenderAndSend(t *testing.T) {
	p := &scriptedProvider{reply: provider.InboundReply{Reply: "ok"}}
	c, r := newTestController(t, p)

	require.True(t, c.Submit(context.Background(), `<img src=x onerror="alert('x')">`))

	escaped := `&lt;img src=x onerror="alert('x')"&gt;`
	assert.Equal(t, []string{escaped}, r.Messages(SenderUser))
	assert.Equal(t, []string{escaped}, p.Received())
}

func TestSubmit_QuotesReachProviderUnchanged(t *testing.T) {
	p := &scriptedProvider{reply: provider.InboundReply{Reply: "ok"}}
	c, r := newTestController(t, p)

	require.True(t, c.Submit(context.Background(), `What's the "Omni" stack?`))

	assert.Equal(t, []string{`What's the "Omni" stack?`}, p.Received())
	assert.Equal(t, []string{`What's the "Omni" stack?`}, r.Messages(SenderUser))
}

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a & b", "a &amp; b"},
		{"<b>bold</b>", "&lt;b&gt;bold&lt;/b&gt;"},
		{`it's "quoted"`, `it's "quoted"`},
		{"&amp;", "&amp;amp;"},
		{"a\u00a0b", "a&nbsp;b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeHTML(tt.in), "input %q", tt.in)
	}
}

func TestSubmit_FailureRendersOneSystemMessage(t *testing.T) {
	cause := &provider.ExhaustedRetriesError{
		Attempts: 4,
		Last:     &provider.TransportError{StatusCode: 500},
	}
	p := &scriptedProvider{err: cause}
	c, r := newTestController(t, p)

	require.True(t, c.Submit(context.Background(), "hi"))

	assert.Equal(t, []string{DefaultErrorMessage}, r.Messages(SenderSystem))
	assert.Empty(t, r.Messages(SenderBot))
	for _, e := range r.Events() {
		assert.NotContains(t, e.Text, "HTTP 500")
	}
	assert.Equal(t, state.StatusIdle, c.State().Status())
}

func TestSubmit_WhileLoadingIsNoOp(t *testing.T) {
	p := &scriptedProvider{
		reply: provider.InboundReply{Reply: "first"},
		gate:  make(chan struct{}),
	}
	c, r := newTestController(t, p)

	accepted, done := c.SubmitAsync(context.Background(), "first")
	require.True(t, accepted)
	require.NotNil(t, done)
	assert.Equal(t, state.StatusLoading, c.State().Status())

	assert.False(t, c.Submit(context.Background(), "second"))
	assert.False(t, c.QuickPrompt(context.Background(), "third"))

	close(p.gate)
	<-done

	assert.Equal(t, []string{"first"}, p.Received())
	assert.Equal(t, []string{"first"}, r.Messages(SenderUser))
	assert.Equal(t, []string{"first"}, r.Messages(SenderBot))
	assert.Equal(t, state.StatusIdle, c.State().Status())

	assert.True(t, c.Submit(context.Background(), "again"))
}

func TestSubmit_ConcurrentSubmissionsAcceptOne(t *testing.T) {
	p := &scriptedProvider{
		reply: provider.InboundReply{Reply: "r"},
		gate:  make(chan struct{}),
	}
	c, _ := newTestController(t, p)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		dones    []<-chan struct{}
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, done := c.SubmitAsync(context.Background(), "hi")
			if ok {
				mu.Lock()
				accepted++
				dones = append(dones, done)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(p.gate)
	for _, d := range dones {
		<-d
	}

	assert.Equal(t, 1, accepted)
	assert.Len(t, p.Received(), 1)
}

func TestSubmit_LateIdleNotificationDoesNotHideNextLoading(t *testing.T) {
	r := &pausingRenderer{entered: make(chan struct{}), release: make(chan struct{})}
	st := state.New("conv-test", r)
	p := &blockAfterFirst{gate: make(chan struct{})}
	c := NewController(st, p, r)
	ctx := context.Background()

	firstDone := make(chan bool, 1)
	go func() { firstDone <- c.Submit(ctx, "first") }()
	<-r.entered

	type result struct {
		accepted bool
		done     <-chan struct{}
	}
	second := make(chan result, 1)
	go func() {
		ok, done := c.SubmitAsync(ctx, "second")
		second <- result{ok, done}
	}()

	assert.Never(t, func() bool { return len(second) > 0 },
		50*time.Millisecond, 5*time.Millisecond,
		"loading must not be published while idle is still being delivered")

	close(r.release)
	require.True(t, <-firstDone)
	res := <-second
	require.True(t, res.accepted)

	assert.Equal(t, state.StatusLoading, st.Status())
	assert.Equal(t, state.StatusLoading, r.LastStatus())

	close(p.gate)
	<-res.done
	assert.Equal(t, state.StatusIdle, r.LastStatus())
	assert.Equal(t, []string{"re: first", "re: second"}, r.Messages(SenderBot))
}

func TestSubmit_CancelledContextRendersNothing(t *testing.T) {
	p := &scriptedProvider{gate: make(chan struct{})}
	c, r := newTestController(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	accepted, done := c.SubmitAsync(ctx, "hi")
	require.True(t, accepted)
	cancel()
	<-done

	assert.Empty(t, r.Messages(SenderSystem))
	assert.Empty(t, r.Messages(SenderBot))
	assert.Equal(t, state.StatusIdle, c.State().Status())
}

func TestInit_RendersGreetingAndPromptsOnce(t *testing.T) {
	c, r := newTestController(t, &scriptedProvider{})

	assert.True(t, c.Init())
	assert.False(t, c.Init())

	want := []event{
		{Kind: "message", Text: DefaultGreeting, Sender: SenderBot},
		{Kind: "prompts", Prompts: DefaultQuickPrompts()},
	}
	if diff := cmp.Diff(want, r.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, c.State().Snapshot().IsInitialized)
}

func TestQuickPrompts_RemovedOnFirstSubmissionOnly(t *testing.T) {
	p := &scriptedProvider{reply: provider.InboundReply{Reply: "ok"}}
	c, r := newTestController(t, p)
	c.Init()

	require.True(t, c.QuickPrompt(context.Background(), "Como você escala sistemas?"))
	require.True(t, c.Submit(context.Background(), "follow up"))

	var removals, userIdx, removeIdx, loadingIdx int
	for i, e := range r.Events() {
		switch {
		case e.Kind == "remove_prompts":
			removals++
			removeIdx = i
		case e.Kind == "message" && e.Sender == SenderUser && userIdx == 0:
			userIdx = i
		case e.Kind == "state" && e.Status == state.StatusLoading && loadingIdx == 0:
			loadingIdx = i
		}
	}
	assert.Equal(t, 1, removals)
	assert.Less(t, userIdx, removeIdx)
	assert.Less(t, removeIdx, loadingIdx)
	assert.Equal(t, []string{"Como você escala sistemas?"}, p.Received()[:1])
}

func TestToggle_FirstOpenInitializes(t *testing.T) {
	c, r := newTestController(t, &scriptedProvider{})

	assert.True(t, c.Toggle())
	assert.False(t, c.Toggle())
	assert.True(t, c.Toggle())

	assert.Equal(t, []string{DefaultGreeting}, r.Messages(SenderBot))

	var opens []bool
	for _, e := range r.Events() {
		if e.Kind == "state" {
			opens = append(opens, e.IsOpen)
		}
	}
	assert.Equal(t, []bool{true, false, true}, opens)
}

func TestOptions_CustomTexts(t *testing.T) {
	p := &scriptedProvider{err: errors.New("boom")}
	c, r := newTestController(t, p,
		WithGreeting("Hello there"),
		WithQuickPrompts(nil),
		WithErrorMessage("Something went wrong"),
		WithSanitizer(func(s string) string { return "[" + s + "]" }),
	)

	c.Init()
	c.Submit(context.Background(), "x")

	want := []event{
		{Kind: "message", Text: "Hello there", Sender: SenderBot},
		{Kind: "message", Text: "[x]", Sender: SenderUser},
		{Kind: "state", Status: state.StatusLoading},
		{Kind: "message", Text: "Something went wrong", Sender: SenderSystem},
		{Kind: "state", Status: state.StatusIdle},
	}
	if diff := cmp.Diff(want, r.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_SimulatedProviderScenario(t *testing.T) {
	r := &recordingRenderer{}
	st := state.New("conv-sim", r)
	fake := clock.NewFake(time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC))
	sim := provider.NewSimulated("conv-sim",
		provider.WithClock(fake),
		provider.WithLatency(func() time.Duration { return 1500 * time.Millisecond }),
	)
	c := NewController(st, sim, r)

	require.True(t, c.Submit(context.Background(), "How do you SCALE systems?"))

	bot := r.Messages(SenderBot)
	require.Len(t, bot, 1)
	assert.Contains(t, bot[0], "Sobre escala")
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, fake.Sleeps())
	assert.Equal(t, state.StatusIdle, st.Status())
}
