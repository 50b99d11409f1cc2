// ABOUTME: Tests for the simulated provider's trigger dispatch and latency
// ABOUTME: Covers first-match-wins ordering, case-insensitivity, and constant confidence

package provider

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/portfolio-chat/internal/clock"
)

func TestSimulated_ScalingQuestion(t *testing.T) {
	fc := clock.NewFake(testStart)
	sim := NewSimulated("client-conv", WithClock(fc))

	reply, err := sim.Respond(context.Background(), "Como você escala sistemas?")
	require.NoError(t, err)

	assert.Contains(t, reply.Reply, "Sobre escala")
	assert.Equal(t, "client-conv", reply.ConversationID)
	assert.Equal(t, 0.99, reply.Confidence)

	sleeps := fc.Sleeps()
	require.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], 1200*time.Millisecond)
	assert.Less(t, sleeps[0], 2000*time.Millisecond)
}

func TestSimulated_DeterministicAcrossCase(t *testing.T) {
	fc := clock.NewFake(testStart)
	sim := NewSimulated("client-conv", WithClock(fc))

	inputs := []string{"fale da ARQUITETURA", "Fale da arquitetura", "fale da arquitetura"}
	var replies []string
	for i := 0; i < 3; i++ {
		for _, in := range inputs {
			reply, err := sim.Respond(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, SimulatedConfidence, reply.Confidence)
			replies = append(replies, reply.Reply)
		}
	}

	for _, r := range replies {
		assert.Equal(t, replies[0], r)
	}
	assert.Contains(t, replies[0], "Determinismo sobre Probabilidade")
}

func TestMatch_FirstTriggerWins(t *testing.T) {
	triggers := DefaultTriggers()

	// "escala" and "arquitetura" both match; the scaling trigger comes first.
	assert.Equal(t, triggers[0].Reply, Match(triggers, "A arquitetura escala?"))
	assert.Equal(t, triggers[1].Reply, Match(triggers, "the architecture at omni"))
	assert.Equal(t, triggers[2].Reply, Match(triggers, "O que você fez na Omni?"))
	assert.Equal(t, DefaultReply, Match(triggers, "Qual o seu foco em GenAI?"))
	assert.Equal(t, DefaultReply, Match(triggers, ""))
}

func TestMatch_KeywordCaseIgnored(t *testing.T) {
	triggers := []Trigger{{Keywords: []string{"GoLang"}, Reply: "go!"}}
	assert.Equal(t, "go!", Match(triggers, "do you write golang?"))
}

func TestSimulated_CustomTriggersAndLatency(t *testing.T) {
	fc := clock.NewFake(testStart)
	sim := NewSimulated("client-conv",
		WithClock(fc),
		WithTriggers([]Trigger{{Keywords: []string{"kafka"}, Reply: "streams"}}),
		WithLatency(func() time.Duration { return 1500 * time.Millisecond }),
	)

	reply, err := sim.Respond(context.Background(), "Kafka experience?")
	require.NoError(t, err)
	assert.Equal(t, "streams", reply.Reply)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, fc.Sleeps())
}

func TestRandomLatency_Bounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := RandomLatency()
		require.GreaterOrEqual(t, d, MinLatency)
		require.Less(t, d, MinLatency+LatencySpread)
	}
}

func TestSimulated_CancelledContext(t *testing.T) {
	sim := NewSimulated("client-conv", WithClock(clock.NewFake(testStart)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Respond(ctx, "escala")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "abandoned"))
}
