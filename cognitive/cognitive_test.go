package cognitive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navigator-sdk/navigator/core"
	"github.com/navigator-sdk/navigator/eventbus"
	"github.com/navigator-sdk/navigator/history"
	"github.com/navigator-sdk/navigator/plugin"
	"github.com/navigator-sdk/navigator/store"
)

func TestFrustratedSignalVotesAccumulateToThreshold(t *testing.T) {
	c := core.New()
	m := New(Config{PollInterval: 5 * time.Millisecond, VoteThreshold: 3, MetricsWindow: 10, ErrorWindow: 5 * time.Second})
	c.RegisterPlugin(m, plugin.WithPriority(150))

	require.NoError(t, c.Init(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	transitioned := make(chan struct{})
	c.EventBus().On(EventStateChange, func(ev eventbus.Event) {
		payload := ev.Payload.(map[string]any)
		if payload["to"] == store.CognitiveFrustrated {
			close(transitioned)
		}
	})

	for i := 0; i < 10; i++ {
		c.RecordAction(history.NewAction("intent:select", i < 5)) // 50% failure rate: errorRate > 0.40
	}

	select {
	case <-transitioned:
	case <-time.After(2 * time.Second):
		t.Fatal("cognitive state never transitioned to frustrated")
	}

	assert.Equal(t, store.CognitiveFrustrated, c.Store().GetState().User.CognitiveState)
}

func TestNoSignalsLeavesStateNeutral(t *testing.T) {
	c := core.New()
	m := New(Config{PollInterval: 5 * time.Millisecond, VoteThreshold: 2, MetricsWindow: 10, ErrorWindow: 5 * time.Second})
	c.RegisterPlugin(m, plugin.WithPriority(150))

	require.NoError(t, c.Init(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, store.CognitiveState(""), c.Store().GetState().User.CognitiveState)
}
