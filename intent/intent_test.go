package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navigator-sdk/navigator/core"
	"github.com/navigator-sdk/navigator/eventbus"
	"github.com/navigator-sdk/navigator/plugin"
	"github.com/navigator-sdk/navigator/store"
)

func setupCore(t *testing.T, p *Predictor) *core.Core {
	t.Helper()
	c := core.New()
	c.RegisterPlugin(p, plugin.WithPriority(150))
	require.NoError(t, c.Init(context.Background()))
	return c
}

func feedSwipeRight(p *Predictor, n int, start time.Time) {
	for i := 0; i < n; i++ {
		p.Sample(Point{X: 0.1 + float64(i)*0.08, Y: 0.5, At: start.Add(time.Duration(i) * 40 * time.Millisecond)})
	}
}

func TestSwipeRightTrajectoryYieldsSwipeRightTopScore(t *testing.T) {
	p := New(DefaultConfig())
	setupCore(t, p)

	predicted := make(chan map[string]any, 8)
	p.core.EventBus().On(EventPrediction, func(ev eventbus.Event) {
		predicted <- ev.Payload.(map[string]any)
	})

	feedSwipeRight(p, 8, time.Now())

	select {
	case payload := <-predicted:
		assert.Equal(t, "swipe_right", payload["gesture"])
		assert.Greater(t, payload["confidence"].(float64), 0.5)
	case <-time.After(time.Second):
		t.Fatal("no prediction emitted for a clear swipe-right trajectory")
	}
}

func TestStationaryTrajectoryScoresPointHighest(t *testing.T) {
	p := New(DefaultConfig())
	setupCore(t, p)

	start := time.Now()
	for i := 0; i < 6; i++ {
		p.Sample(Point{X: 0.5, Y: 0.5, At: start.Add(time.Duration(i) * 40 * time.Millisecond)})
	}

	features := extractFeatures(p.buffer)
	scores := p.score(features)
	assert.Greater(t, scores["point"], scores["swipe_left"])
	assert.Greater(t, scores["point"], scores["swipe_right"])
}

func TestFrustratedStateLowersEmissionThresholdAndBoostsPreRender(t *testing.T) {
	p := New(DefaultConfig())
	c := setupCore(t, p)
	c.Store().Dispatch(store.CognitiveStateChanged(store.CognitiveFrustrated))

	preRendered := make(chan struct{}, 1)
	p.core.EventBus().On(EventPreRender, func(ev eventbus.Event) {
		select {
		case preRendered <- struct{}{}:
		default:
		}
	})

	feedSwipeRight(p, 8, time.Now())

	select {
	case <-preRendered:
	case <-time.After(time.Second):
		t.Fatal("expected pre_render to fire once frustrated confidence boost applies")
	}
}

func TestBufferTrimsToConfiguredSize(t *testing.T) {
	p := New(Config{BufferSize: 5, Signatures: DefaultSignatures(), Weights: DefaultWeights()})
	setupCore(t, p)

	start := time.Now()
	for i := 0; i < 20; i++ {
		p.Sample(Point{X: float64(i) * 0.01, Y: 0.5, At: start.Add(time.Duration(i) * 10 * time.Millisecond)})
	}
	assert.LessOrEqual(t, len(p.buffer), 5)
}

func TestResetClearsBuffer(t *testing.T) {
	p := New(DefaultConfig())
	setupCore(t, p)
	p.Sample(Point{X: 0.1, Y: 0.1})
	p.Sample(Point{X: 0.2, Y: 0.1})
	require.NotEmpty(t, p.buffer)
	p.Reset()
	assert.Empty(t, p.buffer)
}

func TestCosineSimilarityNeutralForNonDirectionalSignature(t *testing.T) {
	assert.Equal(t, 0.5, cosineSimilarity(Point{}, Point{X: 1, Y: 0}))
}

func TestVelocityScoreWithinRangeIsPerfect(t *testing.T) {
	assert.Equal(t, 1.0, velocityScore(1.0, 0.3, 3.0))
}

func TestAccelerationPatternDetectsAcceleratingTrajectory(t *testing.T) {
	start := time.Now()
	buf := []Point{
		{X: 0, Y: 0, At: start},
		{X: 0.01, Y: 0, At: start.Add(100 * time.Millisecond)},
		{X: 0.05, Y: 0, At: start.Add(200 * time.Millisecond)},
		{X: 0.3, Y: 0, At: start.Add(300 * time.Millisecond)},
	}
	assert.Equal(t, Accelerating, accelerationPattern(buf))
}
