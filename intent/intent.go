// Package intent implements IntentPredictor (spec component C7): an
// analyzer plugin that consumes normalized hand-position samples,
// extracts kinematic features over a short trajectory buffer, scores
// them against a small signature database, and emits confidence-gated
// predictions.
package intent

import (
	"context"
	"math"
	"time"

	"github.com/navigator-sdk/navigator/history"
	"github.com/navigator-sdk/navigator/logger"
	"github.com/navigator-sdk/navigator/plugin"
	"github.com/navigator-sdk/navigator/store"
)

const (
	EventPrediction = "intent:prediction"
	EventPreRender  = "intent:pre_render"
	EventStable     = "intent:stable"
)

// Point is a normalized (x,y) hand sample in [0,1]^2.
type Point struct {
	X, Y float64
	At   time.Time
}

// AccelerationPattern classifies the trajectory's speed trend.
type AccelerationPattern string

const (
	Accelerating AccelerationPattern = "accelerating"
	Decelerating AccelerationPattern = "decelerating"
	Constant     AccelerationPattern = "constant"
)

// Signature is a named reference gesture: an expected unit direction,
// an acceptable speed range, and the acceleration pattern it matches.
type Signature struct {
	Name        string
	Direction   Point // unit vector; zero vector for non-directional gestures (point, pinch)
	MinSpeed    float64
	MaxSpeed    float64
	Pattern     AccelerationPattern
}

// DefaultSignatures is the built-in signature database: four swipes
// plus point and pinch.
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "swipe_left", Direction: Point{X: -1, Y: 0}, MinSpeed: 0.3, MaxSpeed: 3.0, Pattern: Accelerating},
		{Name: "swipe_right", Direction: Point{X: 1, Y: 0}, MinSpeed: 0.3, MaxSpeed: 3.0, Pattern: Accelerating},
		{Name: "swipe_up", Direction: Point{X: 0, Y: -1}, MinSpeed: 0.3, MaxSpeed: 3.0, Pattern: Accelerating},
		{Name: "swipe_down", Direction: Point{X: 0, Y: 1}, MinSpeed: 0.3, MaxSpeed: 3.0, Pattern: Accelerating},
		{Name: "point", Direction: Point{}, MinSpeed: 0, MaxSpeed: 0.15, Pattern: Constant},
		{Name: "pinch", Direction: Point{}, MinSpeed: 0, MaxSpeed: 0.2, Pattern: Decelerating},
	}
}

// Weights controls the scoring blend between direction, velocity, and
// acceleration-pattern agreement. Defaults match the spec: {0.4,0.4,0.2}.
type Weights struct {
	Direction    float64
	Velocity     float64
	Acceleration float64
}

// DefaultWeights returns the spec's default weighting.
func DefaultWeights() Weights { return Weights{Direction: 0.4, Velocity: 0.4, Acceleration: 0.2} }

// Config tunes IntentPredictor.
type Config struct {
	BufferSize int
	Signatures []Signature
	Weights    Weights
}

// DefaultConfig keeps the last 20 samples.
func DefaultConfig() Config {
	return Config{BufferSize: 20, Signatures: DefaultSignatures(), Weights: DefaultWeights()}
}

// Predictor is the IntentPredictor plugin.
type Predictor struct {
	cfg    Config
	core   plugin.Core
	buffer []Point
}

// New constructs a Predictor.
func New(cfg Config) *Predictor {
	if cfg.BufferSize <= 0 {
		cfg = DefaultConfig()
	}
	if len(cfg.Signatures) == 0 {
		cfg.Signatures = DefaultSignatures()
	}
	return &Predictor{cfg: cfg}
}

// Name implements plugin.Plugin.
func (p *Predictor) Name() string { return "intent-predictor" }

// Init implements plugin.Plugin.
func (p *Predictor) Init(ctx context.Context, core plugin.Core) error {
	p.core = core
	return nil
}

// Sample feeds one normalized hand position into the trajectory
// buffer and, once at least 3 samples are present, scores and
// possibly emits a prediction. Call this from an input plugin's
// gesture sampling callback.
func (p *Predictor) Sample(pt Point) {
	if pt.At.IsZero() {
		pt.At = time.Now()
	}
	p.buffer = append(p.buffer, pt)
	if len(p.buffer) > p.cfg.BufferSize {
		p.buffer = p.buffer[len(p.buffer)-p.cfg.BufferSize:]
	}
	if len(p.buffer) < 3 {
		return
	}

	features := extractFeatures(p.buffer)
	scores := p.score(features)
	top, topScore := topSignature(scores)

	cogState := store.CognitiveNeutral
	if p.core != nil {
		cogState = p.core.Store().GetState().User.CognitiveState
	}

	minConfidence := thresholdFor(cogState, 0.70, map[store.CognitiveState]float64{
		store.CognitiveFrustrated:   0.60,
		store.CognitiveExploring:    0.50,
		store.CognitiveConcentrated: 0.75,
	})
	preRenderThreshold := 0.85
	if cogState == store.CognitiveFrustrated {
		topScore += 0.10
		if topScore > 1 {
			topScore = 1
		}
	}
	stableThreshold := thresholdFor(cogState, 0.95, map[store.CognitiveState]float64{
		store.CognitiveExploring: 0.90,
	})

	if topScore < minConfidence {
		return
	}

	payload := map[string]any{
		"gesture":    top,
		"confidence": topScore,
		"trajectory": p.buffer,
	}

	logger.Intent().Debug().Str("gesture", top).Float64("confidence", topScore).Msg("intent sample scored")
	p.core.EventBus().Emit(EventPrediction, payload)

	if topScore >= preRenderThreshold {
		p.core.EventBus().Emit(EventPreRender, payload)
	}
	if topScore >= stableThreshold {
		p.core.EventBus().Emit(EventStable, payload)
		p.Reset()
	}
}

// Reset clears the trajectory buffer, e.g. once a gesture reaches
// "stable" and downstream has confirmed it, or the hand is lost.
func (p *Predictor) Reset() {
	p.buffer = nil
}

func thresholdFor(state store.CognitiveState, base float64, overrides map[store.CognitiveState]float64) float64 {
	if v, ok := overrides[state]; ok {
		return v
	}
	return base
}

type features struct {
	displacement Point
	distance     float64
	direction    Point // unit vector
	speed        float64
	duration     time.Duration
	pattern      AccelerationPattern
}

func extractFeatures(buf []Point) features {
	first, last := buf[0], buf[len(buf)-1]
	dx, dy := last.X-first.X, last.Y-first.Y
	dist := math.Hypot(dx, dy)
	duration := last.At.Sub(first.At)

	var dir Point
	if dist > 1e-9 {
		dir = Point{X: dx / dist, Y: dy / dist}
	}

	speed := 0.0
	if duration > 0 {
		speed = dist / duration.Seconds()
	}

	return features{
		displacement: Point{X: dx, Y: dy},
		distance:     dist,
		direction:    dir,
		speed:        speed,
		duration:     duration,
		pattern:      accelerationPattern(buf),
	}
}

// accelerationPattern compares the speed of the buffer's second half
// against its first half.
func accelerationPattern(buf []Point) AccelerationPattern {
	if len(buf) < 4 {
		return Constant
	}
	mid := len(buf) / 2
	firstSpeed := segmentSpeed(buf[:mid+1])
	secondSpeed := segmentSpeed(buf[mid:])

	const epsilon = 0.02
	switch {
	case secondSpeed-firstSpeed > epsilon:
		return Accelerating
	case firstSpeed-secondSpeed > epsilon:
		return Decelerating
	default:
		return Constant
	}
}

func segmentSpeed(buf []Point) float64 {
	if len(buf) < 2 {
		return 0
	}
	first, last := buf[0], buf[len(buf)-1]
	dist := math.Hypot(last.X-first.X, last.Y-first.Y)
	duration := last.At.Sub(first.At).Seconds()
	if duration <= 0 {
		return 0
	}
	return dist / duration
}

// score weighs each signature's direction/velocity/acceleration
// agreement independently; since the weights sum to 1 and each term
// is already bounded to [0,1], the result is itself a confidence in
// [0,1] per signature, not a distribution normalized across them.
func (p *Predictor) score(f features) map[string]float64 {
	raw := make(map[string]float64, len(p.cfg.Signatures))
	for _, sig := range p.cfg.Signatures {
		dirScore := cosineSimilarity(sig.Direction, f.direction)
		velScore := velocityScore(f.speed, sig.MinSpeed, sig.MaxSpeed)
		accScore := 0.0
		if sig.Pattern == f.pattern {
			accScore = 1.0
		}
		raw[sig.Name] = p.cfg.Weights.Direction*dirScore + p.cfg.Weights.Velocity*velScore + p.cfg.Weights.Acceleration*accScore
	}
	return raw
}

// cosineSimilarity scores directional agreement. Non-directional
// signatures (point, pinch) carry a zero Direction vector and get a
// neutral baseline; true swipe signatures score 0 once the observed
// direction is perpendicular or opposed, so a wrong-direction swipe
// can't ride velocity agreement alone to a high score.
func cosineSimilarity(a, b Point) float64 {
	magA := math.Hypot(a.X, a.Y)
	magB := math.Hypot(b.X, b.Y)
	if magA == 0 || magB == 0 {
		return 0.5
	}
	dot := a.X*b.X + a.Y*b.Y
	cos := dot / (magA * magB)
	return math.Max(0, cos)
}

func velocityScore(speed, min, max float64) float64 {
	if speed >= min && speed <= max {
		return 1
	}
	var distance float64
	if speed < min {
		distance = min - speed
	} else {
		distance = speed - max
	}
	return math.Max(0, 1-distance)
}

func topSignature(scores map[string]float64) (string, float64) {
	var bestName string
	var bestScore float64
	for name, score := range scores {
		if score > bestScore {
			bestName, bestScore = name, score
		}
	}
	return bestName, bestScore
}

// RecordConfirmedGesture records a confirmed selection into history,
// the handoff point between an advisory prediction and the caller's
// own confirmation logic.
func (p *Predictor) RecordConfirmedGesture(gesture string, success bool) {
	if p.core == nil {
		return
	}
	p.core.RecordAction(history.NewAction("intent:"+gesture, success))
}
