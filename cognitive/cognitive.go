// Package cognitive implements CognitiveModel (spec component C6): an
// analyzer plugin that polls UserSessionHistory metrics on a timer,
// accumulates per-cycle signal votes, and emits a cognitive-state
// transition once a signal's vote count crosses a threshold.
package cognitive

import (
	"context"
	"time"

	"github.com/navigator-sdk/navigator/history"
	"github.com/navigator-sdk/navigator/logger"
	"github.com/navigator-sdk/navigator/plugin"
	"github.com/navigator-sdk/navigator/store"
)

const (
	// EventStateChange carries {from, to, confidence, signals, timestamp}.
	EventStateChange = "cognitive_state:change"
	eventSlicePrefix = "cognitive_state:"
)

// Config tunes CognitiveModel's polling and vote thresholds.
type Config struct {
	PollInterval    time.Duration
	VoteThreshold   int
	MetricsWindow   int
	ErrorWindow     time.Duration
}

// DefaultConfig matches the spec's defaults: 500ms polling, a
// three-consecutive-vote threshold.
func DefaultConfig() Config {
	return Config{
		PollInterval:  500 * time.Millisecond,
		VoteThreshold: 3,
		MetricsWindow: 10,
		ErrorWindow:   5 * time.Second,
	}
}

// signalPriority is the vote priority order used when multiple signals cross
// threshold in the same cycle: frustrated > concentrated > learning >
// exploring > neutral.
var signalPriority = []store.CognitiveState{
	store.CognitiveFrustrated,
	store.CognitiveConcentrated,
	store.CognitiveLearning,
	store.CognitiveExploring,
}

// Model is the CognitiveModel plugin.
type Model struct {
	cfg    Config
	core   plugin.Core
	votes  map[store.CognitiveState]int
	state  store.CognitiveState
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Model; call RegisterPlugin against a core.Core to
// wire its lifecycle.
func New(cfg Config) *Model {
	if cfg.PollInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Model{cfg: cfg, votes: make(map[store.CognitiveState]int), state: store.CognitiveNeutral}
}

// Name implements plugin.Plugin.
func (m *Model) Name() string { return "cognitive-model" }

// Init implements plugin.Plugin.
func (m *Model) Init(ctx context.Context, core plugin.Core) error {
	m.core = core
	return nil
}

// Start implements plugin.Starter: launches the polling goroutine.
func (m *Model) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(runCtx)
	return nil
}

// Stop implements plugin.Stopper: halts the polling timer.
func (m *Model) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	return nil
}

func (m *Model) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Model) tick() {
	h := m.core.History()
	metrics := h.GetMetrics(m.cfg.MetricsWindow)
	clusters := h.GetErrorClusters(m.cfg.ErrorWindow)

	satisfied := m.evaluateSignals(metrics, clusters, h)
	for _, s := range []store.CognitiveState{
		store.CognitiveFrustrated, store.CognitiveConcentrated, store.CognitiveExploring, store.CognitiveLearning,
	} {
		if satisfied[s] {
			m.votes[s]++
		} else {
			m.votes[s] = 0
		}
	}

	for _, s := range signalPriority {
		if m.votes[s] >= m.cfg.VoteThreshold {
			m.transition(s, satisfied)
			return
		}
	}
}

func (m *Model) evaluateSignals(metrics history.Metrics, clusters history.ErrorClusters, h *history.History) map[store.CognitiveState]bool {
	satisfied := make(map[store.CognitiveState]bool, 4)

	satisfied[store.CognitiveFrustrated] = metrics.ErrorRate > 0.40 || clusters.MaxClusterSize >= 3
	satisfied[store.CognitiveConcentrated] = metrics.AverageDuration > 0 && metrics.AverageDuration < 400 && metrics.ErrorRate < 0.10
	satisfied[store.CognitiveExploring] = metrics.ActionVariety > 0.60 && metrics.ErrorRate >= 0.10 && metrics.ErrorRate <= 0.40
	satisfied[store.CognitiveLearning] = m.learningSignal(h)

	return satisfied
}

// learningSignal compares success rate across the two halves of the
// last 20 actions; learning is signaled when the second half's success
// rate exceeds the first half's by at least 0.15.
func (m *Model) learningSignal(h *history.History) bool {
	window := h.GetLatest(20)
	if len(window) < 20 {
		return false
	}
	mid := len(window) / 2
	firstRate := successRate(window[:mid])
	secondRate := successRate(window[mid:])
	return secondRate-firstRate >= 0.15
}

func successRate(actions []history.Action) float64 {
	if len(actions) == 0 {
		return 0
	}
	ok := 0
	for _, a := range actions {
		if a.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(actions))
}

func (m *Model) transition(to store.CognitiveState, signals map[store.CognitiveState]bool) {
	from := m.state
	if from == to {
		return
	}
	vote := m.votes[to]
	confidence := float64(vote) / (float64(m.cfg.VoteThreshold) * 1.5)
	if confidence > 1 {
		confidence = 1
	}

	m.state = to
	m.votes = make(map[store.CognitiveState]int)

	payload := map[string]any{
		"from":       from,
		"to":         to,
		"confidence": confidence,
		"signals":    signals,
		"timestamp":  time.Now(),
	}

	logger.Cognitive().Info().Str("from", string(from)).Str("to", string(to)).
		Float64("confidence", confidence).Msg("cognitive state transition")

	m.core.EventBus().Emit(EventStateChange, payload)
	m.core.EventBus().Emit(eventSlicePrefix+string(to), payload)
	m.core.Store().Dispatch(store.CognitiveStateChanged(to))
}
