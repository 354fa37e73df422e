// Package eventbus implements Navigator's topic-addressed pub/sub
// broker: the EventBus (spec component C1).
//
// It supports wildcard subscriptions, priority ordering, a middleware
// chain, bounded event history/stats, and a circuit breaker that trips
// on re-entrant emit cycles. Delivery is synchronous: Emit returns once
// every handler has run, in priority-then-insertion order. An internal
// mutex guards the subscriber lists, history, stats and the breaker's
// call-depth/event-chain bookkeeping; handlers run outside it, so Emit
// calls from different goroutines are not serialized against each
// other and share that bookkeeping.
package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/navigator-sdk/navigator/logger"
)

// Event is the immutable envelope ("NavigatorEvent") delivered to every
// handler. Payload is attacker/plugin controlled and must be treated as
// read-only by subscribers.
type Event struct {
	Name      string
	Payload   any
	Timestamp time.Time
	Source    string
}

// Handler receives an Event. A handler that panics is recovered by the
// bus, logged, and reported as SystemError.
type Handler func(Event)

// UnsubscribeFunc detaches a previously registered handler. Calling it
// more than once is a no-op.
type UnsubscribeFunc func()

// Middleware intercepts every event before handler dispatch, in
// registration order. Returning nil cancels propagation for that emit.
type Middleware func(Event) *Event

const (
	// Wildcard subscribes to every event; wildcard handlers always run
	// after an event's specific handlers.
	Wildcard = "*"

	// SystemError is re-emitted (once, non-recursively) when a handler
	// panics.
	SystemError = "system:error"

	// SystemCircuitBreaker is emitted when the breaker refuses an emit.
	SystemCircuitBreaker = "system:circuit-breaker"
)

type subscribeOptions struct {
	once     bool
	priority int
}

// SubscribeOption configures On/Once.
type SubscribeOption func(*subscribeOptions)

// Once marks the subscription for automatic removal after its first
// successful invocation.
func Once() SubscribeOption {
	return func(o *subscribeOptions) { o.once = true }
}

// Priority sets delivery priority; higher runs first. Ties break by
// insertion order. Default is 0.
func Priority(p int) SubscribeOption {
	return func(o *subscribeOptions) { o.priority = p }
}

type subscription struct {
	id       uint64
	name     string
	handler  Handler
	once     bool
	priority int
	active   bool
}

// Config bounds the bus's history buffer and breaker thresholds.
type Config struct {
	HistorySize    int
	MaxCallDepth   int
	MaxChainLength int
}

// DefaultConfig matches the spec's defaults: 100-event history,
// call-depth ceiling of 100, chain-length ceiling of 50.
func DefaultConfig() Config {
	return Config{HistorySize: 100, MaxCallDepth: 100, MaxChainLength: 50}
}

// Bus is the EventBus implementation.
type Bus struct {
	mu             sync.Mutex
	subscribers    map[string][]*subscription
	nextID         uint64
	middlewares    []Middleware
	history        []Event
	historySize    int
	stats          map[string]int
	callDepth      map[string]int
	eventChain     []string
	maxCallDepth   int
	maxChainLength int
}

// New creates a Bus with the given configuration.
func New(cfg Config) *Bus {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = 100
	}
	if cfg.MaxChainLength <= 0 {
		cfg.MaxChainLength = 50
	}
	return &Bus{
		subscribers:    make(map[string][]*subscription),
		stats:          make(map[string]int),
		callDepth:      make(map[string]int),
		historySize:    cfg.HistorySize,
		maxCallDepth:   cfg.MaxCallDepth,
		maxChainLength: cfg.MaxChainLength,
	}
}

// NewDefault creates a Bus with DefaultConfig().
func NewDefault() *Bus { return New(DefaultConfig()) }

// On registers handler for name ("*" subscribes to every event) and
// returns a function that detaches it.
func (b *Bus) On(name string, handler Handler, opts ...SubscribeOption) UnsubscribeFunc {
	if handler == nil {
		panic("eventbus: On called with nil handler")
	}
	o := subscribeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, name: name, handler: handler, once: o.once, priority: o.priority, active: true}
	b.subscribers[name] = append(b.subscribers[name], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			sub.active = false
			b.mu.Unlock()
		})
	}
}

// Once is sugar for On(name, handler, Once()).
func (b *Bus) Once(name string, handler Handler) UnsubscribeFunc {
	return b.On(name, handler, Once())
}

// Off detaches subscriptions for name. With no tokens given it removes
// every handler registered for name; passing one or more
// UnsubscribeFunc tokens returned by On/Once removes just those,
// leaving the rest of name's subscribers in place.
func (b *Bus) Off(name string, tokens ...UnsubscribeFunc) {
	if len(tokens) == 0 {
		b.mu.Lock()
		delete(b.subscribers, name)
		b.mu.Unlock()
		return
	}
	for _, tok := range tokens {
		if tok != nil {
			tok()
		}
	}
}

// Use appends a middleware to the chain, run in registration order
// before handler dispatch.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middlewares = append(b.middlewares, mw)
}

// Emit publishes name/payload synchronously and returns whether any
// handler was invoked. Source is taken from payload's "source" field if
// payload is a map[string]any carrying one, else "unknown".
func (b *Bus) Emit(name string, payload any) bool {
	if name != SystemCircuitBreaker {
		if refused, reason, chain := b.checkBreaker(name); refused {
			b.tripBreaker(reason, name, chain)
			return false
		}
		defer b.releaseBreaker(name)
	}

	ev := Event{Name: name, Payload: payload, Timestamp: time.Now(), Source: sourceOf(payload)}

	for _, mw := range b.middlewareSnapshot() {
		result := mw(ev)
		if result == nil {
			return false
		}
		ev = *result
	}

	b.recordHistory(ev)

	specific := b.snapshotHandlers(name)
	var wildcard []*subscription
	if name != Wildcard {
		wildcard = b.snapshotHandlers(Wildcard)
	}

	invoked := false
	for _, sub := range specific {
		invoked = true
		b.invoke(sub, ev)
	}
	for _, sub := range wildcard {
		invoked = true
		b.invoke(sub, ev)
	}
	return invoked
}

// WaitFor resolves with the next occurrence of name, or returns a
// timeout error if ctx is cancelled first.
func (b *Bus) WaitFor(ctx context.Context, name string) (Event, error) {
	ch := make(chan Event, 1)
	unsub := b.Once(name, func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		unsub()
		return Event{}, fmt.Errorf("eventbus: waitFor %q: %w", name, ctx.Err())
	}
}

// GetHistory returns up to limit most-recent events, optionally
// filtered by name (empty name returns every recorded event).
func (b *Bus) GetHistory(name string, limit int) []Event {
	if limit <= 0 {
		limit = 50
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, limit)
	for i := len(b.history) - 1; i >= 0 && len(out) < limit; i-- {
		if name == "" || b.history[i].Name == name {
			out = append(out, b.history[i])
		}
	}
	// restore chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Stats summarizes emit activity.
type Stats struct {
	TotalEmits int
	Counts     map[string]int
}

// GetStats returns emit counters, including a name->count breakdown.
func (b *Bus) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[string]int, len(b.stats))
	total := 0
	for k, v := range b.stats {
		counts[k] = v
		total += v
	}
	return Stats{TotalEmits: total, Counts: counts}
}

// TopEvents returns the k most-emitted event names, descending by count.
func (s Stats) TopEvents(k int) []string {
	type kv struct {
		name  string
		count int
	}
	all := make([]kv, 0, len(s.Counts))
	for n, c := range s.Counts {
		all = append(all, kv{n, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].name < all[j].name
	})
	if k > len(all) {
		k = len(all)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].name
	}
	return out
}

// Clear removes every subscription and empties history and stats;
// middleware and breaker state are kept. Idempotent. Emits after Clear
// are legal and deliver to no one.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string][]*subscription)
	b.history = nil
	b.stats = make(map[string]int)
}

// Reset clears everything: subscribers, middleware, history, stats and
// breaker state. Emits after Reset are legal and deliver to no one.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string][]*subscription)
	b.middlewares = nil
	b.history = nil
	b.stats = make(map[string]int)
	b.callDepth = make(map[string]int)
	b.eventChain = nil
}

func sourceOf(payload any) string {
	if m, ok := payload.(map[string]any); ok {
		if s, ok := m["source"].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

func (b *Bus) middlewareSnapshot() []Middleware {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Middleware, len(b.middlewares))
	copy(out, b.middlewares)
	return out
}

// snapshotHandlers returns the active subscriptions for name, ordered
// by priority desc then insertion order, as a copy so handlers added
// during iteration of the current emit are not observed by it.
func (b *Bus) snapshotHandlers(name string) []*subscription {
	b.mu.Lock()
	subs := b.subscribers[name]
	out := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if s.active {
			out = append(out, s)
		}
	}
	b.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority > out[j].priority
		}
		return out[i].id < out[j].id
	})
	return out
}

func (b *Bus) recordHistory(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats[ev.Name]++
	b.history = append(b.history, ev)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
}

func (b *Bus) invoke(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Bus().Error().Str("event", ev.Name).Interface("panic", r).Msg("handler panicked")
			if ev.Name != SystemError && ev.Name != SystemCircuitBreaker {
				b.Emit(SystemError, map[string]any{
					"event":  ev.Name,
					"reason": fmt.Sprintf("%v", r),
					"source": "eventbus",
				})
			}
		}
	}()

	sub.handler(ev)
	if sub.once {
		b.mu.Lock()
		sub.active = false
		b.mu.Unlock()
	}
}

// checkBreaker evaluates the circuit-breaker rules for name. An allowed
// emit is also recorded: callDepth[name] is incremented and name is
// pushed onto eventChain (releaseBreaker undoes both). A refused emit
// leaves that state unchanged.
func (b *Bus) checkBreaker(name string) (refused bool, reason string, chain []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.callDepth[name] >= b.maxCallDepth {
		return true, "max_depth_exceeded", nil
	}
	if containsString(b.eventChain, name) && len(b.eventChain) >= b.maxChainLength {
		cycle := make([]string, len(b.eventChain))
		copy(cycle, b.eventChain)
		return true, "cycle_detected", cycle
	}

	b.callDepth[name]++
	b.eventChain = append(b.eventChain, name)
	return false, "", nil
}

func (b *Bus) releaseBreaker(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callDepth[name]--
	if len(b.eventChain) > 0 {
		b.eventChain = b.eventChain[:len(b.eventChain)-1]
	}
}

func (b *Bus) tripBreaker(reason, name string, chain []string) {
	logger.Bus().Warn().Str("type", reason).Str("event", name).Msg("circuit breaker refused emit")
	payload := map[string]any{"type": reason, "event": name, "source": "eventbus"}
	if chain != nil {
		payload["chain"] = chain
	}
	b.Emit(SystemCircuitBreaker, payload)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
