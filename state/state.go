// Package state implements AppState (spec component C3): the legacy
// reactive, dot-path state container kept alongside the Store for
// plugins that predate the Store migration, and for features (history,
// time-travel, persistence) not yet reproduced there.
package state

import (
	"strings"
	"sync"
	"time"

	"github.com/navigator-sdk/navigator/logger"
)

// ChangeEvent is handed to bus-facing callers on every non-silent
// setState; AppState itself never imports eventbus (same decoupling
// rationale as store.Store) so core wires OnChange to mirror it.
type ChangeEvent struct {
	Previous map[string]any
	Current  map[string]any
	Updates  map[string]any
	Source   string
}

// ComputedEvent is handed to OnComputedUpdate after every non-silent
// setState, once computed properties have been refreshed. Computed is
// empty when no computed properties are registered, but the event
// still fires: the refresh step runs unconditionally.
type ComputedEvent struct {
	Current  map[string]any
	Computed map[string]any
	Source   string
}

// ResetEvent is handed to OnReset on a non-silent Reset.
type ResetEvent struct {
	Previous map[string]any
	Current  map[string]any
}

// TimeTravelEvent is handed to OnTimeTravel after a successful TimeTravel.
type TimeTravelEvent struct {
	Previous  map[string]any
	Current   map[string]any
	StepsBack int
}

// RestoreEvent is handed to OnRestore after Restore or an external
// change applies a loaded snapshot. Source is "restore" for an
// explicit Restore call and "external" for a backend-detected edit.
type RestoreEvent struct {
	Previous map[string]any
	Current  map[string]any
	Source   string
}

// ExternalChangeNotifier is implemented by backends able to detect
// edits made outside of Persist/Save, such as FileBackend watching its
// file on disk. AppState wires this at construction time so an
// external edit produces the same state:restored notification a
// manual Restore does.
type ExternalChangeNotifier interface {
	SetExternalChangeHandler(func(snapshot map[string]any))
}

type watcher struct {
	id         uint64
	path       string
	callback   func(prev, cur any)
	debounceMs int
	timer      *time.Timer
	active     bool
}

// AppState is a dot-path-addressable nested map with watch semantics,
// ring-buffer history, and pluggable persistence.
type AppState struct {
	mu        sync.Mutex
	data      map[string]any
	defaults  map[string]any
	watchers  []*watcher
	nextID    uint64
	history   []map[string]any
	histSize  int
	backend   StorageBackend
	computed  map[string]func(map[string]any) any

	// OnChange, if set, is invoked (outside any lock) after every
	// non-silent setState; core wires this to mirror onto the EventBus
	// as state:changed / state:${slice}:changed.
	OnChange func(ChangeEvent)

	// OnComputedUpdate, if set, is invoked after every non-silent
	// setState once computed properties have been refreshed; core
	// mirrors this onto the EventBus as state:computed:updated.
	OnComputedUpdate func(ComputedEvent)

	// OnReset, if set, is invoked after a non-silent Reset; core
	// mirrors this onto the EventBus as state:reset.
	OnReset func(ResetEvent)

	// OnTimeTravel, if set, is invoked after a successful TimeTravel;
	// core mirrors this onto the EventBus as state:timetravel.
	OnTimeTravel func(TimeTravelEvent)

	// OnRestore, if set, is invoked after Restore or an external change
	// applies a loaded snapshot; core mirrors this onto the EventBus as
	// state:restored.
	OnRestore func(RestoreEvent)
}

// Option configures New.
type Option func(*AppState)

// WithHistorySize bounds the time-travel ring buffer (default 50).
func WithHistorySize(n int) Option {
	return func(s *AppState) { s.histSize = n }
}

// WithBackend attaches a persistence backend for Persist/Restore.
func WithBackend(b StorageBackend) Option {
	return func(s *AppState) { s.backend = b }
}

// New creates an AppState seeded with defaults (deep-copied; Reset
// returns to this snapshot).
func New(defaults map[string]any, opts ...Option) *AppState {
	s := &AppState{
		data:     deepCopy(defaults),
		defaults: deepCopy(defaults),
		histSize: 50,
	}
	for _, o := range opts {
		o(s)
	}
	if n, ok := s.backend.(ExternalChangeNotifier); ok {
		n.SetExternalChangeHandler(s.applyExternalChange)
	}
	return s
}

// RegisterComputed adds a derived property recomputed from the full
// state tree after every non-silent SetState and merged into the tree
// under "computed.<name>" before state:computed:updated fires.
func (s *AppState) RegisterComputed(name string, compute func(data map[string]any) any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.computed == nil {
		s.computed = make(map[string]func(map[string]any) any)
	}
	s.computed[name] = compute
}

// recomputeComputed refreshes every registered computed property
// against the current (locked) data tree and merges the results in
// under "computed". Always runs on a non-silent SetState, even with no
// computed properties registered, so callers can rely on the refresh
// step and its event always happening.
func (s *AppState) recomputeComputed() map[string]any {
	values := make(map[string]any, len(s.computed))
	for name, fn := range s.computed {
		values[name] = fn(s.data)
	}
	if len(values) > 0 {
		cm, _ := s.data["computed"].(map[string]any)
		if cm == nil {
			cm = map[string]any{}
		}
		for k, v := range values {
			cm[k] = v
		}
		s.data["computed"] = cm
	}
	return values
}

// applyExternalChange merges a snapshot detected outside of Persist
// (an ExternalChangeNotifier backend) over the current state and fires
// OnRestore the same way a manual Restore does.
func (s *AppState) applyExternalChange(snapshot map[string]any) {
	s.mu.Lock()
	previous := deepCopy(s.data)
	mergeInto(s.data, snapshot)
	current := deepCopy(s.data)
	s.mu.Unlock()

	if s.OnRestore != nil {
		s.OnRestore(RestoreEvent{Previous: previous, Current: current, Source: "external"})
	}
}

// Get performs a dot-path read, returning fallback if any segment is
// missing or the path traverses a non-map value.
func (s *AppState) Get(path string, fallback any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := getPath(s.data, path)
	if !ok {
		return fallback
	}
	return v
}

// GetState returns a deep clone of the full state tree; callers may not
// mutate the live tree regardless.
func (s *AppState) GetState() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopy(s.data)
}

// SetOptions configures a single SetState call.
type SetOptions struct {
	Silent bool
	Source string
}

// SetState dot-path or partial-merges value into the tree via deep
// merge (recursive for maps, arrays replaced wholesale), pushes the
// prior snapshot onto history, and unless Silent notifies matching
// watchers and OnChange.
func (s *AppState) SetState(path string, value any, opts SetOptions) {
	s.mu.Lock()

	previous := deepCopy(s.data)
	updates := partialFromPath(path, value)
	mergeInto(s.data, updates)
	s.pushHistory(previous)

	var computed map[string]any
	if !opts.Silent {
		computed = s.recomputeComputed()
	}

	current := deepCopy(s.data)
	matched := s.matchingWatchers(updates)
	s.mu.Unlock()

	if opts.Silent {
		return
	}

	source := opts.Source
	if source == "" {
		source = "unknown"
	}

	for _, w := range matched {
		prevVal, _ := getPath(previous, w.path)
		curVal, _ := getPath(current, w.path)
		s.notify(w, prevVal, curVal)
	}

	if s.OnChange != nil {
		s.OnChange(ChangeEvent{Previous: previous, Current: current, Updates: updates, Source: source})
	}

	if s.OnComputedUpdate != nil {
		s.OnComputedUpdate(ComputedEvent{Current: current, Computed: computed, Source: source})
	}
}

// WatchOptions configures Watch.
type WatchOptions struct {
	Mode       string // "sync" (default) or "debounce"
	DebounceMs int
}

// Watch registers callback to fire when a SetState touches path (or an
// ancestor/descendant of it, per the prefix-intersection rule below).
// Returns an idempotent unwatch function.
func (s *AppState) Watch(path string, callback func(prev, cur any), opts WatchOptions) func() {
	s.mu.Lock()
	s.nextID++
	w := &watcher{id: s.nextID, path: path, callback: callback, active: true}
	if opts.Mode == "debounce" {
		w.debounceMs = opts.DebounceMs
	}
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			w.active = false
			if w.timer != nil {
				w.timer.Stop()
			}
			s.mu.Unlock()
		})
	}
}

func (s *AppState) notify(w *watcher, prev, cur any) {
	if w.debounceMs <= 0 {
		w.callback(prev, cur)
		return
	}
	s.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(time.Duration(w.debounceMs)*time.Millisecond, func() {
		w.callback(prev, cur)
	})
	s.mu.Unlock()
}

// matchingWatchers returns active watchers whose path intersects
// updates' top-level key set at any prefix level, each appearing once.
// The caller holds s.mu.
func (s *AppState) matchingWatchers(updates map[string]any) []*watcher {
	var out []*watcher
	for _, w := range s.watchers {
		if !w.active {
			continue
		}
		for key := range updates {
			if pathsIntersect(w.path, key) {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

func pathsIntersect(watchPath, updatedKey string) bool {
	return strings.HasPrefix(watchPath, updatedKey) || strings.HasPrefix(updatedKey, watchPath)
}

// GetHistory returns up to limit most-recent snapshots, most recent
// last.
func (s *AppState) GetHistory(limit int) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]map[string]any, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

// TimeTravel replaces the current state with the snapshot stepsBack
// entries into history (1 = the most recent prior snapshot) and, on
// success, fires OnTimeTravel.
func (s *AppState) TimeTravel(stepsBack int) bool {
	s.mu.Lock()
	idx := len(s.history) - stepsBack
	if idx < 0 || idx >= len(s.history) {
		s.mu.Unlock()
		return false
	}
	previous := deepCopy(s.data)
	s.data = deepCopy(s.history[idx])
	current := deepCopy(s.data)
	s.mu.Unlock()

	if s.OnTimeTravel != nil {
		s.OnTimeTravel(TimeTravelEvent{Previous: previous, Current: current, StepsBack: stepsBack})
	}
	return true
}

func (s *AppState) pushHistory(snapshot map[string]any) {
	s.history = append(s.history, snapshot)
	if len(s.history) > s.histSize {
		s.history = s.history[len(s.history)-s.histSize:]
	}
}

// Reset restores the defaults snapshot, clearing history, and unless
// silent fires OnReset.
func (s *AppState) Reset(silent bool) {
	s.mu.Lock()
	previous := deepCopy(s.data)
	s.data = deepCopy(s.defaults)
	s.history = nil
	current := deepCopy(s.data)
	s.mu.Unlock()

	if silent {
		return
	}
	if s.OnReset != nil {
		s.OnReset(ResetEvent{Previous: previous, Current: current})
	}
}

// Persist serializes the current state as JSON through the configured
// backend under key. Returns an error if no backend is attached.
func (s *AppState) Persist(key string) error {
	if s.backend == nil {
		return errNoBackend
	}
	snapshot := s.GetState()
	if err := s.backend.Save(key, snapshot); err != nil {
		logger.State().Error().Str("key", key).Err(err).Msg("persist failed")
		return err
	}
	return nil
}

// Restore loads key from the backend and merges it over the current
// state, tolerant of the key being absent. Unknown fields are ignored
// by virtue of mergeInto only writing keys present in the loaded blob.
// On an actual load it fires OnRestore.
func (s *AppState) Restore(key string) error {
	if s.backend == nil {
		return errNoBackend
	}
	loaded, ok, err := s.backend.Load(key)
	if err != nil {
		logger.State().Error().Str("key", key).Err(err).Msg("restore failed")
		return err
	}
	if !ok {
		return nil
	}

	s.mu.Lock()
	previous := deepCopy(s.data)
	mergeInto(s.data, loaded)
	current := deepCopy(s.data)
	s.mu.Unlock()

	if s.OnRestore != nil {
		s.OnRestore(RestoreEvent{Previous: previous, Current: current, Source: "restore"})
	}
	return nil
}

var errNoBackend = stateError("state: no storage backend configured")

type stateError string

func (e stateError) Error() string { return string(e) }
