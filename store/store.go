package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/navigator-sdk/navigator/logger"
)

// Action is the Redux-like dispatch payload ("StoreAction" in the
// spec, renamed here to avoid stuttering with the package name).
type Action struct {
	Type    string
	Payload any
	Meta    *ActionMeta
}

// ActionMeta carries dispatch provenance.
type ActionMeta struct {
	Timestamp time.Time
	Source    string
}

// Reducer is pure and total: given the same state and action it always
// returns the same result, and it returns the SAME *RootState pointer
// when the action produced no change.
type Reducer func(state *RootState, action Action) *RootState

// NextFunc is what a middleware calls to continue the chain.
type NextFunc func(Action) Action

// MiddlewareAPI is handed to each middleware factory.
type MiddlewareAPI struct {
	GetState func() *RootState
	Dispatch func(Action) Action
}

// Middleware has signature ({getState, dispatch}) -> next -> action ->
// result, matching the spec exactly.
type Middleware func(MiddlewareAPI) func(NextFunc) NextFunc

type listenerEntry struct {
	id     uint64
	fn     func()
	active bool
}

// Store is the Redux-like container: dispatch/reducer/subscribe plus a
// middleware chain.
type Store struct {
	mu         sync.Mutex
	state      *RootState
	reducer    Reducer
	listeners  []*listenerEntry
	nextID     uint64
	dispatchFn func(Action) Action
	inReducer  int32 // atomic guard against reducers dispatching synchronously

	// OnReducerPanic, if set, is invoked (outside any lock) whenever the
	// reducer panics. Core wires this to mirror the failure onto the
	// EventBus as system:error, keeping this package decoupled from
	// eventbus.
	OnReducerPanic func(action Action, recovered any)
}

// CreateStore builds a Store from reducer and an optional preloaded
// state, applying middlewares in the order given. Passing no
// middlewares yields a plain dispatch -> reduce -> notify pipeline.
func CreateStore(reducer Reducer, preloaded *RootState, middlewares ...Middleware) *Store {
	if preloaded == nil {
		preloaded = NewRootState()
	}
	s := &Store{state: preloaded, reducer: reducer}

	api := MiddlewareAPI{
		GetState: s.GetState,
		Dispatch: func(a Action) Action { return s.dispatchFn(a) },
	}

	chain := make([]func(NextFunc) NextFunc, len(middlewares))
	for i, mw := range middlewares {
		chain[i] = mw(api)
	}

	dispatch := NextFunc(s.coreDispatch)
	for i := len(chain) - 1; i >= 0; i-- {
		dispatch = chain[i](dispatch)
	}
	s.dispatchFn = func(a Action) Action { return dispatch(a) }

	return s
}

// GetState returns the current root-state reference. Callers must treat
// it as immutable.
func (s *Store) GetState() *RootState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch requires action.Type to be non-empty, runs the middleware
// chain, reduces, and notifies subscribers after the reducer completes.
// Returns the (possibly middleware-transformed) action.
func (s *Store) Dispatch(action Action) Action {
	if action.Type == "" {
		panic("store: dispatch requires a non-empty action.Type")
	}
	if action.Meta == nil {
		action.Meta = &ActionMeta{Timestamp: time.Now(), Source: "unknown"}
	}
	return s.dispatchFn(action)
}

// Subscribe registers listener to be called (with no arguments; it
// should call GetState itself) after every dispatch that changes state.
// Returns an idempotent unsubscribe function.
func (s *Store) Subscribe(listener func()) func() {
	s.mu.Lock()
	s.nextID++
	entry := &listenerEntry{id: s.nextID, fn: listener, active: true}
	s.listeners = append(s.listeners, entry)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			entry.active = false
			s.mu.Unlock()
		})
	}
}

// ReplaceReducer swaps the root reducer, e.g. for code-splitting or
// hot-reloading plugin reducers.
func (s *Store) ReplaceReducer(r Reducer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reducer = r
}

func (s *Store) coreDispatch(action Action) Action {
	if atomic.LoadInt32(&s.inReducer) == 1 {
		logger.Store().Error().Str("type", action.Type).
			Msg("reducer dispatched synchronously from within its own execution; ignoring to avoid deadlock")
		return action
	}

	s.mu.Lock()
	prev := s.state
	reducer := s.reducer
	next := s.safeReduce(reducer, prev, action)
	s.state = next
	var listeners []*listenerEntry
	if next != prev {
		listeners = append(listeners, s.listeners...)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		if l.active {
			l.fn()
		}
	}
	return action
}

func (s *Store) safeReduce(reducer Reducer, prev *RootState, action Action) (result *RootState) {
	result = prev
	defer func() {
		atomic.StoreInt32(&s.inReducer, 0)
		if r := recover(); r != nil {
			logger.Store().Error().Str("type", action.Type).Interface("panic", r).Msg("reducer panicked; state left unchanged")
			result = prev
			if s.OnReducerPanic != nil {
				s.OnReducerPanic(action, r)
			}
		}
	}()
	atomic.StoreInt32(&s.inReducer, 1)
	return reducer(prev, action)
}

// String implements fmt.Stringer for debugging.
func (a Action) String() string {
	return fmt.Sprintf("Action{%s}", a.Type)
}
