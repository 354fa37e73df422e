package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchAdvancesNavigationAndMarksTransitioning(t *testing.T) {
	s := CreateStore(RootReducer, nil)
	s.Dispatch(Action{Type: ActionNavigate, Payload: DirRight})

	got := s.GetState()
	assert.Equal(t, 1, got.Navigation.CurrentCardIndex)
	assert.True(t, got.Navigation.IsTransitioning)
}

func TestUnrecognizedActionReturnsSamePointer(t *testing.T) {
	s := CreateStore(RootReducer, nil)
	before := s.GetState()
	s.Dispatch(Action{Type: "NOOP"})
	after := s.GetState()
	assert.Same(t, before, after, "reducer must return the same pointer when nothing changed")
}

func TestSubscribeFiresOnlyOnChange(t *testing.T) {
	s := CreateStore(RootReducer, nil)
	calls := 0
	unsub := s.Subscribe(func() { calls++ })
	defer unsub()

	s.Dispatch(Action{Type: "NOOP"})
	assert.Equal(t, 0, calls)

	s.Dispatch(Navigate(DirRight, SourceKeyboard))
	assert.Equal(t, 1, calls)
}

func TestUnsubscribeIsIdempotentAndStopsDelivery(t *testing.T) {
	s := CreateStore(RootReducer, nil)
	calls := 0
	unsub := s.Subscribe(func() { calls++ })

	s.Dispatch(Navigate(DirRight, SourceKeyboard))
	unsub()
	unsub()
	s.Dispatch(Navigate(DirRight, SourceKeyboard))

	assert.Equal(t, 1, calls)
}

func TestDispatchRequiresActionType(t *testing.T) {
	s := CreateStore(RootReducer, nil)
	assert.Panics(t, func() { s.Dispatch(Action{}) })
}

func TestReentrantDispatchFromReducerIsIgnoredNotDeadlocked(t *testing.T) {
	var st *Store
	reducer := func(state *RootState, a Action) *RootState {
		if a.Type == "TRIGGER" {
			st.Dispatch(Action{Type: "NESTED"})
			next := state.clone()
			next.User.ExperiencePoints++
			return next
		}
		if a.Type == "NESTED" {
			t.Fatal("nested synchronous dispatch must never reach the reducer")
		}
		return state
	}
	st = CreateStore(reducer, nil)

	done := make(chan struct{})
	go func() {
		st.Dispatch(Action{Type: "TRIGGER"})
		close(done)
	}()
	<-done
	assert.Equal(t, 1, st.GetState().User.ExperiencePoints)
}

func TestReducerPanicLeavesStateUnchangedAndInvokesHook(t *testing.T) {
	reducer := func(state *RootState, a Action) *RootState {
		if a.Type == "BOOM" {
			panic("reducer exploded")
		}
		return state
	}
	s := CreateStore(reducer, nil)

	var hookCalled bool
	var hookErr any
	s.OnReducerPanic = func(a Action, recovered any) {
		hookCalled = true
		hookErr = recovered
	}

	before := s.GetState()
	assert.NotPanics(t, func() { s.Dispatch(Action{Type: "BOOM"}) })
	assert.Same(t, before, s.GetState())
	assert.True(t, hookCalled)
	assert.Equal(t, "reducer exploded", hookErr)
}

func TestMiddlewareChainRunsInOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(tag string) Middleware {
		return func(api MiddlewareAPI) func(NextFunc) NextFunc {
			return func(next NextFunc) NextFunc {
				return func(a Action) Action {
					mu.Lock()
					order = append(order, tag)
					mu.Unlock()
					return next(a)
				}
			}
		}
	}

	s := CreateStore(RootReducer, nil, record("first"), record("second"))
	s.Dispatch(Action{Type: "NOOP"})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestLoggingMiddlewarePassesActionThrough(t *testing.T) {
	s := CreateStore(RootReducer, nil, LoggingMiddleware)
	s.Dispatch(Navigate(DirRight, SourceKeyboard))
	assert.Equal(t, 1, s.GetState().Navigation.CurrentCardIndex)
}

func TestThunkMiddlewareUnwrapsBeforeReducer(t *testing.T) {
	s := CreateStore(RootReducer, nil, ThunkMiddleware)

	var sawState *RootState
	s.Dispatch(DispatchThunk(func(dispatch func(Action) Action, getState func() *RootState) {
		dispatch(Navigate(DirRight, SourceKeyboard))
		sawState = getState()
	}))

	require.NotNil(t, sawState)
	assert.Equal(t, 1, sawState.Navigation.CurrentCardIndex)
}

func TestCombineReducersOnlyClonesWhenSomethingChanged(t *testing.T) {
	reducer := CombineReducers(
		NavigationReducer, UserReducer, SystemReducer, UIReducer,
		InputReducer, PerformanceReducer, PluginsReducer,
	)
	s := NewRootState()
	same := reducer(s, Action{Type: "NOOP"})
	assert.Same(t, s, same)

	changed := reducer(s, Navigate(DirRight, SourceKeyboard))
	assert.NotSame(t, s, changed)
}

func TestPluginsReducerNamespacesByPluginName(t *testing.T) {
	s := NewRootState()
	next, changed := PluginsReducer(s.Plugins, SetPluginState("weather", map[string]any{"temp": 72}))
	require.True(t, changed)
	assert.Equal(t, map[string]any{"temp": 72}, next["weather"])
	assert.NotSame(t, &s.Plugins, &next)
}
