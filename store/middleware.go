package store

import "github.com/navigator-sdk/navigator/logger"

// LoggingMiddleware logs every dispatched action's type and source at
// debug level, mirroring the teacher's request-logging middleware.
func LoggingMiddleware(api MiddlewareAPI) func(NextFunc) NextFunc {
	return func(next NextFunc) NextFunc {
		return func(a Action) Action {
			source := "unknown"
			if a.Meta != nil {
				source = a.Meta.Source
			}
			logger.Store().Debug().Str("type", a.Type).Str("source", source).Msg("dispatch")
			return next(a)
		}
	}
}

// Thunk is a func(dispatch, getState) that ThunkMiddleware runs in place
// of a plain Action, for async or derived dispatch sequences. Non-thunk
// actions pass through ThunkMiddleware unchanged.
type Thunk func(dispatch func(Action) Action, getState func() *RootState)

// ActionThunk is the Type of an Action wrapping a Thunk (see
// DispatchThunk); the payload is never seen by reducers, ThunkMiddleware intercepts and
// unwraps it before the chain reaches coreDispatch.
const ActionThunk = "@@navigator/THUNK"

// DispatchThunk wraps a Thunk in an Action for ThunkMiddleware to
// intercept; pass the result to Store.Dispatch.
func DispatchThunk(t Thunk) Action {
	return Action{Type: ActionThunk, Payload: t}
}

// ThunkMiddleware must be installed before any middleware that assumes
// action.Type is a well-known constant.
func ThunkMiddleware(api MiddlewareAPI) func(NextFunc) NextFunc {
	return func(next NextFunc) NextFunc {
		return func(a Action) Action {
			if a.Type == ActionThunk {
				if t, ok := a.Payload.(Thunk); ok {
					t(api.Dispatch, api.GetState)
					return a
				}
			}
			return next(a)
		}
	}
}
