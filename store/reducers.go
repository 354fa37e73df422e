package store

import "time"

// Well-known action types. Plugins are free to dispatch their own
// namespaced types; reducers below only react to these.
const (
	ActionNavigate         = "NAVIGATE"
	ActionNavigateComplete = "NAVIGATE_COMPLETE"
	ActionKeyPress         = "KEY_PRESS"
	ActionKeyRelease       = "KEY_RELEASE"
	ActionGestureDetected  = "GESTURE_DETECTED"
	ActionVoiceCommand     = "VOICE_COMMAND"
	ActionCognitiveState   = "COGNITIVE_STATE_CHANGED"
	ActionSetIdle          = "SET_IDLE"
	ActionSetCamera        = "SET_CAMERA_ACTIVE"
	ActionSetMediaPipe     = "SET_MEDIAPIPE_READY"
	ActionSetPerfMode      = "SET_PERFORMANCE_MODE"
	ActionFrameSample      = "FRAME_SAMPLE"
	ActionSetPluginState   = "SET_PLUGIN_STATE"
)

// NavigationReducer advances/retreats card or layer position. It leaves
// state untouched (same pointer) for any action it does not recognize.
func NavigationReducer(s NavigationState, a Action) (NavigationState, bool) {
	switch a.Type {
	case ActionNavigate:
		dir, _ := a.Payload.(Direction)
		next := s
		switch dir {
		case DirLeft:
			if s.CurrentCardIndex > 0 {
				next.CurrentCardIndex--
			}
		case DirRight:
			if s.TotalCards == 0 || s.CurrentCardIndex < s.TotalCards-1 {
				next.CurrentCardIndex++
			}
		case DirUp:
			if s.CurrentLayer > 0 {
				next.CurrentLayer--
			}
		case DirDown:
			if s.TotalLayers == 0 || s.CurrentLayer < s.TotalLayers-1 {
				next.CurrentLayer++
			}
		}
		if next == s {
			return s, false
		}
		next.IsTransitioning = true
		return next, true
	case ActionNavigateComplete:
		if !s.IsTransitioning {
			return s, false
		}
		next := s
		next.IsTransitioning = false
		return next, true
	default:
		return s, false
	}
}

// UserReducer tracks navigation/gesture counters and cognitive state.
func UserReducer(s UserState, a Action) (UserState, bool) {
	switch a.Type {
	case ActionNavigate:
		next := s
		next.NavigationCount++
		next.ExperiencePoints++
		return next, true
	case ActionGestureDetected:
		next := s
		next.GesturesDetected++
		return next, true
	case ActionCognitiveState:
		cs, _ := a.Payload.(CognitiveState)
		if cs == s.CognitiveState {
			return s, false
		}
		next := s
		next.CognitiveState = cs
		return next, true
	default:
		return s, false
	}
}

// SystemReducer tracks idle/camera/MediaPipe/performance-mode flags.
func SystemReducer(s SystemState, a Action) (SystemState, bool) {
	switch a.Type {
	case ActionSetIdle:
		idle, _ := a.Payload.(bool)
		if idle == s.IsIdle {
			return s, false
		}
		next := s
		next.IsIdle = idle
		if idle {
			next.IdleStartTime = time.Now()
		}
		return next, true
	case ActionSetCamera:
		active, _ := a.Payload.(bool)
		if active == s.CameraActive {
			return s, false
		}
		next := s
		next.CameraActive = active
		return next, true
	case ActionSetMediaPipe:
		ready, _ := a.Payload.(bool)
		if ready == s.MediaPipeReady {
			return s, false
		}
		next := s
		next.MediaPipeReady = ready
		return next, true
	case ActionSetPerfMode:
		mode, _ := a.Payload.(PerformanceMode)
		if mode == s.PerformanceMode {
			return s, false
		}
		next := s
		next.PerformanceMode = mode
		return next, true
	default:
		return s, false
	}
}

// UIReducer is currently a pass-through: no well-known action mutates
// it yet, but it participates in CombineReducers so plugin-dispatched
// UI actions have a slice to land in later.
func UIReducer(s UIState, a Action) (UIState, bool) {
	return s, false
}

// InputReducer tracks the last-seen gesture and per-modality enablement.
func InputReducer(s InputState, a Action) (InputState, bool) {
	switch a.Type {
	case ActionGestureDetected:
		name, _ := a.Payload.(string)
		next := s
		next.LastGesture = name
		next.LastGestureTime = time.Now()
		return next, true
	default:
		return s, false
	}
}

// PerformanceReducer folds in FPS samples with a simple running average.
func PerformanceReducer(s PerformanceState, a Action) (PerformanceState, bool) {
	switch a.Type {
	case ActionFrameSample:
		fps, _ := a.Payload.(float64)
		next := s
		next.FPS = fps
		next.LastFrameTime = time.Now()
		next.FrameCount++
		if next.FrameCount == 1 {
			next.AverageFPS = fps
		} else {
			next.AverageFPS += (fps - next.AverageFPS) / float64(next.FrameCount)
		}
		return next, true
	default:
		return s, false
	}
}

// PluginStatePayload is the expected Action.Payload shape for
// ActionSetPluginState.
type PluginStatePayload struct {
	Plugin string
	Value  any
}

// PluginsReducer lets a plugin's own reducer own exactly one key of the
// plugins slice, namespaced by plugin name.
func PluginsReducer(s PluginsState, a Action) (PluginsState, bool) {
	switch a.Type {
	case ActionSetPluginState:
		p, ok := a.Payload.(PluginStatePayload)
		if !ok || p.Plugin == "" {
			return s, false
		}
		next := make(PluginsState, len(s)+1)
		for k, v := range s {
			next[k] = v
		}
		next[p.Plugin] = p.Value
		return next, true
	default:
		return s, false
	}
}

// CombineReducers composes one typed slice-reducer per RootState field
// into a single Reducer. Each slice reducer reports whether it changed
// its slice; RootState.clone() (and therefore a fresh pointer) is only
// allocated when at least one slice actually changed, preserving the
// referential-equality contract subscribers rely on.
//
// Go has no dynamic object-spread equivalent of JS's combineReducers
// map; an explicit per-slice function signature is the idiomatic
// translation; reflection-based generic composition would not gain
// anything a caller couldn't get by just calling CombineReducers.
func CombineReducers(
	navigation func(NavigationState, Action) (NavigationState, bool),
	user func(UserState, Action) (UserState, bool),
	system func(SystemState, Action) (SystemState, bool),
	ui func(UIState, Action) (UIState, bool),
	input func(InputState, Action) (InputState, bool),
	performance func(PerformanceState, Action) (PerformanceState, bool),
	plugins func(PluginsState, Action) (PluginsState, bool),
) Reducer {
	return func(state *RootState, action Action) *RootState {
		if state == nil {
			state = NewRootState()
		}

		nav, navChanged := navigation(state.Navigation, action)
		usr, usrChanged := user(state.User, action)
		sys, sysChanged := system(state.System, action)
		ui2, uiChanged := ui(state.UI, action)
		in, inChanged := input(state.Input, action)
		perf, perfChanged := performance(state.Performance, action)
		plugins2, pluginsChanged := plugins(state.Plugins, action)

		if !navChanged && !usrChanged && !sysChanged && !uiChanged && !inChanged && !perfChanged && !pluginsChanged {
			return state
		}

		next := state.clone()
		next.Navigation = nav
		next.User = usr
		next.System = sys
		next.UI = ui2
		next.Input = in
		next.Performance = perf
		next.Plugins = plugins2
		return next
	}
}

// RootReducer is the default composition of every built-in slice
// reducer, suitable for CreateStore(RootReducer, nil, ...).
func RootReducer(state *RootState, action Action) *RootState {
	return CombineReducers(
		NavigationReducer,
		UserReducer,
		SystemReducer,
		UIReducer,
		InputReducer,
		PerformanceReducer,
		PluginsReducer,
	)(state, action)
}
