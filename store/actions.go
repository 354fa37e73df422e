package store

import "time"

func meta(source string) *ActionMeta {
	return &ActionMeta{Timestamp: time.Now(), Source: source}
}

// Navigate builds a NAVIGATE action from the given direction and input
// source.
func Navigate(direction Direction, source Source) Action {
	return Action{Type: ActionNavigate, Payload: direction, Meta: meta(string(source))}
}

// NavigateComplete builds a NAVIGATE_COMPLETE action, dispatched once a
// transition animation finishes.
func NavigateComplete() Action {
	return Action{Type: ActionNavigateComplete, Meta: meta("core")}
}

// KeyPress builds a KEY_PRESS action carrying the raw key name.
func KeyPress(key string) Action {
	return Action{Type: ActionKeyPress, Payload: key, Meta: meta(string(SourceKeyboard))}
}

// KeyRelease builds a KEY_RELEASE action carrying the raw key name.
func KeyRelease(key string) Action {
	return Action{Type: ActionKeyRelease, Payload: key, Meta: meta(string(SourceKeyboard))}
}

// GestureDetected builds a GESTURE_DETECTED action carrying the gesture
// signature name (e.g. "swipe_left", "pinch").
func GestureDetected(gesture string) Action {
	return Action{Type: ActionGestureDetected, Payload: gesture, Meta: meta(string(SourceGesture))}
}

// VoiceCommand builds a VOICE_COMMAND action carrying the recognized
// command string.
func VoiceCommand(command string) Action {
	return Action{Type: ActionVoiceCommand, Payload: command, Meta: meta(string(SourceVoice))}
}

// CognitiveStateChanged builds a COGNITIVE_STATE_CHANGED action, emitted
// by the cognitive analyzer once its vote threshold is crossed.
func CognitiveStateChanged(state CognitiveState) Action {
	return Action{Type: ActionCognitiveState, Payload: state, Meta: meta("cognitive")}
}

// SetIdle builds a SET_IDLE action.
func SetIdle(idle bool) Action {
	return Action{Type: ActionSetIdle, Payload: idle, Meta: meta("core")}
}

// SetCameraActive builds a SET_CAMERA_ACTIVE action.
func SetCameraActive(active bool) Action {
	return Action{Type: ActionSetCamera, Payload: active, Meta: meta("core")}
}

// SetMediaPipeReady builds a SET_MEDIAPIPE_READY action.
func SetMediaPipeReady(ready bool) Action {
	return Action{Type: ActionSetMediaPipe, Payload: ready, Meta: meta("core")}
}

// SetPerformanceMode builds a SET_PERFORMANCE_MODE action.
func SetPerformanceMode(mode PerformanceMode) Action {
	return Action{Type: ActionSetPerfMode, Payload: mode, Meta: meta("core")}
}

// FrameSample builds a FRAME_SAMPLE action carrying the latest
// instantaneous FPS reading.
func FrameSample(fps float64) Action {
	return Action{Type: ActionFrameSample, Payload: fps, Meta: meta("core")}
}

// SetPluginState builds a SET_PLUGIN_STATE action namespaced to plugin.
func SetPluginState(plugin string, value any) Action {
	return Action{
		Type:    ActionSetPluginState,
		Payload: PluginStatePayload{Plugin: plugin, Value: value},
		Meta:    meta(plugin),
	}
}
