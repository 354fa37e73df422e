// Package plugin defines the uniform lifecycle contract every input,
// logic, output, and analyzer plugin implements (spec component C8),
// plus the facade NavigatorCore exposes back to them.
package plugin

import (
	"context"
	"time"

	"github.com/navigator-sdk/navigator/eventbus"
	"github.com/navigator-sdk/navigator/history"
	"github.com/navigator-sdk/navigator/store"
)

// CriticalPriority is the threshold at and above which a plugin is
// critical: its Init runs concurrently with other critical plugins and
// is awaited before core:init:complete. Configurable on Core via
// core.WithCriticalPriority.
const CriticalPriority = 100

// DefaultInitTimeout bounds how long a single plugin's Init may run
// before the core treats it as failed.
const DefaultInitTimeout = 5 * time.Second

// Plugin is the required surface: a unique name and an Init hook. Init
// receives the Core facade and a context bounded by the plugin's
// configured init timeout.
type Plugin interface {
	Name() string
	Init(ctx context.Context, core Core) error
}

// Starter is an optional hook run sequentially, in descending priority
// order, during Core.Start.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is an optional hook run sequentially, in reverse start order,
// during Core.Stop. Plugins without Stop skip straight to "stopped".
type Stopper interface {
	Stop(ctx context.Context) error
}

// Destroyer is an optional hook run in reverse start order during
// Core.Destroy. Destroy is best-effort: a Destroyer failing never
// aborts the overall teardown.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// Core is the stable surface NavigatorCore exposes to plugins: the
// shared EventBus/Store/History, action recording, and read-only
// lookups of sibling plugins. Declared here (rather than importing the
// core package from plugins) to avoid a plugin<->core import cycle;
// package core's *Core implements this interface.
type Core interface {
	EventBus() *eventbus.Bus
	Store() *store.Store
	History() *history.History
	RecordAction(a history.Action)
	GetPlugin(name string) (Plugin, bool)
	IsInitialized() bool
	IsRunning() bool
}

// Options configures a plugin at registration time: priority, opaque
// config stashed for the plugin's own later use, and an init-timeout
// override. Mirrors the spec's registerPlugin(plugin, {priority,
// config}) second argument.
type Options struct {
	Priority    int
	Config      any
	InitTimeout time.Duration
}

// Option mutates Options; pass zero or more to RegisterPlugin.
type Option func(*Options)

// WithPriority sets registration priority. priority >= CriticalPriority
// makes the plugin critical.
func WithPriority(priority int) Option {
	return func(o *Options) { o.Priority = priority }
}

// WithConfig stashes an opaque, core-readonly config value the plugin
// can retrieve from its own closure or constructor; the core never
// inspects it.
func WithConfig(config any) Option {
	return func(o *Options) { o.Config = config }
}

// WithInitTimeout overrides DefaultInitTimeout for one plugin.
func WithInitTimeout(d time.Duration) Option {
	return func(o *Options) { o.InitTimeout = d }
}

// ResolveOptions applies opts over the zero-value defaults (priority 0,
// no config, DefaultInitTimeout).
func ResolveOptions(opts ...Option) Options {
	o := Options{InitTimeout: DefaultInitTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IsCritical reports whether priority qualifies as critical.
func IsCritical(priority int) bool { return priority >= CriticalPriority }

// State is a plugin's position in the per-plugin lifecycle state
// machine: registered -> initialized -> started -> stopped -> destroyed.
type State string

const (
	StateRegistered State = "registered"
	StateInitialized State = "initialized"
	StateStarted    State = "started"
	StateStopped    State = "stopped"
	StateDestroyed  State = "destroyed"
	StateFailed     State = "failed"
)
