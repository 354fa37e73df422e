// Package core implements NavigatorCore (spec component C5): the
// lifecycle manager that constructs the EventBus, Store, AppState and
// UserSessionHistory, registers plugins against them with priority-
// tiered startup, and exposes the facade plugins consume.
package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/navigator-sdk/navigator/errors"
	"github.com/navigator-sdk/navigator/eventbus"
	"github.com/navigator-sdk/navigator/history"
	"github.com/navigator-sdk/navigator/logger"
	"github.com/navigator-sdk/navigator/plugin"
	"github.com/navigator-sdk/navigator/state"
	"github.com/navigator-sdk/navigator/store"
)

// Lifecycle event names, emitted on the core's EventBus.
const (
	EventInitStart       = "core:init:start"
	EventPluginInit      = "core:plugin:initialized"
	EventInitComplete    = "core:init:complete"
	EventDeferredReady   = "core:deferred:ready"
	EventStartBegin      = "core:start:begin"
	EventPluginStarted   = "core:plugin:started"
	EventStartComplete   = "core:start:complete"
	EventStopBegin       = "core:stop:begin"
	EventPluginStopped   = "core:plugin:stopped"
	EventStopComplete    = "core:stop:complete"
	EventDestroyBegin    = "core:destroy:begin"
	EventPluginDestroyed = "core:plugin:destroyed"
	EventDestroyComplete = "core:destroy:complete"
	EventPluginError     = "core:plugin:error"
	EventError           = "core:error"

	EventHistoryRecorded = "history:action:recorded"
	EventActionDispatched = "action:dispatched"
)

// lifecyclePhase is the core-level (not per-plugin) state machine:
// constructed -> initialized -> running -> stopped, with destroyed
// reachable from any of the first three.
type lifecyclePhase int

const (
	phaseConstructed lifecyclePhase = iota
	phaseInitialized
	phaseRunning
	phaseStopped
	phaseDestroyed
)

type registration struct {
	plugin  plugin.Plugin
	opts    plugin.Options
	state   plugin.State
	sched   *Scheduler
}

// Config are NavigatorCore's constructor options.
type Config struct {
	DebugMode        bool
	AutoStart        bool
	InitialState     *store.RootState
	HistoryMaxSize   int
	CriticalPriority int // default plugin.CriticalPriority; make it configurable per spec's open question
	StateDefaults    map[string]any
	StateBackend     state.StorageBackend
}

// Option mutates Config.
type Option func(*Config)

// WithDebugMode sets Config.DebugMode. Core stores the flag but does
// not read it: it changes neither logging nor any other behaviour.
func WithDebugMode(on bool) Option { return func(c *Config) { c.DebugMode = on } }

// WithAutoStart calls Start immediately after a successful Init.
func WithAutoStart(on bool) Option { return func(c *Config) { c.AutoStart = on } }

// WithInitialState preloads the Store.
func WithInitialState(s *store.RootState) Option { return func(c *Config) { c.InitialState = s } }

// WithHistoryMaxSize bounds UserSessionHistory's ring buffer.
func WithHistoryMaxSize(n int) Option { return func(c *Config) { c.HistoryMaxSize = n } }

// WithCriticalPriority overrides the critical/deferred tier boundary
// (default plugin.CriticalPriority), since the spec treats the
// threshold as a policy convention rather than a hard contract.
func WithCriticalPriority(p int) Option { return func(c *Config) { c.CriticalPriority = p } }

// WithStateDefaults seeds the legacy AppState's default snapshot.
func WithStateDefaults(defaults map[string]any) Option {
	return func(c *Config) { c.StateDefaults = defaults }
}

// WithStateBackend attaches a persistence backend to the legacy AppState.
func WithStateBackend(b state.StorageBackend) Option {
	return func(c *Config) { c.StateBackend = b }
}

// Core is the NavigatorCore implementation. It satisfies plugin.Core.
type Core struct {
	mu      sync.Mutex
	phase   lifecyclePhase
	cfg     Config

	bus     *eventbus.Bus
	st      *store.Store
	legacy  *state.AppState
	hist    *history.History
	cron    *cron.Cron

	regs    []*registration
	byName  map[string]*registration

	startOrder []string // names, in the order Start succeeded; Stop/Destroy reverse this
}

// New constructs a Core with the EventBus, Store, AppState and
// UserSessionHistory wired together: Store reducer panics and legacy
// AppState changes are mirrored onto the bus, keeping those packages
// themselves free of any eventbus import.
func New(opts ...Option) *Core {
	cfg := Config{CriticalPriority: plugin.CriticalPriority, HistoryMaxSize: 200}
	for _, o := range opts {
		o(&cfg)
	}

	c := &Core{
		cfg:    cfg,
		bus:    eventbus.NewDefault(),
		hist:   history.New(cfg.HistoryMaxSize),
		cron:   cron.New(),
		byName: make(map[string]*registration),
	}

	c.st = store.CreateStore(store.RootReducer, cfg.InitialState, busStoreMirror(c.bus))
	c.st.OnReducerPanic = func(a store.Action, recovered any) {
		err := errors.DispatchFailure(fmt.Sprintf("reducer panic on %s", a.Type), fmt.Errorf("%v", recovered))
		logger.Core().Error().Str("kind", string(err.Kind)).Msg(err.Message)
		c.bus.Emit(eventbus.SystemError, map[string]any{"error": err})
	}

	c.legacy = state.New(cfg.StateDefaults, state.WithBackend(cfg.StateBackend))
	c.legacy.OnChange = func(ev state.ChangeEvent) {
		c.bus.Emit("state:changed", ev)
		for key := range ev.Updates {
			c.bus.Emit("state:"+key+":changed", ev)
		}
	}
	c.legacy.OnComputedUpdate = func(ev state.ComputedEvent) {
		c.bus.Emit("state:computed:updated", ev)
	}
	c.legacy.OnReset = func(ev state.ResetEvent) {
		c.bus.Emit("state:reset", ev)
	}
	c.legacy.OnTimeTravel = func(ev state.TimeTravelEvent) {
		c.bus.Emit("state:timetravel", ev)
	}
	c.legacy.OnRestore = func(ev state.RestoreEvent) {
		c.bus.Emit("state:restored", ev)
	}

	c.cron.Start()
	return c
}

// busStoreMirror mirrors every dispatched action onto the bus as
// action:dispatched with the prior/new state snapshot, the canonical
// event-style observation path the spec calls for.
func busStoreMirror(bus *eventbus.Bus) store.Middleware {
	return func(api store.MiddlewareAPI) func(store.NextFunc) store.NextFunc {
		return func(next store.NextFunc) store.NextFunc {
			return func(a store.Action) store.Action {
				prev := api.GetState()
				result := next(a)
				cur := api.GetState()
				bus.Emit(EventActionDispatched, map[string]any{
					"action":   a,
					"previous": prev,
					"current":  cur,
				})
				return result
			}
		}
	}
}

// EventBus implements plugin.Core.
func (c *Core) EventBus() *eventbus.Bus { return c.bus }

// Store implements plugin.Core.
func (c *Core) Store() *store.Store { return c.st }

// History implements plugin.Core.
func (c *Core) History() *history.History { return c.hist }

// LegacyState exposes AppState (spec §4.3's "core.state").
func (c *Core) LegacyState() *state.AppState { return c.legacy }

// IsInitialized implements plugin.Core.
func (c *Core) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase >= phaseInitialized && c.phase != phaseDestroyed
}

// IsRunning implements plugin.Core.
func (c *Core) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseRunning
}

// RecordAction implements plugin.Core: appends to UserSessionHistory
// and emits history:action:recorded.
func (c *Core) RecordAction(a history.Action) {
	c.hist.Add(a)
	c.bus.Emit(EventHistoryRecorded, map[string]any{"action": a, "historySize": c.hist.Size()})
}

// GetPlugin implements plugin.Core.
func (c *Core) GetPlugin(name string) (plugin.Plugin, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return r.plugin, true
}

// Scheduler returns (creating if absent) the named plugin's cron
// scheduler, wrapping Core's single shared cron.Cron instance.
func (c *Core) Scheduler(pluginName string) *Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.byName[pluginName]; ok {
		if r.sched == nil {
			r.sched = newScheduler(c.cron, pluginName)
		}
		return r.sched
	}
	return newScheduler(c.cron, pluginName)
}

// RegisterPlugin validates p.Name() is unique and records it into the
// priority-ordered registration list (highest priority first). It is a
// contract violation, surfaced as a panic at the call site, to register
// a duplicate name — matching the spec's "thrown synchronously" rule
// for contract violations.
func (c *Core) RegisterPlugin(p plugin.Plugin, opts ...plugin.Option) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := p.Name()
	if name == "" {
		panic(errors.ContractViolation("plugin name must not be empty"))
	}
	if _, exists := c.byName[name]; exists {
		panic(errors.ContractViolation(fmt.Sprintf("plugin %q already registered", name)))
	}

	resolved := plugin.ResolveOptions(opts...)
	reg := &registration{plugin: p, opts: resolved, state: plugin.StateRegistered}
	c.byName[name] = reg
	c.regs = append(c.regs, reg)

	sort.SliceStable(c.regs, func(i, j int) bool {
		return c.regs[i].opts.Priority > c.regs[j].opts.Priority
	})
}

func (c *Core) isCritical(priority int) bool {
	return priority >= c.cfg.CriticalPriority
}

func (c *Core) emitError(err *errors.NavError) {
	logger.Core().Error().Str("kind", string(err.Kind)).Str("plugin", err.Plugin).Msg(err.Message)
	c.bus.Emit(EventError, map[string]any{"error": err})
}

// Init runs every critical plugin's Init concurrently (awaited as a
// set) then, once that succeeds, launches deferred-plugin Init in the
// background and returns — core:deferred:ready fires asynchronously
// once that background work completes.
func (c *Core) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != phaseConstructed {
		c.mu.Unlock()
		return nil // idempotent: already past construction
	}
	regs := append([]*registration(nil), c.regs...)
	c.mu.Unlock()

	c.bus.Emit(EventInitStart, nil)

	var critical, deferred []*registration
	for _, r := range regs {
		if c.isCritical(r.opts.Priority) {
			critical = append(critical, r)
		} else {
			deferred = append(deferred, r)
		}
	}

	if err := c.initTier(ctx, critical, true); err != nil {
		return err
	}

	c.mu.Lock()
	c.phase = phaseInitialized
	c.mu.Unlock()
	c.bus.Emit(EventInitComplete, nil)

	go func() {
		_ = c.initTier(context.Background(), deferred, false)
		c.bus.Emit(EventDeferredReady, nil)
	}()

	if c.cfg.AutoStart {
		return c.Start(ctx)
	}
	return nil
}

// initTier runs every registration's Init concurrently. When critical
// is true, the first failure aborts the whole tier and its error is
// returned to the caller; deferred failures are reported on the bus
// but never fail the call.
func (c *Core) initTier(ctx context.Context, regs []*registration, critical bool) error {
	if len(regs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range regs {
		r := r
		g.Go(func() error {
			timeout := r.opts.InitTimeout
			if timeout <= 0 {
				timeout = plugin.DefaultInitTimeout
			}
			pctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			err := c.runPluginInit(pctx, r)
			if err != nil {
				pluginErr := errors.PluginFailure(r.plugin.Name(), "init", err)
				c.emitErrorNonFatal(pluginErr)
				if critical {
					return pluginErr
				}
				return nil
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Core) runPluginInit(ctx context.Context, r *registration) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("panic: %v", rec)
			}
		}()
		done <- r.plugin.Init(ctx, c)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		c.mu.Lock()
		r.state = plugin.StateInitialized
		c.mu.Unlock()
		c.bus.Emit(EventPluginInit, map[string]any{"plugin": r.plugin.Name()})
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		r.state = plugin.StateFailed
		c.mu.Unlock()
		return errors.Timeout(fmt.Sprintf("plugin %q init timed out", r.plugin.Name()))
	}
}

func (c *Core) emitErrorNonFatal(err *errors.NavError) {
	logger.Core().Warn().Str("kind", string(err.Kind)).Str("plugin", err.Plugin).Msg(err.Message)
	c.bus.Emit(EventPluginError, map[string]any{"error": err})
}

// Start runs every registered plugin's optional Start hook strictly
// sequentially, in descending priority order. A failure stops Start and
// rolls back: previously started plugins are stopped in reverse order,
// best-effort.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == phaseRunning {
		c.mu.Unlock()
		return nil
	}
	regs := append([]*registration(nil), c.regs...)
	c.mu.Unlock()

	c.bus.Emit(EventStartBegin, nil)

	var started []string
	for _, r := range regs {
		starter, ok := r.plugin.(plugin.Starter)
		if ok {
			if err := starter.Start(ctx); err != nil {
				pluginErr := errors.PluginFailure(r.plugin.Name(), "start", err)
				c.emitError(pluginErr)
				c.rollbackStart(ctx, started)
				return pluginErr
			}
		}
		c.mu.Lock()
		r.state = plugin.StateStarted
		c.mu.Unlock()
		started = append(started, r.plugin.Name())
		c.bus.Emit(EventPluginStarted, map[string]any{"plugin": r.plugin.Name()})
	}

	c.mu.Lock()
	c.phase = phaseRunning
	c.startOrder = started
	c.mu.Unlock()
	c.bus.Emit(EventStartComplete, nil)
	return nil
}

func (c *Core) rollbackStart(ctx context.Context, started []string) {
	for i := len(started) - 1; i >= 0; i-- {
		r := c.byName[started[i]]
		if stopper, ok := r.plugin.(plugin.Stopper); ok {
			func() {
				defer func() { recover() }()
				_ = stopper.Stop(ctx)
			}()
		}
	}
}

// Stop runs Stop hooks in reverse start order, best-effort: a failing
// plugin is logged and skipped, never aborting the rest of teardown.
func (c *Core) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != phaseRunning {
		c.mu.Unlock()
		return nil
	}
	order := append([]string(nil), c.startOrder...)
	c.mu.Unlock()

	c.bus.Emit(EventStopBegin, nil)
	for i := len(order) - 1; i >= 0; i-- {
		r := c.byName[order[i]]
		if stopper, ok := r.plugin.(plugin.Stopper); ok {
			if err := safeCall(func() error { return stopper.Stop(ctx) }); err != nil {
				c.emitErrorNonFatal(errors.PluginFailure(r.plugin.Name(), "stop", err))
			}
		}
		if sched := r.sched; sched != nil {
			sched.RemoveAll()
		}
		c.mu.Lock()
		r.state = plugin.StateStopped
		c.mu.Unlock()
		c.bus.Emit(EventPluginStopped, map[string]any{"plugin": r.plugin.Name()})
	}

	c.mu.Lock()
	c.phase = phaseStopped
	c.mu.Unlock()
	c.bus.Emit(EventStopComplete, nil)
	return nil
}

// Destroy runs Destroy hooks in reverse start order. Never aborts:
// every plugin gets a chance at cleanup regardless of earlier failures.
func (c *Core) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == phaseDestroyed {
		c.mu.Unlock()
		return nil
	}
	order := c.startOrder
	if order == nil {
		for _, r := range c.regs {
			order = append(order, r.plugin.Name())
		}
	}
	c.mu.Unlock()

	c.bus.Emit(EventDestroyBegin, nil)
	for i := len(order) - 1; i >= 0; i-- {
		r := c.byName[order[i]]
		if destroyer, ok := r.plugin.(plugin.Destroyer); ok {
			if err := safeCall(func() error { return destroyer.Destroy(ctx) }); err != nil {
				c.emitErrorNonFatal(errors.PluginFailure(r.plugin.Name(), "destroy", err))
			}
		}
		c.mu.Lock()
		r.state = plugin.StateDestroyed
		c.mu.Unlock()
		c.bus.Emit(EventPluginDestroyed, map[string]any{"plugin": r.plugin.Name()})
	}

	c.cron.Stop()
	c.mu.Lock()
	c.phase = phaseDestroyed
	c.mu.Unlock()
	c.bus.Emit(EventDestroyComplete, nil)
	return nil
}

func safeCall(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f()
}

// WaitFor blocks until name is next emitted on the bus or ctx expires.
func (c *Core) WaitFor(ctx context.Context, name string) (eventbus.Event, error) {
	return c.bus.WaitFor(ctx, name)
}
