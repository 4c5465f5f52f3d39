package hal

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"

	"github.com/clintpurser/frankahw/bridge"
	"github.com/clintpurser/frankahw/dynamixel"
	"github.com/clintpurser/frankahw/realtime"
	"github.com/clintpurser/frankahw/sim"
	"github.com/clintpurser/frankahw/sink"
)

var (
	// ErrNoRuntime is returned when no runtime is running under the key.
	ErrNoRuntime = errors.New("no robot state runtime running")
	// ErrReleased is returned by a handle after Release.
	ErrReleased = errors.New("robot state runtime handle released")
)

// entry is the runtime currently serving a key and the number of handles on it.
type entry struct {
	rt   *Runtime
	refs int
}

var (
	registryMu sync.Mutex
	registry   = map[string]*entry{}
)

// Stats is a point-in-time copy of the runtime counters.
type Stats struct {
	Bridge bridge.Stats     `json:"bridge"`
	Loop   bridge.LoopStats `json:"loop"`
}

// Runtime is a running bridge: its state source, the control loop and the channel consumers.
type Runtime struct {
	key    string
	cfg    Config
	logger logging.Logger

	bridge      *bridge.Bridge
	loop        *bridge.Loop
	closeSource func() error

	franka    sink.Latest[bridge.FrankaStates]
	joints    sink.Latest[bridge.JointStates]
	telemetry *sink.JSONLines[bridge.FrankaStates]

	workers *goutils.StoppableWorkers
}

// Handle is one holder's reference to the runtime serving a key. It resolves the runtime on
// every call, so holders follow a restart with a new configuration.
type Handle struct {
	key      string
	released atomic.Bool
}

// Acquire returns a handle on the runtime serving key, starting the runtime if needed.
// If the runtime was started with a different configuration it is stopped, which frees its
// state source, and a new one takes over for every existing handle. Callers must Release the
// handle when done with it.
func Acquire(key string, cfg Config, logger logging.Logger) (*Handle, error) {
	cfg = cfg.withDefaults()

	registryMu.Lock()
	defer registryMu.Unlock()

	e, ok := registry[key]
	if ok && e.rt != nil && reflect.DeepEqual(e.rt.cfg, cfg) {
		e.refs++
		logger.Debugf("reusing robot state runtime %q, %d holders", key, e.refs)
		return &Handle{key: key}, nil
	}

	var prev *Runtime
	if ok && e.rt != nil {
		logger.Infof("configuration of robot state runtime %q changed, restarting it for %d holders", key, e.refs)
		prev = e.rt
		prev.stop()
		e.rt = nil
	}

	rt, err := start(key, cfg, logger)
	if err != nil {
		if prev != nil {
			if restored, rerr := start(key, prev.cfg, prev.logger); rerr != nil {
				logger.Warnf("failed to restore previous robot state runtime %q: %v", key, rerr)
			} else {
				e.rt = restored
			}
		}
		return nil, err
	}

	if !ok {
		e = &entry{}
		registry[key] = e
	}
	e.rt = rt
	e.refs++
	return &Handle{key: key}, nil
}

// Attach returns a handle on the runtime already serving key.
func Attach(key string) (*Handle, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	e, ok := registry[key]
	if !ok || e.rt == nil {
		return nil, errors.Wrapf(ErrNoRuntime, "for %q", key)
	}
	e.refs++
	return &Handle{key: key}, nil
}

// Key returns the registry key the handle refers to.
func (h *Handle) Key() string {
	return h.key
}

// Runtime returns the runtime currently serving the handle's key.
func (h *Handle) Runtime() (*Runtime, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	registryMu.Lock()
	defer registryMu.Unlock()

	e, ok := registry[h.key]
	if !ok || e.rt == nil {
		return nil, errors.Wrapf(ErrNoRuntime, "for %q", h.key)
	}
	return e.rt, nil
}

// Release drops the handle and stops the runtime when the last handle on it is released.
// Releasing twice is a no-op.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}

	registryMu.Lock()
	var last *Runtime
	if e, ok := registry[h.key]; ok {
		e.refs--
		if e.refs <= 0 {
			delete(registry, h.key)
			last = e.rt
		}
	}
	registryMu.Unlock()

	if last != nil {
		last.stop()
	}
}

func start(key string, cfg Config, logger logging.Logger) (*Runtime, error) {
	rt := &Runtime{
		key:         key,
		cfg:         cfg,
		logger:      logger,
		closeSource: func() error { return nil },
	}

	var src bridge.StateSource
	switch cfg.Source {
	case SourceDynamixel:
		driver, err := dynamixel.NewDriver(cfg.dynamixelConfig())
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize Dynamixel driver")
		}
		src = driver
		rt.closeSource = driver.Close
	default:
		src = sim.NewSource(cfg.Sim, cfg.period())
	}

	b, err := bridge.New(cfg.JointNames, src, logger)
	if err != nil {
		if cerr := rt.closeSource(); cerr != nil {
			logger.Warnf("failed to close state source: %v", cerr)
		}
		return nil, err
	}
	rt.bridge = b
	rt.loop = bridge.NewLoop(b, cfg.ControlRateHz, logger)

	frankaHandler := rt.franka.Handle
	if cfg.TelemetryFile != "" {
		rt.telemetry = sink.NewJSONLines[bridge.FrankaStates](bridge.FrankaStatesChannel,
			sink.NewRotatingFile(cfg.TelemetryFile, cfg.TelemetryMaxMB, cfg.TelemetryBackups))
		frankaHandler = sink.Multi[bridge.FrankaStates](rt.franka.Handle, rt.telemetry.Handle)
		logger.Infof("writing %s telemetry to %s (session %s)", bridge.FrankaStatesChannel, cfg.TelemetryFile, rt.telemetry.Session())
	}

	rt.workers = goutils.NewBackgroundStoppableWorkers(
		rt.loop.Run,
		func(ctx context.Context) { consume(ctx, b.FrankaStatesChannel(), frankaHandler) },
		func(ctx context.Context) { consume(ctx, b.JointStatesChannel(), rt.joints.Handle) },
	)
	if interval := cfg.statsInterval(); interval > 0 {
		rt.workers.Add(func(ctx context.Context) { rt.logStats(ctx, interval) })
	}

	logger.Infof("robot state runtime %q started: %s source at %.0f Hz", key, cfg.Source, cfg.ControlRateHz)
	return rt, nil
}

func consume[T any](ctx context.Context, ch *realtime.Channel[T], handle realtime.Handler[T]) {
	// Consume only returns once ctx is done.
	_ = ch.Consume(ctx, handle)
}

func (rt *Runtime) logStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s := rt.Stats()
		rt.logger.Infow("robot state bridge stats",
			"status", s.Bridge.Status,
			"cycles", s.Bridge.Cycles,
			"source_faults", s.Bridge.SourceFaults,
			"overruns", s.Loop.Overruns,
			"max_cycle", s.Loop.MaxCycle,
			"franka_states_seq", s.Bridge.FrankaStates.Sequence,
			"franka_states_misses", s.Bridge.FrankaStates.Misses,
			"joint_states_seq", s.Bridge.JointStates.Sequence,
			"joint_states_misses", s.Bridge.JointStates.Misses,
		)
	}
}

func (rt *Runtime) stop() {
	rt.workers.Stop()
	if rt.telemetry != nil {
		if err := rt.telemetry.Close(); err != nil {
			rt.logger.Warnf("failed to close telemetry file: %v", err)
		}
	}
	if err := rt.closeSource(); err != nil {
		rt.logger.Warnf("failed to close state source: %v", err)
	}
	rt.logger.Infof("robot state runtime %q stopped", rt.key)
}

// Key returns the registry key the runtime runs under.
func (rt *Runtime) Key() string {
	return rt.key
}

// Bridge returns the bridge the runtime drives.
func (rt *Runtime) Bridge() *bridge.Bridge {
	return rt.bridge
}

// LatestFrankaStates returns the last full snapshot delivered to the consumer side.
func (rt *Runtime) LatestFrankaStates() (realtime.Message[bridge.FrankaStates], bool) {
	return rt.franka.Get()
}

// LatestJointStates returns the last joint-state message delivered to the consumer side.
func (rt *Runtime) LatestJointStates() (realtime.Message[bridge.JointStates], bool) {
	return rt.joints.Get()
}

// Stats returns the bridge and loop counters.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Bridge: rt.bridge.Stats(),
		Loop:   rt.loop.Stats(),
	}
}
