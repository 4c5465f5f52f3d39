// Package sensor provides a Viam sensor reporting the joint states delivered on the bridge's
// joint_states channel.
package sensor

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"github.com/clintpurser/frankahw/bridge"
	"github.com/clintpurser/frankahw/hal"
	"github.com/clintpurser/frankahw/realtime"
)

// Model is the Viam model for the joint states sensor.
var Model = resource.NewModel("clint", "franka", "joint-states")

var (
	// ErrNoJointStates is returned by Readings before the first message was delivered.
	ErrNoJointStates = errors.New("no joint states delivered yet")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("joint states sensor is closed")
)

func init() {
	resource.RegisterComponent(sensor.API, Model, resource.Registration[sensor.Sensor, *Config]{
		Constructor: NewJointStates,
	})
}

// Config is the configuration for the joint states sensor.
type Config struct {
	Arm string `json:"arm"` // name of the state bridge arm whose runtime to read
}

// Validate validates the config.
func (c *Config) Validate(path string) ([]string, []string, error) {
	if c.Arm == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "arm")
	}
	// Depending on the arm makes it start, and with it the runtime, before this sensor.
	return []string{arm.Named(c.Arm).String()}, nil, nil
}

// jointStates implements the sensor.Sensor interface.
type jointStates struct {
	resource.Named
	resource.AlwaysRebuild

	mu     sync.RWMutex
	h      *hal.Handle
	logger logging.Logger
}

// NewJointStates creates a sensor reading the runtime of the configured arm.
func NewJointStates(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	config, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	return newJointStates(conf.ResourceName(), config.Arm, logger)
}

func newJointStates(name resource.Name, armName string, logger logging.Logger) (*jointStates, error) {
	h, err := hal.Attach(armName)
	if err != nil {
		return nil, errors.Wrapf(err, "arm %q is not a running state bridge", armName)
	}
	logger.Infof("joint states sensor attached to runtime %q", h.Key())
	return &jointStates{
		Named:  name.AsNamed(),
		h:      h,
		logger: logger,
	}, nil
}

// runtime resolves the runtime the sensor reads. Callers must hold s.mu.
func (s *jointStates) runtime() (*hal.Runtime, error) {
	if s.h == nil {
		return nil, ErrClosed
	}
	return s.h.Runtime()
}

// Readings returns the last joint-state message delivered on the joint_states channel, keyed
// by joint name, with the channel counters.
func (s *jointStates) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, err := s.runtime()
	if err != nil {
		return nil, err
	}
	msg, ok := rt.LatestJointStates()
	if !ok {
		return nil, ErrNoJointStates
	}
	return readings(msg, rt.Bridge().JointStatesChannel().Stats()), nil
}

func readings(msg realtime.Message[bridge.JointStates], stats realtime.Stats) map[string]interface{} {
	js := msg.Payload
	joints := make(map[string]interface{}, len(js.Names))
	for i, name := range js.Names {
		joints[name] = map[string]interface{}{
			"position": js.Position[i],
			"velocity": js.Velocity[i],
			"effort":   js.Effort[i],
		}
	}
	return map[string]interface{}{
		"joints":       joints,
		"seq":          msg.Seq,
		"cycle":        js.Cycle,
		"robot_time_s": js.RobotTime.Seconds(),
		"stamp":        msg.Stamp.UnixNano(),
		"misses":       stats.Misses,
		"delivered":    stats.Delivered,
		"failed":       stats.Failed,
	}
}

// DoCommand returns the joint_states channel counters on {"stats": true}.
func (s *jointStates) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if _, ok := cmd["stats"]; !ok {
		return nil, errors.New("unknown command, expected stats")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, err := s.runtime()
	if err != nil {
		return nil, err
	}
	st := rt.Bridge().JointStatesChannel().Stats()
	return map[string]interface{}{
		"name":      st.Name,
		"sequence":  st.Sequence,
		"misses":    st.Misses,
		"attempts":  st.Attempts(),
		"delivered": st.Delivered,
		"failed":    st.Failed,
		"busy":      st.Busy,
	}, nil
}

// Close releases the runtime.
func (s *jointStates) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.h != nil {
		s.h.Release()
		s.h = nil
	}
	return nil
}
