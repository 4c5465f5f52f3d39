// Package hal runs the robot state bridge behind the Viam components: one runtime per robot,
// shared by every component configured against it.
package hal

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/resource"

	"github.com/clintpurser/frankahw/bridge"
	"github.com/clintpurser/frankahw/dynamixel"
	"github.com/clintpurser/frankahw/robotstate"
	"github.com/clintpurser/frankahw/sim"
)

// State source kinds.
const (
	SourceSim       = "sim"
	SourceDynamixel = "dynamixel"
)

// DefaultDynamixelControlRate is the default loop rate for the Dynamixel source. A read
// takes two register round trips per motor, which does not fit a 1 kHz period.
const DefaultDynamixelControlRate = 50.0

// DefaultStatsInterval is how often channel counters are logged.
const DefaultStatsInterval = 30 * time.Second

// Config describes the robot a runtime bridges.
type Config struct {
	Source        string   `json:"source,omitempty"` // "sim" (default) or "dynamixel"
	JointNames    []string `json:"joint_names,omitempty"`
	ControlRateHz float64  `json:"control_rate_hz,omitempty"`

	USBPort        string  `json:"usb_port,omitempty"`
	BaudRate       int     `json:"baud_rate,omitempty"`
	MotorIDs       []int   `json:"motor_ids,omitempty"`
	TorqueConstant float64 `json:"torque_constant,omitempty"`

	Sim sim.Config `json:"sim,omitempty"`

	TelemetryFile    string `json:"telemetry_file,omitempty"`
	TelemetryMaxMB   int    `json:"telemetry_max_mb,omitempty"`
	TelemetryBackups int    `json:"telemetry_backups,omitempty"`

	StatsIntervalSec float64 `json:"stats_interval_sec,omitempty"`
}

// Validate checks the robot attributes. path is the resource path used in error messages.
func (c *Config) Validate(path string) error {
	switch c.Source {
	case "", SourceSim:
	case SourceDynamixel:
		if c.USBPort == "" {
			return resource.NewConfigValidationFieldRequiredError(path, "usb_port")
		}
	default:
		return resource.NewConfigValidationError(path,
			errors.Errorf("unknown source %q, expected %q or %q", c.Source, SourceSim, SourceDynamixel))
	}

	if len(c.JointNames) > 0 {
		if err := bridge.ValidateJointNames(c.JointNames); err != nil {
			return resource.NewConfigValidationError(path, err)
		}
	}
	if len(c.MotorIDs) > 0 && len(c.MotorIDs) != robotstate.NumJoints {
		return resource.NewConfigValidationError(path,
			errors.Errorf("expected %d motor_ids, got %d", robotstate.NumJoints, len(c.MotorIDs)))
	}
	if c.ControlRateHz < 0 {
		return resource.NewConfigValidationError(path, errors.New("control_rate_hz must not be negative"))
	}
	if c.StatsIntervalSec < 0 {
		return resource.NewConfigValidationError(path, errors.New("stats_interval_sec must not be negative"))
	}
	return nil
}

// withDefaults returns a copy with every unset field filled in.
func (c Config) withDefaults() Config {
	if c.Source == "" {
		c.Source = SourceSim
	}
	if len(c.JointNames) == 0 {
		c.JointNames = append([]string(nil), robotstate.DefaultJointNames...)
	}
	if c.ControlRateHz == 0 {
		c.ControlRateHz = bridge.DefaultControlRate
		if c.Source == SourceDynamixel {
			c.ControlRateHz = DefaultDynamixelControlRate
		}
	}
	if c.Source == SourceDynamixel && c.BaudRate == 0 {
		c.BaudRate = dynamixel.DefaultBaudRate
	}
	if c.StatsIntervalSec == 0 {
		c.StatsIntervalSec = DefaultStatsInterval.Seconds()
	}
	return c
}

func (c Config) period() time.Duration {
	return time.Duration(float64(time.Second) / c.ControlRateHz)
}

func (c Config) statsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSec * float64(time.Second))
}

func (c Config) dynamixelConfig() dynamixel.Config {
	dc := dynamixel.Config{
		USBPort:        c.USBPort,
		BaudRate:       c.BaudRate,
		TorqueConstant: c.TorqueConstant,
	}
	copy(dc.MotorIDs[:], c.MotorIDs)
	return dc
}
