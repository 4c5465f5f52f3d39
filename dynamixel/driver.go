package dynamixel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	protocol "github.com/haguro/go-dxl/protocol/v2"
	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/clintpurser/frankahw/robotstate"
)

var (
	// ErrNotOpen is returned when operations are attempted on a closed driver.
	ErrNotOpen = errors.New("driver not open")
	// ErrHardware wraps motor-reported hardware status errors.
	ErrHardware = errors.New("dynamixel hardware error")
)

// DefaultReadTimeout bounds a single register read.
const DefaultReadTimeout = 5 * time.Millisecond

// Config configures the Dynamixel state source.
type Config struct {
	USBPort        string
	BaudRate       int
	MotorIDs       [robotstate.NumJoints]int
	TorqueConstant float64
	ReadTimeout    time.Duration
}

// registerBus reads the two register blocks the driver needs from one motor.
type registerBus interface {
	ReadPresent(id byte) ([]byte, error)
	ReadGoal(id byte) ([]byte, error)
}

type dxlBus struct {
	handler *protocol.Handler
}

func (b dxlBus) ReadPresent(id byte) ([]byte, error) {
	return b.handler.Read(id, AddrPresentCurrent, presentBlockLen)
}

func (b dxlBus) ReadGoal(id byte) ([]byte, error) {
	return b.handler.Read(id, AddrGoalPosition, goalLen)
}

// Driver reads joint state from a Dynamixel chain and implements bridge.StateSource.
type Driver struct {
	mu     sync.Mutex
	port   serial.Port
	bus    registerBus
	isOpen bool

	motorIDs       [robotstate.NumJoints]int
	torqueConstant float64
	opened         time.Time

	prevTorque [robotstate.NumJoints]float64
	prevAt     time.Time
}

// NewDriver opens the serial port and returns a driver reading the configured motors.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.USBPort, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.USBPort)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to set read timeout")
	}

	d := newDriver(dxlBus{handler: protocol.NewHandler(port, cfg.ReadTimeout)}, cfg)
	d.port = port
	return d, nil
}

func newDriver(bus registerBus, cfg Config) *Driver {
	if cfg.MotorIDs == ([robotstate.NumJoints]int{}) {
		cfg.MotorIDs = DefaultMotorIDs
	}
	if cfg.TorqueConstant == 0 {
		cfg.TorqueConstant = DefaultTorqueConstant
	}
	return &Driver{
		bus:            bus,
		isOpen:         true,
		motorIDs:       cfg.MotorIDs,
		torqueConstant: cfg.TorqueConstant,
		opened:         time.Now(),
	}
}

// Close closes the driver and releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpen {
		return nil
	}

	d.isOpen = false
	if d.port == nil {
		return nil
	}
	return d.port.Close()
}

// checkOpen verifies the driver is open.
func (d *Driver) checkOpen() error {
	if !d.isOpen {
		return ErrNotOpen
	}
	return nil
}

// ReadState reads present and goal registers of every joint motor. Quantities a Dynamixel
// cannot measure (external torque estimates, collision flags) are left zero and the pose is
// reported as identity.
func (d *Driver) ReadState(ctx context.Context) (robotstate.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var s robotstate.Sample
	if err := d.checkOpen(); err != nil {
		return s, err
	}

	now := time.Now()
	moving := false
	for i, id := range d.motorIDs {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		data, err := d.bus.ReadPresent(byte(id))
		if err != nil {
			return s, classify(err, id, "present state")
		}
		r, ok := decodePresent(data)
		if !ok {
			return s, fmt.Errorf("short present state read from motor %d: %d bytes", id, len(data))
		}
		goal, err := d.bus.ReadGoal(byte(id))
		if err != nil {
			return s, classify(err, id, "goal position")
		}

		s.Q[i] = r.position
		s.DQ[i] = r.velocity
		s.QD[i] = TicksToRadians(int(BytesToInt32(goal)))
		s.TauJ[i] = r.current * d.torqueConstant
		if r.velocity != 0 {
			moving = true
		}
	}

	if !d.prevAt.IsZero() {
		if dt := now.Sub(d.prevAt).Seconds(); dt > 0 {
			for i := range s.TauJ {
				s.DTauJ[i] = (s.TauJ[i] - d.prevTorque[i]) / dt
			}
		}
	}
	d.prevTorque = s.TauJ
	d.prevAt = now

	s.Time = now.Sub(d.opened)
	s.RobotMode = robotstate.RobotModeIdle
	if moving {
		s.RobotMode = robotstate.RobotModeMove
	}
	s.TauJD = s.TauJ
	s.Elbow = [robotstate.ElbowElements]float64{s.Q[2], 1}
	s.OTEE = robotstate.IdentityPose()
	s.ControlSuccessRate = 1
	return s, nil
}

// classify wraps a read error, marking motor hardware status errors with ErrHardware.
func classify(err error, motorID int, what string) error {
	if isHardwareError(err) {
		return errors.Wrapf(ErrHardware, "motor %d %s: %v", motorID, what, err)
	}
	return errors.Wrapf(err, "failed to read %s from motor %d", what, motorID)
}

// isHardwareError checks if the error is a Dynamixel hardware error
// (as opposed to a communication error)
func isHardwareError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// Hardware errors from Dynamixel contain these phrases
	return strings.Contains(errStr, "data limit error") ||
		strings.Contains(errStr, "processing error") ||
		strings.Contains(errStr, "hardware error") ||
		strings.Contains(errStr, "overload error") ||
		strings.Contains(errStr, "overheating error")
}
