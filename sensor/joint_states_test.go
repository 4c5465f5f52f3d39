package sensor

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/clintpurser/frankahw/bridge"
	"github.com/clintpurser/frankahw/hal"
	"github.com/clintpurser/frankahw/realtime"
	"github.com/clintpurser/frankahw/robotstate"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	_, _, err := cfg.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "arm")

	cfg = &Config{Arm: "franka"}
	deps, opt, err := cfg.Validate("path")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"rdk:component:arm/franka"})
	test.That(t, opt, test.ShouldBeEmpty)
}

func TestReadingsLayout(t *testing.T) {
	msg := realtime.Message[bridge.JointStates]{
		Seq:   3,
		Stamp: time.Unix(0, 42),
		Payload: bridge.JointStates{
			Cycle:     7,
			RobotTime: 1500 * time.Millisecond,
			Names:     robotstate.DefaultJointNames,
			Position:  [robotstate.NumJoints]float64{0.1, 0.2},
			Velocity:  [robotstate.NumJoints]float64{1},
			Effort:    [robotstate.NumJoints]float64{0, 5},
		},
	}
	r := readings(msg, realtime.Stats{Sequence: 3, Misses: 9, Delivered: 2})

	test.That(t, r["seq"], test.ShouldEqual, uint64(3))
	test.That(t, r["cycle"], test.ShouldEqual, uint64(7))
	test.That(t, r["robot_time_s"], test.ShouldEqual, 1.5)
	test.That(t, r["stamp"], test.ShouldEqual, int64(42))
	test.That(t, r["misses"], test.ShouldEqual, uint64(9))

	joints := r["joints"].(map[string]interface{})
	test.That(t, joints, test.ShouldHaveLength, robotstate.NumJoints)
	j1 := joints["panda_joint1"].(map[string]interface{})
	test.That(t, j1["position"], test.ShouldEqual, 0.1)
	test.That(t, j1["velocity"], test.ShouldEqual, 1.0)
	j2 := joints["panda_joint2"].(map[string]interface{})
	test.That(t, j2["effort"], test.ShouldEqual, 5.0)
}

func TestJointStatesSensor(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	_, err := newJointStates(sensor.Named("js"), t.Name(), logger)
	test.That(t, errors.Is(err, hal.ErrNoRuntime), test.ShouldBeTrue)

	h, err := hal.Acquire(t.Name(), hal.Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer h.Release()

	s, err := newJointStates(sensor.Named("js"), t.Name(), logger)
	test.That(t, err, test.ShouldBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		r, err := s.Readings(ctx, nil)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, r["joints"], test.ShouldHaveLength, robotstate.NumJoints)
		test.That(tb, r["seq"], test.ShouldBeGreaterThan, uint64(0))
	})

	resp, err := s.DoCommand(ctx, map[string]interface{}{"stats": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp["name"], test.ShouldEqual, bridge.JointStatesChannel)
	test.That(t, resp["delivered"], test.ShouldBeGreaterThan, uint64(0))

	_, err = s.DoCommand(ctx, map[string]interface{}{"bogus": true})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, s.Close(ctx), test.ShouldBeNil)
	test.That(t, s.Close(ctx), test.ShouldBeNil)

	_, err = s.Readings(ctx, nil)
	test.That(t, err, test.ShouldEqual, ErrClosed)
	_, err = s.DoCommand(ctx, map[string]interface{}{"stats": true})
	test.That(t, err, test.ShouldEqual, ErrClosed)

	// The acquiring holder still keeps the runtime.
	_, err = h.Runtime()
	test.That(t, err, test.ShouldBeNil)
}

func TestJointStatesFollowArmRestart(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	owner, err := hal.Acquire(t.Name(), hal.Config{ControlRateHz: 200}, logger)
	test.That(t, err, test.ShouldBeNil)

	s, err := newJointStates(sensor.Named("js"), t.Name(), logger)
	test.That(t, err, test.ShouldBeNil)
	defer s.Close(ctx)

	old, err := s.h.Runtime()
	test.That(t, err, test.ShouldBeNil)

	// The arm is rebuilt with a new configuration while the sensor stays.
	owner.Release()
	owner, err = hal.Acquire(t.Name(), hal.Config{ControlRateHz: 400}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer owner.Release()

	cur, err := owner.Runtime()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cur, test.ShouldNotEqual, old)

	followed, err := s.h.Runtime()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, followed, test.ShouldEqual, cur)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		r, err := s.Readings(ctx, nil)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, r["seq"], test.ShouldBeGreaterThan, uint64(0))
	})
}
