// Package arm provides a read-only Viam arm component backed by the Franka robot state bridge.
package arm

import (
	"context"
	_ "embed"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"github.com/clintpurser/frankahw/hal"
	"github.com/clintpurser/frankahw/robotstate"
)

//go:embed franka_panda_kinematics.json
var kinematicsJSON []byte

// Model is the Viam model for the Franka state bridge arm.
var Model = resource.NewModel("clint", "franka", "state-bridge")

// DefaultMovingThreshold is the joint speed above which the arm counts as moving [rad/s].
const DefaultMovingThreshold = 0.01

var (
	// ErrMotionUnsupported is returned by every motion request; the bridge only reads state.
	ErrMotionUnsupported = errors.New("franka state bridge does not command motion")
	// ErrNoState is returned before the first robot state has been received.
	ErrNoState = errors.New("no robot state received yet")
	// ErrClosed is returned by state reads after Close.
	ErrClosed = errors.New("franka state bridge arm is closed")
)

func init() {
	resource.RegisterComponent(arm.API, Model, resource.Registration[arm.Arm, *Config]{
		Constructor: NewStateBridge,
	})
}

// Config is the configuration for the state bridge arm.
type Config struct {
	hal.Config

	MovingThreshold float64 `json:"moving_threshold,omitempty"` // rad/s
}

// Validate validates the config.
func (c *Config) Validate(path string) ([]string, []string, error) {
	if err := c.Config.Validate(path); err != nil {
		return nil, nil, err
	}
	if c.MovingThreshold < 0 {
		return nil, nil, resource.NewConfigValidationError(path, errors.New("moving_threshold must not be negative"))
	}
	return nil, nil, nil
}

// stateBridge implements the arm.Arm interface over the bridge views.
type stateBridge struct {
	resource.Named
	resource.AlwaysRebuild

	mu     sync.RWMutex
	h      *hal.Handle
	model  referenceframe.Model
	logger logging.Logger

	movingThreshold float64
}

// NewStateBridge creates the arm and starts, or joins, the robot state runtime named after it.
func NewStateBridge(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (arm.Arm, error) {
	config, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	return newStateBridge(conf.ResourceName(), config, logger)
}

func newStateBridge(name resource.Name, config *Config, logger logging.Logger) (*stateBridge, error) {
	a := &stateBridge{
		Named:           name.AsNamed(),
		logger:          logger,
		movingThreshold: config.MovingThreshold,
	}
	if a.movingThreshold == 0 {
		a.movingThreshold = DefaultMovingThreshold
	}

	if err := a.loadKinematics(); err != nil {
		return nil, errors.Wrap(err, "failed to load kinematics")
	}

	h, err := hal.Acquire(name.ShortName(), config.Config, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start robot state runtime")
	}
	a.h = h

	logger.Infof("Franka state bridge arm started as runtime %q", h.Key())
	return a, nil
}

// runtime resolves the runtime behind the arm. Callers must hold a.mu.
func (a *stateBridge) runtime() (*hal.Runtime, error) {
	if a.h == nil {
		return nil, ErrClosed
	}
	return a.h.Runtime()
}

// loadKinematics loads the kinematics model from embedded JSON.
func (a *stateBridge) loadKinematics() error {
	model, err := referenceframe.UnmarshalModelJSON(kinematicsJSON, a.Name().ShortName())
	if err != nil {
		return errors.Wrap(err, "failed to parse kinematics JSON")
	}
	a.model = model
	return nil
}

// EndPosition returns the end-effector pose reported by the robot, in mm.
func (a *stateBridge) EndPosition(ctx context.Context, extra map[string]interface{}) (spatialmath.Pose, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rt, err := a.runtime()
	if err != nil {
		return nil, err
	}
	cs, ok := rt.Bridge().FrankaCartesianView().Load()
	if !ok {
		return nil, ErrNoState
	}
	return cs.SpatialPose()
}

// MoveToPosition is not supported.
func (a *stateBridge) MoveToPosition(ctx context.Context, pose spatialmath.Pose, extra map[string]interface{}) error {
	return ErrMotionUnsupported
}

// MoveToJointPositions is not supported.
func (a *stateBridge) MoveToJointPositions(ctx context.Context, positions []referenceframe.Input, extra map[string]interface{}) error {
	return ErrMotionUnsupported
}

// MoveThroughJointPositions is not supported.
func (a *stateBridge) MoveThroughJointPositions(ctx context.Context, positions [][]referenceframe.Input, options *arm.MoveOptions, extra map[string]any) error {
	return ErrMotionUnsupported
}

// JointPositions returns the measured joint positions.
func (a *stateBridge) JointPositions(ctx context.Context, extra map[string]interface{}) ([]referenceframe.Input, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rt, err := a.runtime()
	if err != nil {
		return nil, err
	}
	js, ok := rt.Bridge().FrankaJointView().Load()
	if !ok {
		return nil, ErrNoState
	}

	// Input is a float64 alias
	inputs := make([]referenceframe.Input, len(js.Position))
	for i, rad := range js.Position {
		inputs[i] = referenceframe.Input(rad)
	}
	return inputs, nil
}

// Stop has nothing to stop; the bridge never commands the robot.
func (a *stateBridge) Stop(ctx context.Context, extra map[string]interface{}) error {
	return nil
}

// IsMoving reports whether any joint is faster than the moving threshold.
func (a *stateBridge) IsMoving(ctx context.Context) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rt, err := a.runtime()
	if err != nil {
		return false, err
	}
	js, ok := rt.Bridge().FrankaJointView().Load()
	if !ok {
		return false, nil
	}
	for _, v := range js.Velocity {
		if math.Abs(v) > a.movingThreshold {
			return true, nil
		}
	}
	return false, nil
}

// ModelFrame returns the kinematics model.
func (a *stateBridge) ModelFrame() referenceframe.Model {
	return a.model
}

// Kinematics returns the kinematics model.
func (a *stateBridge) Kinematics(ctx context.Context) (referenceframe.Model, error) {
	return a.model, nil
}

// CurrentInputs returns the current joint positions as referenceframe inputs.
func (a *stateBridge) CurrentInputs(ctx context.Context) ([]referenceframe.Input, error) {
	return a.JointPositions(ctx, nil)
}

// GoToInputs is not supported.
func (a *stateBridge) GoToInputs(ctx context.Context, inputSteps ...[]referenceframe.Input) error {
	return ErrMotionUnsupported
}

// Geometries returns the geometries of the arm in its current configuration.
func (a *stateBridge) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	inputs, err := a.CurrentInputs(ctx)
	if err != nil {
		return nil, err
	}
	gifs, err := a.model.Geometries(inputs)
	if err != nil {
		return nil, err
	}
	return gifs.Geometries(), nil
}

// pandaModelParts names the GLB meshes under arm/3d_models/franka-panda/. The names match the
// link IDs in franka_panda_kinematics.json.
var pandaModelParts = []string{
	"panda_link0",
	"panda_link1",
	"panda_link2",
	"panda_link3",
	"panda_link4",
	"panda_link5",
	"panda_link6",
	"panda_link8",
}

// Get3DModels returns whichever arm meshes ship with the module.
func (a *stateBridge) Get3DModels(ctx context.Context, extra map[string]interface{}) (map[string]*commonpb.Mesh, error) {
	models := make(map[string]*commonpb.Mesh)

	moduleRoot := os.Getenv("VIAM_MODULE_ROOT")
	if moduleRoot == "" {
		moduleRoot = "."
	}

	for _, part := range pandaModelParts {
		path := filepath.Join(moduleRoot, "arm", "3d_models", "franka-panda", part+".glb")
		glb, err := os.ReadFile(path)
		if err != nil {
			a.logger.Debugf("Could not load 3D model %s: %v", part, err)
			continue
		}
		models[part] = &commonpb.Mesh{
			Mesh:        glb,
			ContentType: "model/gltf-binary",
		}
	}

	return models, nil
}

// DoCommand handles custom commands:
//
//	{"stats": true}        bridge, loop and channel counters
//	{"state": true}        cartesian state: pose, elbow and wrenches split into force and torque
//	{"joint_state": true}  joint-space state
//	{"last_fault": true}   most recent state source fault
func (a *stateBridge) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rt, err := a.runtime()
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{})
	b := rt.Bridge()

	if _, ok := cmd["stats"]; ok {
		stats, err := toMap(rt.Stats())
		if err != nil {
			return nil, err
		}
		result["stats"] = stats
	}

	if _, ok := cmd["state"]; ok {
		cs, ok := b.FrankaCartesianView().Load()
		if !ok {
			return nil, ErrNoState
		}
		state, err := cartesianState(cs)
		if err != nil {
			return nil, err
		}
		result["state"] = state
	}

	if _, ok := cmd["joint_state"]; ok {
		js, ok := b.FrankaJointView().Load()
		if !ok {
			return nil, ErrNoState
		}
		state, err := toMap(js)
		if err != nil {
			return nil, err
		}
		result["joint_state"] = state
	}

	if _, ok := cmd["last_fault"]; ok {
		if f := b.LastFault(); f != nil {
			result["last_fault"] = map[string]interface{}{
				"error": f.Err.Error(),
				"at":    f.At.String(),
				"cycle": f.Cycle,
			}
		} else {
			result["last_fault"] = nil
		}
	}

	if len(result) == 0 {
		return nil, errors.New("unknown command, expected one of stats, state, joint_state, last_fault")
	}
	return result, nil
}

type wrench struct {
	Force  vector `json:"force"`
	Torque vector `json:"torque"`
}

type vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func splitWrench(w [robotstate.CartesianDOF]float64) wrench {
	f, t := robotstate.SplitWrench(w)
	return wrench{Force: vector{f.X, f.Y, f.Z}, Torque: vector{t.X, t.Y, t.Z}}
}

type cartesianResponse struct {
	Cycle          uint64                                `json:"cycle"`
	Position       vector                                `json:"position_mm"`
	Orientation    *spatialmath.OrientationVectorDegrees `json:"orientation"`
	Elbow          [robotstate.ElbowElements]float64     `json:"elbow"`
	ExternalWrench wrench                                `json:"external_wrench"`
	WrenchInBase   wrench                                `json:"wrench_in_base"`
	WrenchInEE     wrench                                `json:"wrench_in_ee"`
	Collision      [robotstate.CartesianDOF]float64      `json:"collision"`
	Contact        [robotstate.CartesianDOF]float64      `json:"contact"`
}

func cartesianState(cs robotstate.FrankaCartesianState) (map[string]interface{}, error) {
	pose, err := cs.SpatialPose()
	if err != nil {
		return nil, err
	}
	pt := pose.Point()
	ov := pose.Orientation().OrientationVectorDegrees()
	return toMap(cartesianResponse{
		Cycle:          cs.Cycle,
		Position:       vector{pt.X, pt.Y, pt.Z},
		Orientation:    ov,
		Elbow:          cs.Elbow,
		ExternalWrench: splitWrench(cs.ExternalWrench),
		WrenchInBase:   splitWrench(cs.WrenchInBase),
		WrenchInEE:     splitWrench(cs.WrenchInEE),
		Collision:      cs.Collision,
		Contact:        cs.Contact,
	})
}

// toMap converts v into the plain map form DoCommand responses need.
func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the robot state runtime. Later state reads return ErrClosed.
func (a *stateBridge) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.h == nil {
		return nil
	}
	a.h.Release()
	a.h = nil
	a.logger.Info("Franka state bridge arm closed")
	return nil
}
