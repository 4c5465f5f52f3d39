package robotstate

import (
	"sync"
	"testing"

	"go.viam.com/test"
)

var testNames = []string{"j1", "j2", "j3", "j4", "j5", "j6", "j7"}

// filledSample returns a sample with every numeric field set to v.
func filledSample(v float64) Sample {
	var s Sample
	for i := 0; i < NumJoints; i++ {
		s.Q[i], s.DQ[i], s.QD[i] = v, v, v
		s.TauJ[i], s.DTauJ[i], s.TauJD[i] = v, v, v
		s.TauExtHatFiltered[i] = v
		s.JointCollision[i], s.JointContact[i] = v, v
	}
	for i := 0; i < CartesianDOF; i++ {
		s.OFExtHatK[i] = v
		s.CartesianCollision[i], s.CartesianContact[i] = v, v
		s.OFExtHatEE[i], s.EEFExtHatEE[i] = v, v
	}
	for i := range s.Elbow {
		s.Elbow[i] = v
	}
	for i := range s.OTEE {
		s.OTEE[i] = v
	}
	return s
}

func TestViewsBeforeRefresh(t *testing.T) {
	_, ok := NewJointStateView(testNames).Load()
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = NewFrankaJointView(testNames).Load()
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = NewFrankaCartesianView().Load()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestJointStateViewProjection(t *testing.T) {
	var sample Sample
	for i := 0; i < NumJoints; i++ {
		sample.Q[i] = float64(i)
		sample.DQ[i] = float64(10 + i)
		sample.TauJ[i] = float64(20 + i)
	}
	v := NewJointStateView(testNames)
	v.Refresh(Build(sample, 3))

	js, ok := v.Load()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, js.Cycle, test.ShouldEqual, uint64(3))
	test.That(t, js.Names, test.ShouldResemble, testNames)
	test.That(t, js.Position, test.ShouldResemble, sample.Q)
	test.That(t, js.Velocity, test.ShouldResemble, sample.DQ)
	test.That(t, js.Effort, test.ShouldResemble, sample.TauJ)

	pos, vel, eff, ok := js.Joint("j4")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pos, test.ShouldEqual, 3.0)
	test.That(t, vel, test.ShouldEqual, 13.0)
	test.That(t, eff, test.ShouldEqual, 23.0)

	_, _, _, ok = js.Joint("j8")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestViewsHandOutOwnNames(t *testing.T) {
	names := append([]string(nil), testNames...)
	jv := NewJointStateView(names)
	fv := NewFrankaJointView(names)
	names[0] = "changed"

	s := Build(filledSample(1), 1)
	jv.Refresh(s)
	fv.Refresh(s)

	js, ok := jv.Load()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, js.Names[0], test.ShouldEqual, "j1")
	js.Names[1] = "changed"
	js, _ = jv.Load()
	test.That(t, js.Names, test.ShouldResemble, testNames)

	fj, ok := fv.Load()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, fj.Names[0], test.ShouldEqual, "j1")
	fj.Names[1] = "changed"
	fj, _ = fv.Load()
	test.That(t, fj.Names, test.ShouldResemble, testNames)
}

func TestFrankaJointViewProjection(t *testing.T) {
	sample := filledSample(2)
	sample.QD[6] = 9
	v := NewFrankaJointView(testNames)
	v.Refresh(Build(sample, 1))

	fj, ok := v.Load()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, fj.Names, test.ShouldHaveLength, NumJoints)
	test.That(t, fj.Position, test.ShouldResemble, sample.Q)
	test.That(t, fj.DesiredPosition[6], test.ShouldEqual, 9.0)
	test.That(t, fj.ExternalTorque, test.ShouldResemble, sample.TauExtHatFiltered)
	test.That(t, fj.Contact, test.ShouldResemble, sample.JointContact)
}

func TestFrankaCartesianViewProjection(t *testing.T) {
	sample := filledSample(0)
	sample.OTEE = IdentityPose()
	sample.OTEE[12], sample.OTEE[14] = 0.3, 0.5
	sample.OFExtHatEE = [CartesianDOF]float64{1, 2, 3, 4, 5, 6}
	sample.Elbow = [ElbowElements]float64{0.1, -1}

	v := NewFrankaCartesianView()
	v.Refresh(Build(sample, 8))

	cs, ok := v.Load()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cs.Cycle, test.ShouldEqual, uint64(8))
	test.That(t, cs.WrenchInBase, test.ShouldResemble, sample.OFExtHatEE)
	test.That(t, cs.Elbow, test.ShouldResemble, sample.Elbow)

	pose, err := cs.SpatialPose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().X, test.ShouldAlmostEqual, 300.0)
	test.That(t, pose.Point().Z, test.ShouldAlmostEqual, 500.0)
}

func TestViewsNeverTear(t *testing.T) {
	jv := NewJointStateView(testNames)
	fv := NewFrankaJointView(testNames)
	cv := NewFrankaCartesianView()

	const cycles = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for c := uint64(1); c <= cycles; c++ {
			s := Build(filledSample(float64(c)), c)
			jv.Refresh(s)
			fv.Refresh(s)
			cv.Refresh(s)
		}
	}()

	torn := 0
	for i := 0; i < cycles; i++ {
		if js, ok := jv.Load(); ok {
			want := float64(js.Cycle)
			for j := 0; j < NumJoints; j++ {
				if js.Position[j] != want || js.Velocity[j] != want || js.Effort[j] != want {
					torn++
				}
			}
		}
		if fj, ok := fv.Load(); ok {
			want := float64(fj.Cycle)
			for j := 0; j < NumJoints; j++ {
				if fj.DesiredPosition[j] != want || fj.Collision[j] != want {
					torn++
				}
			}
		}
		if cs, ok := cv.Load(); ok {
			want := float64(cs.Cycle)
			for _, x := range cs.Pose {
				if x != want {
					torn++
				}
			}
		}
	}
	wg.Wait()
	test.That(t, torn, test.ShouldEqual, 0)
}
