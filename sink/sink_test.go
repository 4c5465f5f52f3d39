package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/clintpurser/frankahw/realtime"
)

type point struct {
	X float64 `json:"x"`
}

func TestLatest(t *testing.T) {
	var l Latest[point]
	_, ok := l.Get()
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, l.Handle(context.Background(), realtime.Message[point]{Seq: 4, Payload: point{X: 1}}), test.ShouldBeNil)
	msg, ok := l.Get()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, msg.Seq, test.ShouldEqual, uint64(4))
	test.That(t, msg.Payload.X, test.ShouldEqual, 1.0)
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONLines[point]("joint_states", &buf)
	ctx := context.Background()
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	test.That(t, j.Handle(ctx, realtime.Message[point]{Seq: 1, Stamp: stamp, Payload: point{X: 0.5}}), test.ShouldBeNil)
	test.That(t, j.Handle(ctx, realtime.Message[point]{Seq: 2, Stamp: stamp, Payload: point{X: 0.6}}), test.ShouldBeNil)

	sc := bufio.NewScanner(&buf)
	var recs []Record[point]
	for sc.Scan() {
		var r Record[point]
		test.That(t, json.Unmarshal(sc.Bytes(), &r), test.ShouldBeNil)
		recs = append(recs, r)
	}
	test.That(t, recs, test.ShouldHaveLength, 2)
	test.That(t, recs[0].Session, test.ShouldEqual, j.Session())
	test.That(t, recs[0].Channel, test.ShouldEqual, "joint_states")
	test.That(t, recs[1].Seq, test.ShouldEqual, uint64(2))
	test.That(t, recs[1].Payload.X, test.ShouldEqual, 0.6)
	test.That(t, recs[1].Stamp.Equal(stamp), test.ShouldBeTrue)
	test.That(t, j.Close(), test.ShouldBeNil)
}

func TestJSONLinesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "franka_states.jsonl")
	j := NewJSONLines[point]("franka_states", NewRotatingFile(path, 1, 2))
	test.That(t, j.Handle(context.Background(), realtime.Message[point]{Seq: 1}), test.ShouldBeNil)
	test.That(t, j.Close(), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"channel":"franka_states"`)
}

func TestMulti(t *testing.T) {
	var a, b Latest[point]
	h := Multi[point](a.Handle, b.Handle)
	test.That(t, h(context.Background(), realtime.Message[point]{Seq: 9}), test.ShouldBeNil)
	ma, _ := a.Get()
	mb, _ := b.Get()
	test.That(t, ma.Seq, test.ShouldEqual, uint64(9))
	test.That(t, mb.Seq, test.ShouldEqual, uint64(9))

	fail := func(context.Context, realtime.Message[point]) error { return errors.New("boom") }
	err := Multi[point](fail, a.Handle, fail)(context.Background(), realtime.Message[point]{Seq: 10})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "2 of 3 handlers failed")
	ma, _ = a.Get()
	test.That(t, ma.Seq, test.ShouldEqual, uint64(10))
}

func TestSlow(t *testing.T) {
	var l Latest[point]
	h := Slow[point](20*time.Millisecond, l.Handle)

	start := time.Now()
	test.That(t, h(context.Background(), realtime.Message[point]{Seq: 1}), test.ShouldBeNil)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, Slow[point](time.Hour, nil)(ctx, realtime.Message[point]{}), test.ShouldEqual, context.Canceled)
}
