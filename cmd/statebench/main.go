// Package main runs the robot state bridge against the simulated source with a deliberately
// slow consumer and prints the channel counters.
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"github.com/clintpurser/frankahw/bridge"
	"github.com/clintpurser/frankahw/realtime"
	"github.com/clintpurser/frankahw/robotstate"
	"github.com/clintpurser/frankahw/sim"
	"github.com/clintpurser/frankahw/sink"
)

type report struct {
	Bridge      bridge.Stats     `json:"bridge"`
	Loop        bridge.LoopStats `json:"loop"`
	SourceReads uint64           `json:"source_reads"`
	LastSeq     uint64           `json:"last_joint_states_seq"`
}

func main() {
	utils.ContextualMain(mainWithArgs, logging.NewLogger("statebench"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	cfg, err := loadConfig(args[1:])
	if err != nil {
		return err
	}

	rep, err := run(ctx, cfg, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func run(ctx context.Context, cfg *benchConfig, logger logging.Logger) (report, error) {
	period := time.Duration(float64(time.Second) / cfg.RateHz)
	src := sim.NewSource(sim.Config{FaultEvery: cfg.FaultEvery, ReadLatency: cfg.ReadLatency}, period)

	b, err := bridge.New(robotstate.DefaultJointNames, src, logger)
	if err != nil {
		return report{}, err
	}
	loop := bridge.NewLoop(b, cfg.RateHz, logger)

	var latest sink.Latest[bridge.JointStates]
	jointHandler := sink.Slow[bridge.JointStates](cfg.ConsumerDelay, latest.Handle)

	frankaHandler := func(context.Context, realtime.Message[bridge.FrankaStates]) error { return nil }
	if cfg.TelemetryFile != "" {
		jl := sink.NewJSONLines[bridge.FrankaStates](bridge.FrankaStatesChannel, sink.NewRotatingFile(cfg.TelemetryFile, 0, 3))
		defer func() {
			if err := jl.Close(); err != nil {
				logger.Warnf("failed to close telemetry file: %v", err)
			}
		}()
		frankaHandler = jl.Handle
		logger.Infof("writing %s to %s (session %s)", bridge.FrankaStatesChannel, cfg.TelemetryFile, jl.Session())
	}

	logger.Infof("running for %v at %.0f Hz, joint_states consumer delay %v", cfg.Duration, cfg.RateHz, cfg.ConsumerDelay)
	workers := utils.NewBackgroundStoppableWorkers(
		loop.Run,
		func(ctx context.Context) { _ = b.FrankaStatesChannel().Consume(ctx, frankaHandler) },
		func(ctx context.Context) { _ = b.JointStatesChannel().Consume(ctx, jointHandler) },
	)

	timer := time.NewTimer(cfg.Duration)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
	workers.Stop()

	rep := report{
		Bridge:      b.Stats(),
		Loop:        loop.Stats(),
		SourceReads: src.Reads(),
	}
	if msg, ok := latest.Get(); ok {
		rep.LastSeq = msg.Seq
	}
	return rep, nil
}
