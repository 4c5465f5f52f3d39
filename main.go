// Package main is the entry point for the Franka robot state bridge Viam module.
package main

import (
	"context"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"
	"go.viam.com/utils"

	// Import packages to register components
	frankaArm "github.com/clintpurser/frankahw/arm"
	frankaSensor "github.com/clintpurser/frankahw/sensor"
)

func main() {
	utils.ContextualMain(mainWithArgs, module.NewLoggerFromArgs("frankahw"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	mod, err := module.NewModuleFromArgs(ctx)
	if err != nil {
		return err
	}

	// Register arm component
	if err := mod.AddModelFromRegistry(ctx, arm.API, frankaArm.Model); err != nil {
		return err
	}

	// Register joint states sensor
	if err := mod.AddModelFromRegistry(ctx, sensor.API, frankaSensor.Model); err != nil {
		return err
	}

	if err := mod.Start(ctx); err != nil {
		return err
	}
	defer mod.Close(ctx)

	logger.Info("franka state bridge module started")
	<-ctx.Done()
	return nil
}
