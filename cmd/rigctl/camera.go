package main

import (
	"fmt"
	"strconv"

	"github.com/mastercactapus/wellrig/camera"
	"github.com/mastercactapus/wellrig/config"
	"github.com/spf13/cobra"
)

// cameraSystem returns the configured camera system, nil for none.
func cameraSystem(cfg config.CameraConfig) camera.System {
	switch cfg.Driver {
	case config.CameraSim:
		return camera.NewSimSystem(cfg.Width, cfg.Height)
	}
	return nil
}

// withCamera opens the camera, runs fn and cleans up.
func withCamera(cmd *cobra.Command, fn func(cam *camera.Camera) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sys := cameraSystem(cfg.Camera)
	if sys == nil {
		return fmt.Errorf("%w: camera driver %q", camera.ErrHardwareUnavailable, cfg.Camera.Driver)
	}
	cam, err := camera.Open(sys)
	if err != nil {
		return err
	}
	err = fn(cam)
	if cerr := cam.Cleanup(); err == nil {
		err = cerr
	}
	return err
}

var emissivityCmd = &cobra.Command{
	Use:   "emissivity VALUE",
	Short: "Set the camera emissivity (0 to 1)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("parse emissivity: %w", err)
		}
		return withCamera(cmd, func(cam *camera.Camera) error { return cam.SetEmissivity(v) })
	},
}

var distanceCmd = &cobra.Command{
	Use:   "distance VALUE",
	Short: "Set the camera object distance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("parse distance: %w", err)
		}
		return withCamera(cmd, func(cam *camera.Camera) error { return cam.SetDistance(v) })
	},
}

func init() {
	rootCmd.AddCommand(emissivityCmd)
	rootCmd.AddCommand(distanceCmd)
}
