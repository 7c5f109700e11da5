package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
kinematics = "cartesian"
serial = "/dev/ttyACM0"
max_velocity = 300
max_accel = 3000
junction_deviation = 0.02

[axis.x]
min_position = 0
max_position = 220
steps_per_mm = 80

[axis.y]
min_position = 0
max_position = 220
steps_per_mm = 80

[axis.z]
min_position = 0
max_position = 250
steps_per_mm = 400
`

func TestLoad_AppliesDefaultsAndParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "printer.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "cartesian", cfg.Kinematics)
	require.Equal(t, 250000, cfg.Baud) // default filled in
	require.InDelta(t, 0.02, cfg.JunctionDeviation, 1e-9)
	require.InDelta(t, 1500.0, cfg.MaxAccelToDecel, 1e-9) // default: half of max_accel

	xAxis := cfg.Axes["x"]
	require.InDelta(t, 50.0, xAxis.HomingSpeed, 1e-9) // default
}

func TestValidate_ReportsAllMissingAxes(t *testing.T) {
	cfg := &MachineConfig{Kinematics: "cartesian", Axes: map[string]AxisConfig{}}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `"x"`)
	require.Contains(t, err.Error(), `"y"`)
	require.Contains(t, err.Error(), `"z"`)
}

func TestValidate_RejectsUnknownKinematics(t *testing.T) {
	cfg := &MachineConfig{
		Kinematics: "delta",
		Axes: map[string]AxisConfig{
			"x": {}, "y": {}, "z": {},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "delta")
}
