// Package config loads the host-side printer configuration: per-axis
// geometry and homing parameters, buffer-time tunables, and the serial
// connection to the MCU. Grounded in standalone/config/config.go's
// load-then-apply-defaults shape, switched from JSON to TOML (the
// teacher's go.mod already carries github.com/BurntSushi/toml for this).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// AxisConfig is one stepper axis's geometry, limits and homing parameters.
type AxisConfig struct {
	StepPin           string  `toml:"step_pin"`
	DirPin            string  `toml:"dir_pin"`
	EnablePin         string  `toml:"enable_pin"`
	StepsPerMM        float64 `toml:"steps_per_mm"`
	MaxVelocity       float64 `toml:"max_velocity"`
	MaxAccel          float64 `toml:"max_accel"`
	MinPosition       float64 `toml:"min_position"`
	MaxPosition       float64 `toml:"max_position"`
	PositionEndstop   float64 `toml:"position_endstop"`
	HomingSpeed       float64 `toml:"homing_speed"`
	SecondHomingSpeed float64 `toml:"second_homing_speed"`
	HomingRetractDist float64 `toml:"homing_retract_dist"`
	HomingPositiveDir bool    `toml:"homing_positive_dir"`
	InvertDir         bool    `toml:"invert_dir"`
	EndstopPin        string  `toml:"endstop_pin"`
	EndstopPullUp     bool    `toml:"endstop_pull_up"`
}

// ExtruderConfig configures the active filament drive at startup.
type ExtruderConfig struct {
	StepPin                string  `toml:"step_pin"`
	DirPin                 string  `toml:"dir_pin"`
	StepsPerMM             float64 `toml:"steps_per_mm"`
	NozzleDiameter         float64 `toml:"nozzle_diameter"`
	MaxExtrudeOnlyVelocity float64 `toml:"max_extrude_only_velocity"`
	MaxExtrudeOnlyAccel    float64 `toml:"max_extrude_only_accel"`
	InstantaneousCornerV   float64 `toml:"instantaneous_corner_velocity"`
}

// TelemetryConfig enables the optional MQTT status publisher.
type TelemetryConfig struct {
	Enabled    bool   `toml:"enabled"`
	Broker     string `toml:"broker"`
	ClientID   string `toml:"client_id"`
	TopicBase  string `toml:"topic_base"`
}

// MachineConfig is the complete host configuration.
type MachineConfig struct {
	Kinematics string `toml:"kinematics"` // "cartesian" or "corexy"
	Serial     string `toml:"serial"`
	Baud       int    `toml:"baud"`

	MaxVelocity       float64 `toml:"max_velocity"`
	MaxAccel          float64 `toml:"max_accel"`
	MaxAccelToDecel   float64 `toml:"max_accel_to_decel"`
	JunctionDeviation float64 `toml:"junction_deviation"`
	MaxZVelocity      float64 `toml:"max_z_velocity"`
	MaxZAccel         float64 `toml:"max_z_accel"`

	BufferTimeLow   float64 `toml:"buffer_time_low"`
	BufferTimeHigh  float64 `toml:"buffer_time_high"`
	BufferTimeStart float64 `toml:"buffer_time_start"`
	MoveFlushTime   float64 `toml:"move_flush_time"`
	MotorOffTime    float64 `toml:"motor_off_time"`

	Axes      map[string]AxisConfig `toml:"axis"`
	Extruder  ExtruderConfig        `toml:"extruder"`
	Telemetry TelemetryConfig       `toml:"telemetry"`

	LogLevel string `toml:"log_level"`
}

// Load reads and parses a TOML configuration file, then fills in defaults
// for anything left zero-valued.
func Load(path string) (*MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	var cfg MachineConfig
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the axes a kinematics mode needs are present,
// aggregating every missing axis into a single error rather than
// stopping at the first, matching standalone/kinematics/cartesian.go's
// per-axis required-axis checks but collected instead of short-circuited.
func (cfg *MachineConfig) Validate() error {
	var err error
	required := []string{"x", "y", "z"}
	for _, name := range required {
		if _, ok := cfg.Axes[name]; !ok {
			err = multierr.Append(err, errors.Errorf("config: axis %q not configured", name))
		}
	}
	if cfg.Kinematics != "cartesian" && cfg.Kinematics != "corexy" {
		err = multierr.Append(err, errors.Errorf("config: unsupported kinematics %q", cfg.Kinematics))
	}
	return err
}

func applyDefaults(cfg *MachineConfig) {
	if cfg.Kinematics == "" {
		cfg.Kinematics = "cartesian"
	}
	if cfg.Baud == 0 {
		cfg.Baud = 250000
	}
	if cfg.MaxVelocity == 0 {
		cfg.MaxVelocity = 300.0
	}
	if cfg.MaxAccel == 0 {
		cfg.MaxAccel = 3000.0
	}
	if cfg.MaxAccelToDecel == 0 {
		cfg.MaxAccelToDecel = cfg.MaxAccel * 0.5
	}
	if cfg.JunctionDeviation == 0 {
		cfg.JunctionDeviation = 0.05
	}
	if cfg.MaxZVelocity == 0 {
		cfg.MaxZVelocity = 10.0
	}
	if cfg.MaxZAccel == 0 {
		cfg.MaxZAccel = 100.0
	}
	if cfg.BufferTimeLow == 0 {
		cfg.BufferTimeLow = 1.0
	}
	if cfg.BufferTimeHigh == 0 {
		cfg.BufferTimeHigh = 2.0
	}
	if cfg.BufferTimeStart == 0 {
		cfg.BufferTimeStart = 0.25
	}
	if cfg.MoveFlushTime == 0 {
		cfg.MoveFlushTime = 0.15
	}
	if cfg.MotorOffTime == 0 {
		cfg.MotorOffTime = 600.0
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for name, axis := range cfg.Axes {
		if axis.MaxVelocity == 0 {
			axis.MaxVelocity = cfg.MaxVelocity
		}
		if axis.MaxAccel == 0 {
			axis.MaxAccel = cfg.MaxAccel
		}
		if axis.StepsPerMM == 0 {
			axis.StepsPerMM = 80.0
		}
		if axis.HomingSpeed == 0 {
			axis.HomingSpeed = 50.0
		}
		if axis.SecondHomingSpeed == 0 {
			axis.SecondHomingSpeed = axis.HomingSpeed / 2.0
		}
		if axis.HomingRetractDist == 0 {
			axis.HomingRetractDist = 5.0
		}
		cfg.Axes[name] = axis
	}
}
