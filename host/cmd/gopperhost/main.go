// Command gopperhost runs the full motion-planning pipeline: load
// config, connect to the MCU, retrieve its dictionary, wire up
// kinematics/toolhead/extruder, then read G-code from stdin (or a file)
// and execute it. This is the spec.md scope's entry point; the
// dictionary-retrieval REPL in cmd/gopper-host remains a separate,
// untouched diagnostic tool.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	hostcfg "gopper/host/config"
	"gopper/host/endstop"
	"gopper/host/extruder"
	"gopper/host/gcode"
	"gopper/host/homing"
	"gopper/host/kinematics"
	"gopper/host/mcu"
	"gopper/host/reactor"
	"gopper/host/stepper"
	"gopper/host/telemetry"
	"gopper/host/toolhead"
)

var (
	configPath = flag.String("config", "printer.toml", "Path to printer TOML config")
	gcodePath  = flag.String("gcode", "", "G-code file to run (default: read stdin interactively)")
)

func main() {
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("gopperhost exited with error", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := hostcfg.Load(*configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	mcuConn := mcu.NewMCU()
	if err := mcuConn.Connect(cfg.Serial); err != nil {
		return errors.Wrap(err, "connect to mcu")
	}
	defer mcuConn.Close()

	if err := mcuConn.RetrieveDictionary(); err != nil {
		return errors.Wrap(err, "retrieve dictionary")
	}
	mcuConn.InitMotionClock(12_000_000) // fixed 12 MHz; the dictionary's clock_freq config key is not read

	rx := reactor.New()
	go rx.Run()
	defer rx.Stop()

	steppers := map[string]*stepper.Axis{}
	for name, axCfg := range cfg.Axes {
		steppers[name] = stepper.NewAxis(name, mcuConn, stepper.Config{
			StepDistance: 1.0 / axCfg.StepsPerMM,
			ClockFreq:    12_000_000,
			InvertDir:    axCfg.InvertDir,
		})
	}

	axisCfgs := [3]kinematics.AxisConfig{}
	stepperArr := [3]kinematics.Stepper{}
	for i, name := range []string{"x", "y", "z"} {
		ac, ok := cfg.Axes[name]
		if !ok {
			return errors.Errorf("axis %q missing from config", name)
		}
		axisCfgs[i] = kinematics.AxisConfig{
			MinPosition:       ac.MinPosition,
			MaxPosition:       ac.MaxPosition,
			PositionEndstop:   ac.PositionEndstop,
			HomingSpeed:       ac.HomingSpeed,
			HomingRetractDist: ac.HomingRetractDist,
			HomingPositiveDir: ac.HomingPositiveDir,
			SecondHomingSpeed: ac.SecondHomingSpeed,
		}
		stepperArr[i] = steppers[name]
	}

	endstopArr := [3]*endstop.Endstop{}
	endstops := map[int]*endstop.Endstop{}
	for i, name := range []string{"x", "y", "z"} {
		ac := cfg.Axes[name]
		es := endstop.New(mcuConn, endstop.Config{
			SampleTicks: 3000,
			SampleCount: 4,
			RestTicks:   12000,
			PinValue:    1,
		})
		if ac.EndstopPin != "" {
			if err := es.ConfigureEndstop(); err != nil {
				return errors.Wrapf(err, "configure endstop %s", name)
			}
		}
		endstopArr[i] = es
		endstops[i] = es
	}

	var kin kinematics.Kinematics
	switch cfg.Kinematics {
	case "corexy":
		kin = kinematics.NewCoreXY(stepperArr, endstopArr, axisCfgs, cfg.MaxZVelocity, cfg.MaxZAccel)
	default:
		kin = kinematics.NewCartesian(stepperArr, endstopArr, axisCfgs, cfg.MaxZVelocity, cfg.MaxZAccel)
	}

	th := toolhead.New(log, toolhead.Config{
		MaxVelocity:       cfg.MaxVelocity,
		MaxAccel:          cfg.MaxAccel,
		MaxAccelToDecel:   cfg.MaxAccelToDecel,
		JunctionDeviation: cfg.JunctionDeviation,
		BufferTimeLow:     cfg.BufferTimeLow,
		BufferTimeHigh:    cfg.BufferTimeHigh,
		BufferTimeStart:   cfg.BufferTimeStart,
		MoveFlushTime:     cfg.MoveFlushTime,
		MotorOffTime:      cfg.MotorOffTime,
	}, kin, mcuConn, rx)

	if cfg.Extruder.StepsPerMM > 0 {
		extAxis := stepper.NewAxis("extruder", mcuConn, stepper.Config{
			StepDistance: 1.0 / cfg.Extruder.StepsPerMM,
			ClockFreq:    12_000_000,
		})
		ext := extruder.NewLinear("extruder", extAxis, extruder.Config{
			MaxExtrudeOnlyVelocity: cfg.Extruder.MaxExtrudeOnlyVelocity,
			MaxExtrudeOnlyAccel:    cfg.Extruder.MaxExtrudeOnlyAccel,
			InstantaneousCornerV:   cfg.Extruder.InstantaneousCornerV,
			StepDistance:           1.0 / cfg.Extruder.StepsPerMM,
		})
		if err := th.SetExtruder(ext); err != nil {
			return errors.Wrap(err, "set extruder")
		}
	}

	homer := homing.New(th, endstops)

	if cfg.Telemetry.Enabled {
		telem, err := telemetry.Connect(log, telemetry.Config{
			Broker:    cfg.Telemetry.Broker,
			ClientID:  cfg.Telemetry.ClientID,
			TopicBase: cfg.Telemetry.TopicBase,
		})
		if err != nil {
			log.Warn("telemetry disabled: connect failed", zap.Error(err))
		} else {
			defer telem.Close()
		}
	}

	parser := gcode.NewParser()
	interp := gcode.NewInterpreter(th, func(axis int) error {
		return th.Home(axis, homer)
	}, func(s string) { fmt.Println(s) })

	src := os.Stdin
	if *gcodePath != "" {
		f, err := os.Open(*gcodePath)
		if err != nil {
			return errors.Wrap(err, "open gcode file")
		}
		defer f.Close()
		src = f
	}

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := scanner.Text()
		cmd, err := parser.ParseLine(line)
		if err != nil {
			log.Warn("parse error", zap.String("line", line), zap.Error(err))
			continue
		}
		if err := interp.Execute(cmd); err != nil {
			log.Error("command failed", zap.String("line", line), zap.Error(err))
		}
	}
	return scanner.Err()
}
