package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Source Source `yaml:"source"`
	Motion Motion `yaml:"motion"`
	Report Report `yaml:"report"`
	Record Record `yaml:"record"`
	Web    Web    `yaml:"web"`
}

type Source struct {
	Kind   string        `yaml:"kind"`
	Poll   time.Duration `yaml:"poll"`
	Sim    Sim           `yaml:"sim"`
	Replay Replay        `yaml:"replay"`
	IIO    IIO           `yaml:"iio"`
	I2C    I2C           `yaml:"i2c"`
	Mount  Mount         `yaml:"mount"`
}

type Sim struct {
	Profile     string        `yaml:"profile"`
	Period      time.Duration `yaml:"period"`
	SpinRateDPS float64       `yaml:"spin_rate_dps"`
	WobbleDeg   float64       `yaml:"wobble_deg"`
	ShakeG      float64       `yaml:"shake_g"`
}

type Replay struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type IIO struct {
	Root   string `yaml:"root"`
	Device string `yaml:"device"`
}

type I2C struct {
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
}

// Mount remaps sensor axes to the device frame. Each row is the device
// axis expressed in sensor coordinates; empty rows mean identity.
type Mount struct {
	X []float64 `yaml:"x"`
	Y []float64 `yaml:"y"`
	Z []float64 `yaml:"z"`
}

type Motion struct {
	AccelCorrection  float64 `yaml:"accel_correction"`
	MaxBiasSamples   int     `yaml:"max_bias_samples"`
	GyroThresholdDPS float64 `yaml:"gyro_threshold_dps"`
	AccelThresholdG  float64 `yaml:"accel_threshold_g"`
}

type Report struct {
	Enable   bool          `yaml:"enable"`
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

type Record struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type Web struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	switch cfg.Source.Kind {
	case "":
		cfg.Source.Kind = "sim"
	case "sim", "replay", "iio", "i2c":
	default:
		return Config{}, fmt.Errorf("source.kind must be one of sim, replay, iio, i2c, got %q", cfg.Source.Kind)
	}
	if cfg.Source.Poll <= 0 {
		cfg.Source.Poll = 10 * time.Millisecond
	}

	if cfg.Source.Kind == "sim" {
		if cfg.Source.Sim.Profile == "" {
			cfg.Source.Sim.Profile = "rest"
		}
		if cfg.Source.Sim.Period <= 0 {
			cfg.Source.Sim.Period = 4 * time.Second
		}
	}

	if cfg.Source.Kind == "replay" {
		if cfg.Source.Replay.Path == "" {
			return Config{}, fmt.Errorf("source.replay.path is required when source.kind is replay")
		}
		if cfg.Source.Replay.Speed == 0 {
			cfg.Source.Replay.Speed = 1
		}
		if cfg.Source.Replay.Speed < 0 {
			return Config{}, fmt.Errorf("source.replay.speed must be > 0")
		}
	}

	if cfg.Source.Kind == "i2c" {
		if cfg.Source.I2C.Bus == "" {
			cfg.Source.I2C.Bus = "/dev/i2c-1"
		}
		if cfg.Source.I2C.Addr == 0 {
			cfg.Source.I2C.Addr = 0x68
		}
	}

	for _, row := range [][]float64{cfg.Source.Mount.X, cfg.Source.Mount.Y, cfg.Source.Mount.Z} {
		if len(row) != 0 && len(row) != 3 {
			return Config{}, fmt.Errorf("source.mount rows must have 3 components, got %d", len(row))
		}
	}

	// Tracker defaults (zero means default, negative disables gating).
	if cfg.Motion.AccelCorrection < 0 || cfg.Motion.AccelCorrection > 1 {
		return Config{}, fmt.Errorf("motion.accel_correction must be in [0, 1]")
	}
	if cfg.Motion.MaxBiasSamples < 0 {
		return Config{}, fmt.Errorf("motion.max_bias_samples must be >= 0")
	}

	if cfg.Report.Enable {
		if cfg.Report.Dest == "" {
			return Config{}, fmt.Errorf("report.dest is required when report.enable is true")
		}
		if cfg.Report.Interval <= 0 {
			cfg.Report.Interval = 20 * time.Millisecond
		}
	}

	if cfg.Record.Enable {
		if cfg.Record.Path == "" {
			return Config{}, fmt.Errorf("record.path is required when record.enable is true")
		}
		if cfg.Source.Kind == "replay" {
			return Config{}, fmt.Errorf("record cannot be used with source.kind=replay")
		}
	}

	if cfg.Web.Enable && cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	return cfg, nil
}
