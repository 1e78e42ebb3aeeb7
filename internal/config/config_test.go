package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "{}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source.Kind != "sim" {
		t.Fatalf("kind=%q want sim", cfg.Source.Kind)
	}
	if cfg.Source.Poll != 10*time.Millisecond {
		t.Fatalf("poll=%s want 10ms", cfg.Source.Poll)
	}
	if cfg.Source.Sim.Profile != "rest" || cfg.Source.Sim.Period != 4*time.Second {
		t.Fatalf("expected sim defaults, got %+v", cfg.Source.Sim)
	}
}

func TestLoad_RejectsUnknownKind(t *testing.T) {
	path := writeTempConfig(t, "source:\n  kind: magnetometer\n")
	_, err := Load(path)
	requireErrEq(t, err, `source.kind must be one of sim, replay, iio, i2c, got "magnetometer"`)
}

func TestLoad_ReplayRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "source:\n  kind: replay\n")
	_, err := Load(path)
	requireErrEq(t, err, "source.replay.path is required when source.kind is replay")
}

func TestLoad_ReplaySpeedDefaultsToOne(t *testing.T) {
	path := writeTempConfig(t, "source:\n  kind: replay\n  replay:\n    path: './x.imulog'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source.Replay.Speed != 1 {
		t.Fatalf("speed=%v want 1", cfg.Source.Replay.Speed)
	}
}

func TestLoad_ReplayNegativeSpeedRejected(t *testing.T) {
	path := writeTempConfig(t, "source:\n  kind: replay\n  replay:\n    path: './x.imulog'\n    speed: -1\n")
	_, err := Load(path)
	requireErrEq(t, err, "source.replay.speed must be > 0")
}

func TestLoad_I2CDefaults(t *testing.T) {
	path := writeTempConfig(t, "source:\n  kind: i2c\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source.I2C.Bus != "/dev/i2c-1" {
		t.Fatalf("bus=%q want /dev/i2c-1", cfg.Source.I2C.Bus)
	}
	if cfg.Source.I2C.Addr != 0x68 {
		t.Fatalf("addr=%#x want 0x68", cfg.Source.I2C.Addr)
	}
}

func TestLoad_MountRowLengthValidated(t *testing.T) {
	path := writeTempConfig(t, "source:\n  mount:\n    x: [1, 0]\n")
	_, err := Load(path)
	requireErrEq(t, err, "source.mount rows must have 3 components, got 2")
}

func TestLoad_MotionBoundsValidated(t *testing.T) {
	path := writeTempConfig(t, "motion:\n  accel_correction: 1.5\n")
	_, err := Load(path)
	requireErrEq(t, err, "motion.accel_correction must be in [0, 1]")

	path = writeTempConfig(t, "motion:\n  max_bias_samples: -1\n")
	_, err = Load(path)
	requireErrEq(t, err, "motion.max_bias_samples must be >= 0")
}

func TestLoad_ReportRequiresDest(t *testing.T) {
	path := writeTempConfig(t, "report:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "report.dest is required when report.enable is true")
}

func TestLoad_ReportIntervalDefault(t *testing.T) {
	path := writeTempConfig(t, "report:\n  enable: true\n  dest: '127.0.0.1:4242'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Report.Interval != 20*time.Millisecond {
		t.Fatalf("interval=%s want 20ms", cfg.Report.Interval)
	}
}

func TestLoad_RecordRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "record:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "record.path is required when record.enable is true")
}

func TestLoad_RecordDisallowedDuringReplay(t *testing.T) {
	body := "source:\n  kind: replay\n  replay:\n    path: './x.imulog'\nrecord:\n  enable: true\n  path: './y.imulog'\n"
	path := writeTempConfig(t, body)
	_, err := Load(path)
	requireErrEq(t, err, "record cannot be used with source.kind=replay")
}

func TestLoad_WebListenDefault(t *testing.T) {
	path := writeTempConfig(t, "web:\n  enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("listen=%q want :8080", cfg.Web.Listen)
	}
}
