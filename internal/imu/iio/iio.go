// Package iio reads accel/gyro channels from the Linux industrial I/O
// sysfs interface (/sys/bus/iio/devices). This is how handheld and DIY
// controller IMUs usually surface on Linux.
//
// Raw channel values are scaled per the kernel-provided scale attributes:
// anglvel in rad/s and accel in m/s². Read converts both to the pipeline's
// conventions (deg/s, G).
package iio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"padmotion/internal/geom"
	"padmotion/internal/imu"
)

// DefaultRoot is the sysfs mount point for IIO devices.
const DefaultRoot = "/sys/bus/iio/devices"

const gravityMS2 = 9.80665

// Device is an opened IIO device directory with accel and gyro channels.
type Device struct {
	base string

	gyroPaths  [3]string
	accelPaths [3]string
	gyroScale  geom.Vec3
	accelScale geom.Vec3

	now func() time.Time
}

// FindDevice scans root for an iio:device* entry whose name attribute
// matches name (case-insensitive, exact match preferred over substring).
// An empty name returns the first device exposing both accel and gyro
// channels.
func FindDevice(root, name string) (string, error) {
	if root == "" {
		root = DefaultRoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "iio:device") {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)

	want := strings.ToLower(strings.TrimSpace(name))
	var exact, partial, firstIMU string
	for _, d := range dirs {
		dev := filepath.Join(root, d)
		hasGyro := fileExists(filepath.Join(dev, "in_anglvel_x_raw"))
		hasAccel := fileExists(filepath.Join(dev, "in_accel_x_raw"))
		if firstIMU == "" && hasGyro && hasAccel {
			firstIMU = dev
		}
		if want == "" {
			continue
		}
		b, _ := os.ReadFile(filepath.Join(dev, "name"))
		got := strings.ToLower(strings.TrimSpace(string(b)))
		if got == want {
			exact = dev
		} else if partial == "" && strings.Contains(got, want) {
			partial = dev
		}
	}

	switch {
	case exact != "":
		return exact, nil
	case partial != "":
		return partial, nil
	case want == "" && firstIMU != "":
		return firstIMU, nil
	}
	return "", fmt.Errorf("iio: device %q not found under %s", name, root)
}

// Open prepares a device directory for sampling. It fails when either the
// gyro or the accel channel set is missing.
func Open(base string) (*Device, error) {
	d := &Device{base: base, now: time.Now}

	axes := [3]string{"x", "y", "z"}
	for i, ax := range axes {
		d.gyroPaths[i] = filepath.Join(base, "in_anglvel_"+ax+"_raw")
		d.accelPaths[i] = filepath.Join(base, "in_accel_"+ax+"_raw")
	}
	if !fileExists(d.gyroPaths[0]) {
		return nil, fmt.Errorf("iio: %s has no anglvel channels", base)
	}
	if !fileExists(d.accelPaths[0]) {
		return nil, fmt.Errorf("iio: %s has no accel channels", base)
	}

	var err error
	d.gyroScale, err = readScales(base, "in_anglvel")
	if err != nil {
		return nil, err
	}
	d.accelScale, err = readScales(base, "in_accel")
	if err != nil {
		return nil, err
	}
	return d, nil
}

// readScales reads per-axis scale attributes, falling back to the global
// scale attribute when the per-axis ones are absent or zero.
func readScales(base, prefix string) (geom.Vec3, error) {
	sx, okX := readFloatIfExists(filepath.Join(base, prefix+"_x_scale"))
	sy, okY := readFloatIfExists(filepath.Join(base, prefix+"_y_scale"))
	sz, okZ := readFloatIfExists(filepath.Join(base, prefix+"_z_scale"))
	if !okY {
		sy = sx
	}
	if !okZ {
		sz = sx
	}
	if (!okX && !okY && !okZ) || (sx == 0 && sy == 0 && sz == 0) {
		if v, ok := readFloatIfExists(filepath.Join(base, prefix+"_scale")); ok && v != 0 {
			return geom.Vec3{X: v, Y: v, Z: v}, nil
		}
		return geom.Vec3{}, fmt.Errorf("iio: no usable %s scale under %s", prefix, base)
	}
	return geom.Vec3{X: sx, Y: sy, Z: sz}, nil
}

// Read samples all six raw channels and returns them in pipeline units.
func (d *Device) Read() (imu.Sample, error) {
	s := imu.Sample{At: d.now()}

	var g, a geom.Vec3
	var err error
	if g.X, err = readScaled(d.gyroPaths[0], d.gyroScale.X); err != nil {
		return imu.Sample{}, err
	}
	if g.Y, err = readScaled(d.gyroPaths[1], d.gyroScale.Y); err != nil {
		return imu.Sample{}, err
	}
	if g.Z, err = readScaled(d.gyroPaths[2], d.gyroScale.Z); err != nil {
		return imu.Sample{}, err
	}
	if a.X, err = readScaled(d.accelPaths[0], d.accelScale.X); err != nil {
		return imu.Sample{}, err
	}
	if a.Y, err = readScaled(d.accelPaths[1], d.accelScale.Y); err != nil {
		return imu.Sample{}, err
	}
	if a.Z, err = readScaled(d.accelPaths[2], d.accelScale.Z); err != nil {
		return imu.Sample{}, err
	}

	// Kernel units: rad/s and m/s². The fusion core wants deg/s and G.
	s.Gyro = g.Scale(180 / math.Pi)
	s.Accel = a.DivScalar(gravityMS2)
	return s, nil
}

func (d *Device) Close() error {
	return nil
}

func readScaled(path string, scale float64) (float64, error) {
	raw, err := readInt(path)
	if err != nil {
		return 0, err
	}
	return float64(raw) * scale, nil
}

func readInt(path string) (int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, fmt.Errorf("iio: empty attribute %s", path)
	}
	v, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("iio: parse %s: %w", path, err)
	}
	return v, nil
}

func readFloatIfExists(path string) (float64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
