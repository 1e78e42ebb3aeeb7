// Package bmi160 drives the Bosch BMI160, the 6-axis IMU found in a lot of
// gamepad and handheld designs.
//
// Scope is deliberately small: probe, power-up, range configuration and
// burst reads of the gyro+accel data block. Units on the way out match the
// fusion pipeline: accel in G, gyro in deg/s.
package bmi160

import (
	"fmt"
	"time"

	"padmotion/internal/geom"
	"padmotion/internal/i2c"
	"padmotion/internal/imu"
)

var sleep = time.Sleep

const (
	addrDefault = 0x68 // 0x69 when SDO is pulled high

	regChipID = 0x00
	chipIDVal = 0xD1

	regErr       = 0x02
	regPMUStatus = 0x03
	regStatus    = 0x1B

	// Data block: gyro X..Z then accel X..Z, LSB first.
	regDataGyroX = 0x0C

	regAccConf  = 0x40
	regAccRange = 0x41
	regGyrConf  = 0x42
	regGyrRange = 0x43

	regCmd       = 0x7E
	cmdSoftReset = 0xB6
	cmdAccNormal = 0x11
	cmdGyrNormal = 0x15

	// 200 Hz ODR with the normal-mode bandwidth setting.
	confODR200Hz = 0x29

	accRange4G     = 0x05
	gyrRange2000dps = 0x00
)

// Sample is one scaled reading.
type Sample struct {
	Time time.Time
	// Accel in G.
	Ax, Ay, Az float64
	// Gyro in deg/s.
	Gx, Gy, Gz float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

type Device struct {
	dev regIO

	scaleAccel float64
	scaleGyro  float64

	now func() time.Time
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bmi160: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bmi160: dev is nil")
	}
	d := &Device{dev: dev, now: time.Now}

	id, err := d.dev.ReadRegU8(regChipID)
	if err != nil {
		return nil, fmt.Errorf("bmi160: chip id read failed: %w", err)
	}
	if id != chipIDVal {
		return nil, fmt.Errorf("bmi160: chip id=0x%02X want 0x%02X", id, chipIDVal)
	}

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	if err := d.dev.WriteReg(regCmd, cmdSoftReset); err != nil {
		return fmt.Errorf("bmi160: soft reset failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	// The part boots in suspend; bring both sensors to normal mode. The
	// gyro PLL needs up to 80 ms.
	if err := d.dev.WriteReg(regCmd, cmdAccNormal); err != nil {
		return fmt.Errorf("bmi160: accel power-up failed: %w", err)
	}
	sleep(10 * time.Millisecond)
	if err := d.dev.WriteReg(regCmd, cmdGyrNormal); err != nil {
		return fmt.Errorf("bmi160: gyro power-up failed: %w", err)
	}
	sleep(100 * time.Millisecond)

	if err := d.verifyPowerModes(); err != nil {
		return err
	}

	_ = d.dev.WriteReg(regAccConf, confODR200Hz)
	_ = d.dev.WriteReg(regGyrConf, confODR200Hz)
	if err := d.dev.WriteReg(regAccRange, accRange4G); err != nil {
		return fmt.Errorf("bmi160: accel range config failed: %w", err)
	}
	if err := d.dev.WriteReg(regGyrRange, gyrRange2000dps); err != nil {
		return fmt.Errorf("bmi160: gyro range config failed: %w", err)
	}

	d.scaleAccel = 4.0 / 32768.0
	d.scaleGyro = 2000.0 / 32768.0
	return nil
}

func (d *Device) verifyPowerModes() error {
	pmu, err := d.dev.ReadRegU8(regPMUStatus)
	if err != nil {
		return fmt.Errorf("bmi160: pmu status read failed: %w", err)
	}
	accMode := (pmu >> 4) & 0x3
	gyrMode := (pmu >> 2) & 0x3
	if accMode != 1 || gyrMode != 1 {
		return fmt.Errorf("bmi160: sensors not in normal mode (pmu=0x%02X)", pmu)
	}
	return nil
}

// Read burst-reads the 12-byte gyro+accel block. BMI160 data registers are
// little-endian, low byte first.
func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("bmi160: device is nil")
	}

	var buf [12]byte
	if err := d.dev.ReadReg(regDataGyroX, buf[:]); err != nil {
		return Sample{}, fmt.Errorf("bmi160: read data block failed: %w", err)
	}

	gx := int16(buf[0]) | int16(buf[1])<<8
	gy := int16(buf[2]) | int16(buf[3])<<8
	gz := int16(buf[4]) | int16(buf[5])<<8
	ax := int16(buf[6]) | int16(buf[7])<<8
	ay := int16(buf[8]) | int16(buf[9])<<8
	az := int16(buf[10]) | int16(buf[11])<<8

	return Sample{
		Time: d.now(),
		Ax:   float64(ax) * d.scaleAccel,
		Ay:   float64(ay) * d.scaleAccel,
		Az:   float64(az) * d.scaleAccel,
		Gx:   float64(gx) * d.scaleGyro,
		Gy:   float64(gy) * d.scaleGyro,
		Gz:   float64(gz) * d.scaleGyro,
	}, nil
}

// Source adapts the device to the imu.Source interface.
type Source struct {
	dev *Device
	bus *i2c.Bus
}

// OpenSource opens busPath, probes addr (DefaultAddress when 0) and wraps
// the device as an imu.Source that owns the bus handle.
func OpenSource(busPath string, addr uint16) (*Source, error) {
	if addr == 0 {
		addr = DefaultAddress()
	}
	bus, err := i2c.Open(busPath)
	if err != nil {
		return nil, fmt.Errorf("bmi160: open %s: %w", busPath, err)
	}
	dev, err := New(bus.Dev(addr))
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return &Source{dev: dev, bus: bus}, nil
}

func (s *Source) Read() (imu.Sample, error) {
	raw, err := s.dev.Read()
	if err != nil {
		return imu.Sample{}, err
	}
	return imu.Sample{
		At:    raw.Time,
		Accel: geom.Vec3{X: raw.Ax, Y: raw.Ay, Z: raw.Az},
		Gyro:  geom.Vec3{X: raw.Gx, Y: raw.Gy, Z: raw.Gz},
	}, nil
}

func (s *Source) Close() error {
	return s.bus.Close()
}
