// Package report defines the input-report container that carries the fused
// motion values to consumers (remap layers, UIs), plus its wire encoding
// for UDP transport.
//
// The encoding is a fixed-size little-endian frame with float32 fields,
// matching what controller-side consumers expect.
package report

import (
	"encoding/binary"
	"fmt"
	"math"

	"padmotion/internal/geom"
)

// Frame layout:
//
//	0-3   magic "PADM"
//	4     version (1)
//	5-8   tick (LE uint32)
//	9-16  timestamp µs (LE uint64)
//	17-28 filtered accel x,y,z (LE float32 each)
//	29-40 gravity x,y,z
//	41-56 delta rotation x,y,z,w
//	57-72 total rotation x,y,z,w
const (
	EncodedSize = 73
	version     = 1
)

var magic = [4]byte{'P', 'A', 'D', 'M'}

// Motion is one tick's worth of fused outputs.
type Motion struct {
	Tick        uint32
	TimestampUS uint64

	// Accel is the gravity-compensated acceleration in G, sensor frame.
	Accel geom.Vec3
	// Gravity is the unit gravity-direction estimate (debug consumers).
	Gravity geom.Vec3

	Delta geom.Quat
	Total geom.Quat
}

// AppendBinary appends the encoded frame to dst and returns the result.
func (m Motion) AppendBinary(dst []byte) []byte {
	dst = append(dst, magic[:]...)
	dst = append(dst, version)
	dst = binary.LittleEndian.AppendUint32(dst, m.Tick)
	dst = binary.LittleEndian.AppendUint64(dst, m.TimestampUS)
	dst = appendVec(dst, m.Accel)
	dst = appendVec(dst, m.Gravity)
	dst = appendQuat(dst, m.Delta)
	dst = appendQuat(dst, m.Total)
	return dst
}

// Encode returns the frame as a fresh slice.
func (m Motion) Encode() []byte {
	return m.AppendBinary(make([]byte, 0, EncodedSize))
}

// Decode parses a frame produced by Encode/AppendBinary.
func Decode(b []byte) (Motion, error) {
	if len(b) < EncodedSize {
		return Motion{}, fmt.Errorf("report: frame too short: %d bytes", len(b))
	}
	if [4]byte(b[0:4]) != magic {
		return Motion{}, fmt.Errorf("report: bad magic %q", b[0:4])
	}
	if b[4] != version {
		return Motion{}, fmt.Errorf("report: unsupported version %d", b[4])
	}

	var m Motion
	m.Tick = binary.LittleEndian.Uint32(b[5:9])
	m.TimestampUS = binary.LittleEndian.Uint64(b[9:17])
	m.Accel = decodeVec(b[17:29])
	m.Gravity = decodeVec(b[29:41])
	m.Delta = decodeQuat(b[41:57])
	m.Total = decodeQuat(b[57:73])
	return m, nil
}

func appendVec(dst []byte, v geom.Vec3) []byte {
	dst = appendF32(dst, v.X)
	dst = appendF32(dst, v.Y)
	dst = appendF32(dst, v.Z)
	return dst
}

func appendQuat(dst []byte, q geom.Quat) []byte {
	dst = appendF32(dst, q.X)
	dst = appendF32(dst, q.Y)
	dst = appendF32(dst, q.Z)
	dst = appendF32(dst, q.W)
	return dst
}

func appendF32(dst []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(f)))
}

func decodeVec(b []byte) geom.Vec3 {
	return geom.Vec3{
		X: f32At(b, 0),
		Y: f32At(b, 4),
		Z: f32At(b, 8),
	}
}

func decodeQuat(b []byte) geom.Quat {
	return geom.Quat{
		X: f32At(b, 0),
		Y: f32At(b, 4),
		Z: f32At(b, 8),
		W: f32At(b, 12),
	}
}

func f32At(b []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4])))
}
