// Package replay records raw IMU sample streams to a line-oriented log and
// plays them back with their original timing, so a captured motion session
// can be re-fused deterministically.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"padmotion/internal/geom"
	"padmotion/internal/imu"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,ax,ay,az,gx,gy,gz
//   where t_ns is nanoseconds since START and the six fields are the raw
//   accel (G) and gyro (deg/s) components.

// Record is one parsed log line. A START marker has Marker set and no
// sample payload.
type Record struct {
	At     time.Duration
	Marker bool
	Accel  geom.Vec3
	Gyro   geom.Vec3
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Marker: true})
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 7 {
			return nil, fmt.Errorf("invalid replay line (want 7 fields, got %d): %q", len(fields), line)
		}

		tsNs, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay timestamp %q: %w", fields[0], err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
		}

		var vals [6]float64
		for i := 0; i < 6; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid replay field %q: %w", fields[i+1], err)
			}
			vals[i] = v
		}

		recs = append(recs, Record{
			At:    time.Duration(tsNs) * time.Nanosecond,
			Accel: geom.Vec3{X: vals[0], Y: vals[1], Z: vals[2]},
			Gyro:  geom.Vec3{X: vals[3], Y: vals[4], Z: vals[5]},
		})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

// WriteSample appends one raw sample, timed relative to the writer's
// creation. The monotonic component of the timestamp is used when present.
func (ww *Writer) WriteSample(s imu.Sample) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}

	d := s.At.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%g,%g,%g,%g,%g,%g\n",
		d.Nanoseconds(),
		s.Accel.X, s.Accel.Y, s.Accel.Z,
		s.Gyro.X, s.Gyro.Y, s.Gyro.Z)
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
