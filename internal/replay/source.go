package replay

import (
	"fmt"
	"io"
	"os"
	"time"

	"padmotion/internal/imu"
)

// Source replays recorded samples as an imu.Source. Each Read returns the
// next record with a synthetic timestamp that preserves the recorded
// spacing (divided by Speed), so the fusion loop sees the original dt
// without any sleeping here; pacing is the poll loop's job.
type Source struct {
	recs  []Record
	speed float64
	loop  bool

	idx  int
	high time.Duration
	base time.Time
}

// OpenSource loads path and prepares playback. speed <= 0 defaults to 1.
func OpenSource(path string, speed float64, loop bool) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewSource(f, speed, loop)
}

func NewSource(r io.Reader, speed float64, loop bool) (*Source, error) {
	recs, err := NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	var n int
	for _, rec := range recs {
		if !rec.Marker {
			n++
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("replay: no samples in log")
	}
	if speed <= 0 {
		speed = 1
	}
	return &Source{recs: recs, speed: speed, loop: loop, base: time.Now()}, nil
}

// Read returns the next recorded sample, or io.EOF after the last one when
// not looping.
func (s *Source) Read() (imu.Sample, error) {
	for {
		if s.idx >= len(s.recs) {
			if !s.loop {
				return imu.Sample{}, io.EOF
			}
			s.rebase()
			s.idx = 0
		}
		rec := s.recs[s.idx]
		s.idx++
		if rec.Marker {
			// Timestamps after a START restart from zero; advance the
			// base past everything already emitted to keep time
			// monotonic.
			s.rebase()
			continue
		}

		if rec.At > s.high {
			s.high = rec.At
		}
		return imu.Sample{
			At:    s.base.Add(time.Duration(float64(rec.At) / s.speed)),
			Accel: rec.Accel,
			Gyro:  rec.Gyro,
		}, nil
	}
}

func (s *Source) rebase() {
	s.base = s.base.Add(time.Duration(float64(s.high) / s.speed))
	s.high = 0
}

func (s *Source) Close() error {
	return nil
}
