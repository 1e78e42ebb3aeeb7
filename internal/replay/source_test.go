package replay

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

const sourceLog = `START
0,0,-1,0,0,0,0
10000000,0,-1,0,0,90,0
20000000,0.1,-0.99,0,0,90,0
`

func TestSource_PreservesSpacing(t *testing.T) {
	src, err := NewSource(strings.NewReader(sourceLog), 1, false)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	s0, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	s1, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	s2, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if dt := s1.At.Sub(s0.At); dt != 10*time.Millisecond {
		t.Fatalf("dt0=%v want 10ms", dt)
	}
	if dt := s2.At.Sub(s1.At); dt != 10*time.Millisecond {
		t.Fatalf("dt1=%v want 10ms", dt)
	}
	if s1.Gyro.Y != 90 {
		t.Fatalf("gyro.Y=%v want 90", s1.Gyro.Y)
	}

	if _, err := src.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want io.EOF", err)
	}
}

func TestSource_SpeedDividesSpacing(t *testing.T) {
	src, err := NewSource(strings.NewReader(sourceLog), 2, false)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	s0, _ := src.Read()
	s1, _ := src.Read()
	if dt := s1.At.Sub(s0.At); dt != 5*time.Millisecond {
		t.Fatalf("dt=%v want 5ms at 2x", dt)
	}
}

func TestSource_LoopRestartsMonotonically(t *testing.T) {
	src, err := NewSource(strings.NewReader(sourceLog), 1, true)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	var prev time.Time
	for i := 0; i < 10; i++ {
		s, err := src.Read()
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if i > 0 && s.At.Before(prev) {
			t.Fatalf("timestamp went backwards at read %d: %v < %v", i, s.At, prev)
		}
		prev = s.At
	}
}

func TestSource_MidLogStartResetsOrigin(t *testing.T) {
	log := `START
0,0,-1,0,0,0,0
10000000,0,-1,0,0,0,0
START
0,0,-1,0,0,0,0
5000000,0,-1,0,0,0,0
`
	src, err := NewSource(strings.NewReader(log), 1, false)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	var times []time.Time
	for {
		s, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		times = append(times, s.At)
	}
	if len(times) != 4 {
		t.Fatalf("got %d samples, want 4", len(times))
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			t.Fatalf("timestamp went backwards at sample %d", i)
		}
	}
	// Spacing within the second segment is preserved.
	if dt := times[3].Sub(times[2]); dt != 5*time.Millisecond {
		t.Fatalf("segment dt=%v want 5ms", dt)
	}
}

func TestSource_RejectsEmptyLog(t *testing.T) {
	if _, err := NewSource(strings.NewReader("START\n# nothing\n"), 1, false); err == nil {
		t.Fatalf("expected error for log with no samples")
	}
}
