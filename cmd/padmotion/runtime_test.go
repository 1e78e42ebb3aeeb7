package main

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"padmotion/internal/config"
	"padmotion/internal/geom"
	"padmotion/internal/imu"
	"padmotion/internal/motion"
	"padmotion/internal/web"
)

type stubSource struct {
	samples []imu.Sample
	idx     int
	closed  bool
}

func (s *stubSource) Read() (imu.Sample, error) {
	if s.idx >= len(s.samples) {
		return imu.Sample{}, io.EOF
	}
	out := s.samples[s.idx]
	s.idx++
	return out, nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func newTestRuntime(src imu.Source) *runtime {
	return &runtime{
		cfg:         config.Config{Source: config.Source{Kind: "sim", Poll: time.Millisecond}},
		src:         src,
		tracker:     motion.NewTracker(motion.DefaultTunables()),
		status:      web.NewStatus(),
		broadcaster: web.NewMotionBroadcaster(),
		methods:     web.NewRegistry(),
	}
}

func TestStep_AdvancesTickAndPublishes(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &stubSource{samples: []imu.Sample{
		{At: base, Accel: geom.Vec3{Y: -1}},
		{At: base.Add(10 * time.Millisecond), Accel: geom.Vec3{Y: -1}},
	}}
	rt := newTestRuntime(src)

	id, ch := rt.broadcaster.Subscribe(4)
	defer rt.broadcaster.Unsubscribe(id)

	if err := rt.step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := rt.step(); err != nil {
		t.Fatalf("step: %v", err)
	}

	snap := <-ch
	if snap.Tick != 1 {
		t.Fatalf("tick=%d want 1", snap.Tick)
	}
	snap = <-ch
	if snap.Tick != 2 {
		t.Fatalf("tick=%d want 2", snap.Tick)
	}
	// At rest the gravity estimate stays on the resting direction.
	if math.Abs(snap.Gravity[1]+1) > 1e-9 {
		t.Fatalf("gravity=%v want (0,-1,0)", snap.Gravity)
	}

	status := rt.status.Snapshot(time.Now().UTC())
	if status.TicksTotal != 2 {
		t.Fatalf("status ticks=%d want 2", status.TicksTotal)
	}
	if len(rt.frame) == 0 {
		t.Fatalf("expected encoded report frame after step")
	}
}

func TestStep_PropagatesEOF(t *testing.T) {
	rt := newTestRuntime(&stubSource{})
	if err := rt.step(); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want io.EOF", err)
	}
}

func TestStep_ClampsLargeGaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &stubSource{samples: []imu.Sample{
		{At: base, Accel: geom.Vec3{Y: -1}},
		// A 10s stall with a fast spin reported; unclamped this would
		// integrate multiple turns. Clamped to maxDT it stays well under
		// half a turn.
		{At: base.Add(10 * time.Second), Accel: geom.Vec3{Y: -1}, Gyro: geom.Vec3{Y: 90}},
	}}
	rt := newTestRuntime(src)

	if err := rt.step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := rt.step(); err != nil {
		t.Fatalf("step: %v", err)
	}

	total := rt.tracker.TotalRotation()
	angle := 2 * math.Acos(math.Min(1, math.Abs(total.W))) * 180 / math.Pi
	if angle > 90*maxDT+1 {
		t.Fatalf("integrated angle=%v deg, want <= %v", angle, 90*maxDT+1)
	}
}

func TestBuildSource_SimAndUnknown(t *testing.T) {
	src, err := buildSource(config.Source{Kind: "sim", Sim: config.Sim{Profile: "rest"}})
	if err != nil {
		t.Fatalf("buildSource(sim): %v", err)
	}
	defer src.Close()

	if _, err := buildSource(config.Source{Kind: "telepathy"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestMountFromConfig(t *testing.T) {
	if _, ok := mountFromConfig(config.Mount{}); ok {
		t.Fatalf("empty mount should mean no remap")
	}

	m, ok := mountFromConfig(config.Mount{X: []float64{0, 0, 1}})
	if !ok {
		t.Fatalf("expected remap")
	}
	// X row remapped, others identity.
	got := m.Apply(geom.Vec3{Z: 2})
	if got != (geom.Vec3{X: 2, Z: 2}) {
		t.Fatalf("Apply=%v", got)
	}
}

func TestTunablesFromConfig(t *testing.T) {
	def := motion.DefaultTunables()
	tun := tunablesFromConfig(config.Motion{})
	if tun != def {
		t.Fatalf("zero config should keep defaults: %+v", tun)
	}

	tun = tunablesFromConfig(config.Motion{AccelCorrection: 0.2, MaxBiasSamples: 64})
	if tun.AccelCorrection != 0.2 || tun.MaxBiasSamples != 64 {
		t.Fatalf("overrides not applied: %+v", tun)
	}
	if tun.GyroMotionThreshold != def.GyroMotionThreshold {
		t.Fatalf("unset fields should keep defaults")
	}
}

func TestRegistryMethods(t *testing.T) {
	rt := newTestRuntime(&stubSource{})
	if err := rt.registerMethods(); err != nil {
		t.Fatalf("registerMethods: %v", err)
	}

	names := rt.methods.Names()
	want := []string{"tracker.bias", "tracker.reset", "tracker.tunables"}
	if len(names) != len(want) {
		t.Fatalf("names=%v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names=%v want %v", names, want)
		}
	}

	out, err := rt.methods.Call(context.Background(), "tracker.reset", nil)
	if err != nil {
		t.Fatalf("call tracker.reset: %v", err)
	}
	if m, ok := out.(map[string]string); !ok || m["state"] != "reset" {
		t.Fatalf("out=%v", out)
	}

	out, err = rt.methods.Call(context.Background(), "tracker.bias", nil)
	if err != nil {
		t.Fatalf("call tracker.bias: %v", err)
	}
	if m, ok := out.(map[string]any); !ok || m["gyro_samples"] != 0 {
		t.Fatalf("out=%v", out)
	}
}
