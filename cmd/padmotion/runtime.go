package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"padmotion/internal/config"
	"padmotion/internal/geom"
	"padmotion/internal/imu"
	"padmotion/internal/imu/iio"
	"padmotion/internal/imu/sim"
	"padmotion/internal/motion"
	"padmotion/internal/replay"
	"padmotion/internal/report"
	"padmotion/internal/sensors/bmi160"
	"padmotion/internal/udp"
	"padmotion/internal/web"
)

// maxDT caps the step fed to the fusion core so a stalled source or a
// suspended process does not integrate one huge rotation on resume.
const maxDT = 0.5

type runtime struct {
	cfg config.Config

	src      imu.Source
	recorder *replay.Writer
	sender   *udp.Broadcaster

	status      *web.Status
	broadcaster *web.MotionBroadcaster
	methods     *web.Registry

	// mu guards the tracker and the tick/timestamp state; the poll loop
	// and the web call handlers both reach them.
	mu      sync.Mutex
	tracker *motion.Tracker
	tick    uint64
	lastAt  time.Time
	haveAt  bool
	frame   []byte
}

func newRuntime(cfg config.Config) (*runtime, error) {
	src, err := buildSource(cfg.Source)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:         cfg,
		src:         src,
		tracker:     motion.NewTracker(tunablesFromConfig(cfg.Motion)),
		status:      web.NewStatus(),
		broadcaster: web.NewMotionBroadcaster(),
		methods:     web.NewRegistry(),
	}
	rt.status.SetStatic(cfg.Source.Kind, cfg.Source.Poll.String(), cfg.Report.Dest)

	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("open recorder: %w", err)
		}
		rt.recorder = w
	}

	if cfg.Report.Enable {
		sender, err := udp.NewBroadcaster(cfg.Report.Dest)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("report sender init: %w", err)
		}
		rt.sender = sender
	}

	if err := rt.registerMethods(); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func buildSource(sc config.Source) (imu.Source, error) {
	var (
		src imu.Source
		err error
	)
	switch sc.Kind {
	case "sim":
		src, err = sim.New(sim.Config{
			Profile:      sc.Sim.Profile,
			SpinRateDPS:  sc.Sim.SpinRateDPS,
			WobbleAmpDeg: sc.Sim.WobbleDeg,
			ShakeAmpG:    sc.Sim.ShakeG,
			Period:       sc.Sim.Period,
		})
	case "replay":
		src, err = replay.OpenSource(sc.Replay.Path, sc.Replay.Speed, sc.Replay.Loop)
	case "iio":
		root := sc.IIO.Root
		if root == "" {
			root = iio.DefaultRoot
		}
		var base string
		base, err = iio.FindDevice(root, sc.IIO.Device)
		if err == nil {
			src, err = iio.Open(base)
		}
	case "i2c":
		src, err = bmi160.OpenSource(sc.I2C.Bus, sc.I2C.Addr)
	default:
		err = fmt.Errorf("unknown source kind %q", sc.Kind)
	}
	if err != nil {
		return nil, err
	}
	if m, ok := mountFromConfig(sc.Mount); ok {
		src = imu.Remap(src, m)
	}
	return src, nil
}

// mountFromConfig converts config rows into a mount matrix. All-empty rows
// mean no remap.
func mountFromConfig(m config.Mount) (imu.MountMatrix, bool) {
	if len(m.X) == 0 && len(m.Y) == 0 && len(m.Z) == 0 {
		return imu.MountMatrix{}, false
	}
	mm := imu.IdentityMount()
	if len(m.X) == 3 {
		mm.X = geom.Vec3{X: m.X[0], Y: m.X[1], Z: m.X[2]}
	}
	if len(m.Y) == 3 {
		mm.Y = geom.Vec3{X: m.Y[0], Y: m.Y[1], Z: m.Y[2]}
	}
	if len(m.Z) == 3 {
		mm.Z = geom.Vec3{X: m.Z[0], Y: m.Z[1], Z: m.Z[2]}
	}
	return mm, true
}

func tunablesFromConfig(m config.Motion) motion.Tunables {
	tun := motion.DefaultTunables()
	if m.AccelCorrection > 0 {
		tun.AccelCorrection = m.AccelCorrection
	}
	if m.MaxBiasSamples > 0 {
		tun.MaxBiasSamples = m.MaxBiasSamples
	}
	if m.GyroThresholdDPS > 0 {
		tun.GyroMotionThreshold = m.GyroThresholdDPS
	}
	if m.AccelThresholdG > 0 {
		tun.AccelMotionThreshold = m.AccelThresholdG
	}
	return tun
}

func (rt *runtime) registerMethods() error {
	if err := rt.methods.Register("tracker.reset", func(context.Context, json.RawMessage) (any, error) {
		rt.mu.Lock()
		rt.tracker.Reset()
		rt.haveAt = false
		rt.mu.Unlock()
		return map[string]string{"state": "reset"}, nil
	}); err != nil {
		return err
	}
	if err := rt.methods.Register("tracker.bias", func(context.Context, json.RawMessage) (any, error) {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		return map[string]any{
			"gyro":          vec3Slice(rt.tracker.GyroBias()),
			"gyro_samples":  rt.tracker.GyroBiasSamples(),
			"accel":         vec3Slice(rt.tracker.AccelBias()),
			"accel_samples": rt.tracker.AccelBiasSamples(),
		}, nil
	}); err != nil {
		return err
	}
	return rt.methods.Register("tracker.tunables", func(context.Context, json.RawMessage) (any, error) {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		return rt.tracker.Tunables(), nil
	})
}

func (rt *runtime) run(ctx context.Context) error {
	if rt.cfg.Web.Enable {
		go func() {
			if err := web.Serve(ctx, rt.cfg.Web.Listen, rt.status, rt.broadcaster, rt.methods); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	if rt.sender != nil {
		go func() {
			err := rt.sender.Run(ctx, rt.cfg.Report.Interval, func(uint64) []byte {
				rt.mu.Lock()
				defer rt.mu.Unlock()
				// Copy: step reuses the frame buffer on the next tick.
				return append([]byte(nil), rt.frame...)
			})
			if err != nil && ctx.Err() == nil {
				log.Printf("report sender stopped: %v", err)
			}
		}()
	}

	rt.broadcaster.SetAvailable(true)
	defer rt.broadcaster.SetAvailable(false)

	ticker := time.NewTicker(rt.cfg.Source.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := rt.step(); err != nil {
				if errors.Is(err, io.EOF) {
					log.Printf("source exhausted")
					return nil
				}
				log.Printf("sample read failed: %v", err)
				continue
			}
		}
	}
}

// step reads one sample, advances the fusion state and publishes the
// result everywhere it is consumed.
func (rt *runtime) step() error {
	s, err := rt.src.Read()
	if err != nil {
		return err
	}

	if rt.recorder != nil {
		if err := rt.recorder.WriteSample(s); err != nil {
			log.Printf("record sample failed: %v", err)
		}
	}

	rt.mu.Lock()
	dt := 0.0
	if rt.haveAt {
		dt = s.At.Sub(rt.lastAt).Seconds()
		if dt < 0 {
			dt = 0
		} else if dt > maxDT {
			dt = maxDT
		}
	}
	rt.lastAt = s.At
	rt.haveAt = true

	rt.tracker.ProcessRaw(s.Accel, s.Gyro, dt)
	rt.tick++

	snap := web.MotionSnapshot{
		Tick:        rt.tick,
		Accel:       vec3Array(s.Accel),
		Gravity:     vec3Array(rt.tracker.Gravity()),
		LinearAccel: vec3Array(rt.tracker.FilteredAccel()),
		Orientation: quatArray(rt.tracker.TotalRotation()),
		GyroBias:    vec3Array(rt.tracker.GyroBias()),
	}
	frame := report.Motion{
		Tick:        uint32(rt.tick),
		TimestampUS: uint64(s.At.UnixMicro()),
		Accel:       rt.tracker.FilteredAccel(),
		Gravity:     rt.tracker.Gravity(),
		Delta:       rt.tracker.DeltaRotation(),
		Total:       rt.tracker.TotalRotation(),
	}
	rt.frame = frame.AppendBinary(rt.frame[:0])
	rt.mu.Unlock()

	now := s.At.UTC()
	rt.status.SetMotion(now, snap)
	rt.status.MarkTick(now)
	rt.broadcaster.Publish(snap)
	return nil
}

func (rt *runtime) close() {
	if rt.src != nil {
		if err := rt.src.Close(); err != nil {
			log.Printf("source close failed: %v", err)
		}
	}
	if rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			log.Printf("recorder close failed: %v", err)
		}
	}
	if rt.sender != nil {
		if err := rt.sender.Close(); err != nil {
			log.Printf("report sender close failed: %v", err)
		}
	}
}

func vec3Array(v geom.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func vec3Slice(v geom.Vec3) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

func quatArray(q geom.Quat) [4]float64 {
	return [4]float64{q.X, q.Y, q.Z, q.W}
}
