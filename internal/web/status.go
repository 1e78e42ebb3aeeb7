package web

import (
	"sync/atomic"
	"time"
)

type Status struct {
	startUnixNano int64
	ticks         uint64
	lastTickNano  int64
	sourceKind    atomic.Value // string
	poll          atomic.Value // string
	reportDest    atomic.Value // string
	motion        atomic.Value // MotionSnapshot
}

func NewStatus() *Status {
	s := &Status{}
	now := time.Now().UTC()
	atomic.StoreInt64(&s.startUnixNano, now.UnixNano())
	atomic.StoreInt64(&s.lastTickNano, 0)
	s.sourceKind.Store("")
	s.poll.Store("")
	s.reportDest.Store("")
	s.motion.Store(MotionSnapshot{})
	return s
}

// MotionSnapshot is a UI-friendly view of one fused update. Vectors are
// x, y, z; the orientation quaternion is x, y, z, w. Roll and pitch are in
// degrees and omitted until the broadcaster has derived them.
type MotionSnapshot struct {
	Tick          uint64     `json:"tick"`
	Accel         [3]float64 `json:"accel"`
	Gravity       [3]float64 `json:"gravity"`
	LinearAccel   [3]float64 `json:"linear_accel"`
	Orientation   [4]float64 `json:"orientation"`
	GyroBias      [3]float64 `json:"gyro_bias"`
	RollDeg       *float64   `json:"roll_deg,omitempty"`
	PitchDeg      *float64   `json:"pitch_deg,omitempty"`
	LastUpdateUTC string     `json:"last_update_utc,omitempty"`
}

func (s *Status) SetMotion(nowUTC time.Time, snap MotionSnapshot) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap.LastUpdateUTC = nowUTC.UTC().Format(time.RFC3339Nano)
	s.motion.Store(snap)
}

func (s *Status) SetStatic(sourceKind, poll, reportDest string) {
	if sourceKind != "" {
		s.sourceKind.Store(sourceKind)
	}
	if poll != "" {
		s.poll.Store(poll)
	}
	if reportDest != "" {
		s.reportDest.Store(reportDest)
	}
}

func (s *Status) MarkTick(nowUTC time.Time) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastTickNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.ticks, 1)
}

type StatusSnapshot struct {
	Service     string         `json:"service"`
	NowUTC      string         `json:"now_utc"`
	UptimeSec   int64          `json:"uptime_sec"`
	SourceKind  string         `json:"source_kind"`
	Poll        string         `json:"poll"`
	ReportDest  string         `json:"report_dest,omitempty"`
	TicksTotal  uint64         `json:"ticks_total"`
	LastTickUTC string         `json:"last_tick_utc,omitempty"`
	Motion      MotionSnapshot `json:"motion"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	uptime := nowUTC.Sub(start)
	lastTick := atomic.LoadInt64(&s.lastTickNano)

	snap := StatusSnapshot{
		Service:    "padmotion",
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(uptime.Seconds()),
		SourceKind: s.sourceKind.Load().(string),
		Poll:       s.poll.Load().(string),
		ReportDest: s.reportDest.Load().(string),
		TicksTotal: atomic.LoadUint64(&s.ticks),
		Motion:     s.motion.Load().(MotionSnapshot),
	}
	if lastTick != 0 {
		snap.LastTickUTC = time.Unix(0, lastTick).UTC().Format(time.RFC3339Nano)
	}
	return snap
}
