package web

import (
	"math"
	"sync"
	"time"

	"padmotion/internal/filter"
	"padmotion/internal/geom"
)

// MotionBroadcaster fans out high-rate fused snapshots to any listeners
// (websocket streams, the status page). It keeps the most recent value so
// new subscribers get an immediate sample.
type MotionBroadcaster struct {
	mu        sync.RWMutex
	subs      map[int]chan MotionSnapshot
	nextID    int
	last      MotionSnapshot
	haveLast  bool
	available bool

	smoothMu sync.Mutex
	gravity  filter.LowPass
	seeded   bool
}

// displaySmoothingStrength smooths the gravity vector the roll/pitch
// readouts are derived from. Display only; the fused state is untouched.
const displaySmoothingStrength = 0.35

func NewMotionBroadcaster() *MotionBroadcaster {
	return &MotionBroadcaster{
		subs: make(map[int]chan MotionSnapshot),
	}
}

func (b *MotionBroadcaster) SetAvailable(v bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.available = v
	b.mu.Unlock()
}

func (b *MotionBroadcaster) Available() bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available
}

// Last returns the most recently published snapshot, if any.
func (b *MotionBroadcaster) Last() (MotionSnapshot, bool) {
	if b == nil {
		return MotionSnapshot{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.haveLast
}

func (b *MotionBroadcaster) Subscribe(buffer int) (int, <-chan MotionSnapshot) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan MotionSnapshot, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last := b.last
	have := b.haveLast
	b.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (b *MotionBroadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers snap to all subscribers without blocking; slow
// subscribers drop frames. Roll and pitch are derived here from a
// display-smoothed copy of the gravity vector when the caller left them
// unset.
func (b *MotionBroadcaster) Publish(snap MotionSnapshot) {
	if b == nil {
		return
	}
	if snap.LastUpdateUTC == "" {
		snap.LastUpdateUTC = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if snap.RollDeg == nil && snap.PitchDeg == nil {
		g := geom.Vec3{X: snap.Gravity[0], Y: snap.Gravity[1], Z: snap.Gravity[2]}
		if !g.IsZero() {
			b.smoothMu.Lock()
			if !b.seeded {
				b.gravity.Update(g, 1)
				b.seeded = true
			} else {
				b.gravity.Update(g, displaySmoothingStrength)
			}
			sg := b.gravity.Value()
			b.smoothMu.Unlock()
			roll, pitch := tiltAngles(sg)
			snap.RollDeg = &roll
			snap.PitchDeg = &pitch
		}
	}
	b.mu.RLock()
	subs := make([]chan MotionSnapshot, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
	b.mu.Lock()
	b.last = snap
	b.haveLast = true
	b.mu.Unlock()
}

// tiltAngles extracts the lean of the body frame from a gravity estimate.
// With gravity at (0, -1, 0) when level, both angles are zero; roll is
// lean about the forward axis, pitch about the lateral axis.
func tiltAngles(g geom.Vec3) (rollDeg, pitchDeg float64) {
	const radToDeg = 180 / math.Pi
	rollDeg = math.Atan2(-g.X, -g.Y) * radToDeg
	pitchDeg = math.Atan2(g.Z, -g.Y) * radToDeg
	return rollDeg, pitchDeg
}
