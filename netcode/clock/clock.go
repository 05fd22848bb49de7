// Package clock implements the tick clock discipline shared by the
// server and every client (spec §4.C): a common start instant, a fixed
// tick rate, and the server's deliberate lag behind wall-clock.
package clock

import "time"

// Default configuration constants (spec §6).
const (
	TPS           uint32 = 60
	LeadTicks     uint32 = 4
	DMax          uint32 = 32
	History       int    = 2048
	CatchupBudget uint32 = 2000
	StartDelayMs  uint32 = 800
)

// WallTick returns floor((now-start)*tps) when now >= start, else 0. This is
// the same function on both the server and every client (spec §4.C).
func WallTick(start, now time.Time, tps uint32) uint32 {
	if now.Before(start) {
		return 0
	}
	elapsed := now.Sub(start).Seconds()
	return uint32(elapsed * float64(tps))
}

// TargetTick subtracts lead from wallTick, floored at zero — the server's
// intentional lag behind wall-clock (spec §4.C, §4.D).
func TargetTick(wallTick, lead uint32) uint32 {
	if wallTick < lead {
		return 0
	}
	return wallTick - lead
}
