package pipeline

import (
	"zapihook/workers"

	"github.com/jonboulle/clockwork"
)

// State holds every in-memory cache and timer of the pipeline. One State is
// built at startup and shared by all requests.
type State struct {
	Clock            clockwork.Clock
	ProfileSync      *TTLCache
	OffHoursCooldown *TTLCache
	TrafficCooldown  *TTLCache
	Scheduler        *workers.Scheduler
}

func NewState(clock clockwork.Clock, maxEntries int) *State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &State{
		Clock:            clock,
		ProfileSync:      NewTTLCache("profile_sync", clock, maxEntries),
		OffHoursCooldown: NewTTLCache("off_hours_cooldown", clock, maxEntries),
		TrafficCooldown:  NewTTLCache("traffic_cooldown", clock, maxEntries),
		Scheduler:        workers.NewScheduler(clock),
	}
}
