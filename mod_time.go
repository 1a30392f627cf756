package splat

import (
	"time"
)

type Time struct {
	Time  time.Time
	Start time.Time
	Dt    time.Duration
	Frame uint64
}

// Elapsed is the time since the module was installed, in seconds.
func (t *Time) Elapsed() float32 {
	return float32(t.Time.Sub(t.Start).Seconds())
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	now := time.Now()
	cmd.AddResources(&Time{
		Time:  now,
		Start: now,
		Dt:    0,
	})
	cmd.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
	timeResource.Frame++
}
