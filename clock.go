package octohub

import "time"

// timer is a cancellable one-shot timer.
type timer interface {
	Stop() bool
}

// clock schedules the supervisor's timers. Tests substitute a manual clock.
type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}
