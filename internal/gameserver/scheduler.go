package gameserver

import "time"

// Scheduler runs a function after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// WallClock schedules with time.AfterFunc.
type WallClock struct{}

// AfterFunc calls f on its own goroutine after d.
func (WallClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
