package deck

import "time"

// Timer is a pending delayed task.
type Timer interface {
	// Stop prevents the task from running. It reports whether the call stopped it.
	Stop() bool
}

// Scheduler runs delayed tasks. The controller owns every timer it creates and
// stops them on Close.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler schedules on the runtime timer wheel.
func RealScheduler() Scheduler { return realScheduler{} }
