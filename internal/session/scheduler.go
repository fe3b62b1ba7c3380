package session

import "time"

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs delayed callbacks. The real implementation is time.AfterFunc;
// tests substitute a manual one.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealScheduler fires callbacks on the runtime timer goroutines.
var RealScheduler Scheduler = realScheduler{}
