package gateway

import "time"

// Clock abstracts wall-clock time so the rate-limit wait can be simulated in
// tests without real delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
