package guard

import (
	"math"
	"time"
)

// Delays are the time locks of the recovery and delegation machines.
type Delays struct {
	Fast       time.Duration
	Slow       time.Duration
	Delegation time.Duration
}

// DefaultDelays returns 24h fast recovery and 14 day slow recovery and delegation.
func DefaultDelays() Delays {
	return Delays{
		Fast:       24 * time.Hour,
		Slow:       14 * 24 * time.Hour,
		Delegation: 14 * 24 * time.Hour,
	}
}

func (d Delays) withDefaults() Delays {
	def := DefaultDelays()
	if d.Fast <= 0 {
		d.Fast = def.Fast
	}
	if d.Slow <= 0 {
		d.Slow = def.Slow
	}
	if d.Delegation <= 0 {
		d.Delegation = def.Delegation
	}
	return d
}

// Options configure a guard.
type Options struct {
	Delays Delays
}

// unblockAt returns now+d in unix seconds, saturating at MaxUint64.
func unblockAt(now uint64, d time.Duration) uint64 {
	secs := uint64(d / time.Second)
	if now > math.MaxUint64-secs {
		return math.MaxUint64
	}
	return now + secs
}
