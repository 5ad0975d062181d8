// Package deadline turns a deadline and the current time into a countdown.
package deadline

import (
	"fmt"
	"time"
)

// Kind classifies a countdown.
type Kind int

const (
	Overdue Kind = iota
	DaysLeft
	HoursLeft
	MinutesLeft
)

// Countdown is the remaining time until a deadline, truncated to whole units.
type Countdown struct {
	Kind    Kind
	Days    int
	Hours   int
	Minutes int
}

// Evaluate computes the countdown for deadline at now. A deadline equal to
// now is already overdue.
func Evaluate(deadline, now time.Time) Countdown {
	diff := deadline.Sub(now).Milliseconds()
	if diff <= 0 {
		return Countdown{Kind: Overdue}
	}

	const (
		minute = int64(60 * 1000)
		hour   = 60 * minute
		day    = 24 * hour
	)

	days := diff / day
	hours := (diff % day) / hour
	minutes := (diff % hour) / minute

	switch {
	case days > 0:
		return Countdown{Kind: DaysLeft, Days: int(days), Hours: int(hours)}
	case hours > 0:
		return Countdown{Kind: HoursLeft, Hours: int(hours), Minutes: int(minutes)}
	default:
		return Countdown{Kind: MinutesLeft, Minutes: int(minutes)}
	}
}

func (c Countdown) IsOverdue() bool {
	return c.Kind == Overdue
}

func (c Countdown) String() string {
	switch c.Kind {
	case Overdue:
		return "Overdue"
	case DaysLeft:
		return fmt.Sprintf("%dd %dh left", c.Days, c.Hours)
	case HoursLeft:
		return fmt.Sprintf("%dh %dm left", c.Hours, c.Minutes)
	default:
		return fmt.Sprintf("%dm left", c.Minutes)
	}
}
