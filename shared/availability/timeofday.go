package availability

import (
	"fmt"
	"time"
)

// DateLayout is the format of booking and exception dates
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// Clock is a wall-clock time as minutes since midnight
type Clock int

// ParseClock parses a strict 24-hour "HH:MM"
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("time %q is not HH:MM", s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("time %q is out of range", s)
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Interval is a half-open [Start, End) range of wall-clock minutes
type Interval struct {
	Start Clock
	End   Clock
}

// Overlaps reports whether two half-open intervals share any minute; touching ends do not overlap
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies entirely inside i
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, invalid("date", "%q is not YYYY-MM-DD", s)
	}
	return d, nil
}
