package availability

import (
	"sort"

	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/models"
)

// DayEntry is one day of a weekly schedule
type DayEntry struct {
	DayOfWeek int                 `json:"day_of_week"`
	DayName   string              `json:"day_name"`
	Enabled   bool                `json:"is_enabled"`
	Slots     []models.TimeWindow `json:"slots"`
}

// WeekSchedule holds seven entries, Sunday first
type WeekSchedule []DayEntry

// EmptyWeek returns a schedule with every day disabled
func EmptyWeek() WeekSchedule {
	week := make(WeekSchedule, 7)
	for d := range week {
		week[d] = DayEntry{DayOfWeek: d, DayName: config.DayNames[d], Slots: []models.TimeWindow{}}
	}
	return week
}

// WeekFromRules builds a schedule from stored rules; missing days stay disabled
func WeekFromRules(rules []models.AvailabilityRule) WeekSchedule {
	week := EmptyWeek()
	for _, r := range rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			continue
		}
		entry := &week[r.DayOfWeek]
		entry.Enabled = r.IsEnabled
		if r.Slots != nil {
			entry.Slots = sortedWindows(r.Slots)
		}
	}
	return week
}

// WeekFromFile converts the fallback schedule file
func WeekFromFile(f *config.ScheduleFile) WeekSchedule {
	week := EmptyWeek()
	for d := range week {
		day := f.Day(d)
		week[d].Enabled = day.Enabled
		if day.Slots != nil {
			week[d].Slots = sortedWindows(day.Slots)
		}
	}
	return week
}

// Rules converts the schedule into rows for storage
func (w WeekSchedule) Rules(tenantID uint) []models.AvailabilityRule {
	rules := make([]models.AvailabilityRule, 0, len(w))
	for _, entry := range w {
		rules = append(rules, models.AvailabilityRule{
			TenantID:  tenantID,
			DayOfWeek: entry.DayOfWeek,
			IsEnabled: entry.Enabled,
			Slots:     models.TimeWindows(sortedWindows(entry.Slots)),
		})
	}
	return rules
}

// Validate checks every day: seven distinct days, HH:MM times, start before end and no
// overlapping windows within a day
func (w WeekSchedule) Validate() error {
	if len(w) != 7 {
		return invalid("schedule", "expected 7 days, got %d", len(w))
	}
	seen := [7]bool{}
	for _, entry := range w {
		if entry.DayOfWeek < 0 || entry.DayOfWeek > 6 {
			return invalid("day_of_week", "%d is not between 0 and 6", entry.DayOfWeek)
		}
		if seen[entry.DayOfWeek] {
			return invalid("day_of_week", "day %d listed twice", entry.DayOfWeek)
		}
		seen[entry.DayOfWeek] = true
		if _, err := ParseWindows(entry.Slots); err != nil {
			return err
		}
	}
	return nil
}

// Normalized returns the schedule indexed by day of week with sorted windows
func (w WeekSchedule) Normalized() WeekSchedule {
	out := EmptyWeek()
	for _, entry := range w {
		if entry.DayOfWeek < 0 || entry.DayOfWeek > 6 {
			continue
		}
		out[entry.DayOfWeek].Enabled = entry.Enabled
		if entry.Slots != nil {
			out[entry.DayOfWeek].Slots = sortedWindows(entry.Slots)
		}
	}
	return out
}

// ParseWindows validates windows and returns them as sorted intervals
func ParseWindows(windows []models.TimeWindow) ([]Interval, error) {
	intervals := make([]Interval, 0, len(windows))
	for _, w := range windows {
		start, err := ParseClock(w.Start)
		if err != nil {
			return nil, invalid("start_time", "%v", err)
		}
		end, err := ParseClock(w.End)
		if err != nil {
			return nil, invalid("end_time", "%v", err)
		}
		if start >= end {
			return nil, invalid("slots", "window %s-%s ends before it starts", w.Start, w.End)
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })
	for i := 1; i < len(intervals); i++ {
		if intervals[i-1].Overlaps(intervals[i]) {
			return nil, invalid("slots", "windows %s-%s and %s-%s overlap",
				intervals[i-1].Start, intervals[i-1].End, intervals[i].Start, intervals[i].End)
		}
	}
	return intervals, nil
}

func sortedWindows(windows []models.TimeWindow) []models.TimeWindow {
	out := make([]models.TimeWindow, len(windows))
	copy(out, windows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
