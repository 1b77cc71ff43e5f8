package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nordbooking/nordbooking/shared/models"
)

// DayNames are the schedule file keys, indexed by day of week (0=Sunday)
var DayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

const defaultFallbackScheduleYAML = `# weekly schedule offered to tenants that have configured nothing
version: 1
days:
  sunday:
    enabled: false
  monday:
    enabled: true
    slots:
      - {start_time: "09:00", end_time: "17:00"}
  tuesday:
    enabled: true
    slots:
      - {start_time: "09:00", end_time: "17:00"}
  wednesday:
    enabled: true
    slots:
      - {start_time: "09:00", end_time: "17:00"}
  thursday:
    enabled: true
    slots:
      - {start_time: "09:00", end_time: "17:00"}
  friday:
    enabled: true
    slots:
      - {start_time: "09:00", end_time: "17:00"}
  saturday:
    enabled: false
`

// ScheduleDay is one day entry of a schedule file
type ScheduleDay struct {
	Enabled bool                `yaml:"enabled"`
	Slots   []models.TimeWindow `yaml:"slots,omitempty"`
}

// ScheduleFile models the fallback schedule YAML
type ScheduleFile struct {
	Version int                    `yaml:"version"`
	Days    map[string]ScheduleDay `yaml:"days"`
}

// Day returns the entry for a day of week, disabled when the file omits it
func (f *ScheduleFile) Day(dayOfWeek int) ScheduleDay {
	if f == nil || dayOfWeek < 0 || dayOfWeek > 6 {
		return ScheduleDay{}
	}
	return f.Days[DayNames[dayOfWeek]]
}

// LoadFallbackSchedule reads the schedule file at path, or the built-in default when path is empty
func LoadFallbackSchedule(path string) (*ScheduleFile, error) {
	data := []byte(defaultFallbackScheduleYAML)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("fallback schedule %s not found", path)
			}
			return nil, fmt.Errorf("read fallback schedule: %w", err)
		}
		data = raw
	}
	return parseScheduleFile(data)
}

func parseScheduleFile(data []byte) (*ScheduleFile, error) {
	var file ScheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fallback schedule: %w", err)
	}
	if file.Version == 0 {
		file.Version = 1
	}
	normalized := make(map[string]ScheduleDay, len(file.Days))
	for name, day := range file.Days {
		key := strings.ToLower(strings.TrimSpace(name))
		if !isDayName(key) {
			return nil, fmt.Errorf("parse fallback schedule: unknown day %q", name)
		}
		normalized[key] = day
	}
	file.Days = normalized
	return &file, nil
}

func isDayName(name string) bool {
	for _, d := range DayNames {
		if d == name {
			return true
		}
	}
	return false
}
