package daemon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// slot is one daily wall-clock run time.
type slot struct {
	hour   int
	minute int
}

// Schedule computes the next run time from a list of daily "HH:MM" slots.
type Schedule struct {
	slots []slot
}

// ParseSchedule validates and orders the configured daily run times.
func ParseSchedule(dailyAt []string) (*Schedule, error) {
	if len(dailyAt) == 0 {
		return nil, fmt.Errorf("schedule requires at least one daily run time")
	}
	slots := make([]slot, 0, len(dailyAt))
	for _, raw := range dailyAt {
		s, err := parseSlot(raw)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].hour != slots[j].hour {
			return slots[i].hour < slots[j].hour
		}
		return slots[i].minute < slots[j].minute
	})
	return &Schedule{slots: slots}, nil
}

func parseSlot(raw string) (slot, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return slot{}, fmt.Errorf("invalid daily run time %q: want HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return slot{}, fmt.Errorf("invalid hour in daily run time %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return slot{}, fmt.Errorf("invalid minute in daily run time %q", raw)
	}
	return slot{hour: hour, minute: minute}, nil
}

// Next returns the first scheduled occurrence strictly after now, in now's
// location. When every slot for today has passed, the earliest slot tomorrow
// is returned.
func (s *Schedule) Next(now time.Time) time.Time {
	for _, sl := range s.slots {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), sl.hour, sl.minute, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate
		}
	}
	first := s.slots[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.hour, first.minute, 0, 0, now.Location())
}
