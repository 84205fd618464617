package models

import (
	"fmt"
	"regexp"
	"time"
)

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Schedule is the singleton rest-window configuration gating the Encoder
// Pool. A fresh install has exactly one row, created with defaults by
// ScheduleRepository.Get on first access.
type Schedule struct {
	BaseModel

	Enabled            bool   `gorm:"not null;default:false" json:"enabled"`
	DaysOfWeek         string `gorm:"not null;default:'0,1,2,3,4,5,6'" json:"days_of_week"` // CSV of 0(Sun)..6(Sat)
	StartTime          string `gorm:"not null;default:'22:00'" json:"start_time"`
	EndTime            string `gorm:"not null;default:'06:00'" json:"end_time"`
	UseHostRestHours   bool   `json:"use_host_rest_hours"`
	MaxConcurrentJobs  int    `gorm:"not null;default:1" json:"max_concurrent_jobs"`
	ManualOverride     bool   `json:"manual_override"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// Days parses DaysOfWeek into a set of time.Weekday values.
func (s *Schedule) Days() map[time.Weekday]bool {
	days := map[time.Weekday]bool{}
	var cur int
	started := false
	for _, r := range s.DaysOfWeek {
		switch {
		case r >= '0' && r <= '9':
			cur = cur*10 + int(r-'0')
			started = true
		case r == ',':
			if started {
				days[time.Weekday(cur)] = true
			}
			cur = 0
			started = false
		}
	}
	if started {
		days[time.Weekday(cur)] = true
	}
	return days
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, ErrInvalidTimeOfDay
	}
	fmt.Sscanf(m[1], "%d", &hour)
	fmt.Sscanf(m[2], "%d", &minute)
	return hour, minute, nil
}

// Validate checks field-level invariants.
func (s *Schedule) Validate() error {
	if _, _, err := parseTimeOfDay(s.StartTime); err != nil {
		return err
	}
	if _, _, err := parseTimeOfDay(s.EndTime); err != nil {
		return err
	}
	for day := range s.Days() {
		if day < 0 || day > 6 {
			return ErrInvalidDaysOfWeek
		}
	}
	return nil
}

// WithinWindow reports whether `now` falls inside the configured rest
// window, per 4.F. restStart/restEnd let the scheduler pass the
// host-active-hours complement instead of StartTime/EndTime when
// UseHostRestHours is set.
func (s *Schedule) WithinWindow(now time.Time, restStart, restEnd string) bool {
	if !s.Enabled {
		return false
	}
	if !s.Days()[now.Weekday()] {
		return false
	}

	startStr, endStr := s.StartTime, s.EndTime
	if s.UseHostRestHours && restStart != "" && restEnd != "" {
		startStr, endStr = restStart, restEnd
	}

	startH, startM, err := parseTimeOfDay(startStr)
	if err != nil {
		return false
	}
	endH, endM, err := parseTimeOfDay(endStr)
	if err != nil {
		return false
	}

	startMinutes := startH*60 + startM
	endMinutes := endH*60 + endM
	nowMinutes := now.Hour()*60 + now.Minute()

	if startMinutes <= endMinutes {
		return nowMinutes >= startMinutes && nowMinutes <= endMinutes
	}
	// Overnight window: spans midnight.
	return nowMinutes >= startMinutes || nowMinutes <= endMinutes
}
