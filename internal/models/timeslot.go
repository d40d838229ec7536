package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Day is one of the six school days. Sunday (MINGGU) is a rest day and has no value.
type Day int

const (
	DaySenin Day = iota + 1
	DaySelasa
	DayRabu
	DayKamis
	DayJumat
	DaySabtu
)

var dayNames = [...]string{"", "SENIN", "SELASA", "RABU", "KAMIS", "JUMAT", "SABTU"}

var dayLookup = map[string]Day{
	"SENIN":     DaySenin,
	"SELASA":    DaySelasa,
	"RABU":      DayRabu,
	"KAMIS":     DayKamis,
	"JUMAT":     DayJumat,
	"SABTU":     DaySabtu,
	"MONDAY":    DaySenin,
	"TUESDAY":   DaySelasa,
	"WEDNESDAY": DayRabu,
	"THURSDAY":  DayKamis,
	"FRIDAY":    DayJumat,
	"SATURDAY":  DaySabtu,
}

// SchoolDays lists the valid days in timetable order.
func SchoolDays() []Day {
	return []Day{DaySenin, DaySelasa, DayRabu, DayKamis, DayJumat, DaySabtu}
}

// ParseDay resolves a day name case-insensitively. English names are accepted as aliases.
func ParseDay(raw string) (Day, bool) {
	day, ok := dayLookup[strings.ToUpper(strings.TrimSpace(raw))]
	return day, ok
}

// Valid reports whether d is one of the six school days.
func (d Day) Valid() bool {
	return d >= DaySenin && d <= DaySabtu
}

// String returns the canonical day name.
func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

// MarshalJSON renders the canonical name.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts any name understood by ParseDay.
func (d *Day) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	day, ok := ParseDay(raw)
	if !ok {
		return fmt.Errorf("invalid day %q", raw)
	}
	*d = day
	return nil
}

// Value stores the day as its ordinal so ORDER BY follows the school week.
func (d Day) Value() (driver.Value, error) {
	return int64(d), nil
}

// Scan reads the ordinal written by Value.
func (d *Day) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*d = Day(v)
	case int32:
		*d = Day(v)
	case []byte:
		var n int
		if _, err := fmt.Sscanf(string(v), "%d", &n); err != nil {
			return fmt.Errorf("scan day: %w", err)
		}
		*d = Day(n)
	default:
		return fmt.Errorf("scan day: unsupported type %T", src)
	}
	return nil
}

// TimeOfDay is a wall clock time with minute granularity, stored as minutes since midnight.
type TimeOfDay int

// MinutesPerDay bounds TimeOfDay values.
const MinutesPerDay = 24 * 60

// ParseTimeOfDay parses a strict 24-hour "HH:MM" value.
func ParseTimeOfDay(raw string) (TimeOfDay, bool) {
	if len(raw) != 5 || raw[2] != ':' {
		return 0, false
	}
	hour, ok := twoDigits(raw[0], raw[1])
	if !ok || hour > 23 {
		return 0, false
	}
	minute, ok := twoDigits(raw[3], raw[4])
	if !ok || minute > 59 {
		return 0, false
	}
	return TimeOfDay(hour*60 + minute), true
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// String formats the value as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON renders HH:MM.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses HH:MM.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, ok := ParseTimeOfDay(raw)
	if !ok {
		return fmt.Errorf("invalid time of day %q", raw)
	}
	*t = parsed
	return nil
}

// Value stores minutes since midnight.
func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan reads minutes since midnight.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*t = TimeOfDay(v)
	case int32:
		*t = TimeOfDay(v)
	case []byte:
		var n int
		if _, err := fmt.Sscanf(string(v), "%d", &n); err != nil {
			return fmt.Errorf("scan time of day: %w", err)
		}
		*t = TimeOfDay(n)
	default:
		return fmt.Errorf("scan time of day: unsupported type %T", src)
	}
	return nil
}

// Overlaps reports whether the half-open ranges [aStart, aEnd) and [bStart, bEnd) intersect.
// Ranges that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}
