// Package calendar converts between project time units and calendar dates.
package calendar

import "time"

// Converter maps time units relative to the project epoch to dates and back.
// The scheduling packages only ever see this interface.
type Converter interface {
	ToDate(unit int) time.Time
	ToUnit(date time.Time) int
}

// Days counts one time unit per calendar day, optionally skipping weekends.
type Days struct {
	Start        time.Time
	SkipWeekends bool
}

// New returns a day-based calendar starting at the date of start.
func New(start time.Time, skipWeekends bool) *Days {
	d := &Days{Start: truncate(start), SkipWeekends: skipWeekends}
	if skipWeekends {
		d.Start = nextWorkday(d.Start)
	}
	return d
}

// ToDate returns the date of the given time unit. Negative units count back
// from the start.
func (d *Days) ToDate(unit int) time.Time {
	if !d.SkipWeekends {
		return d.Start.AddDate(0, 0, unit)
	}
	date := d.Start
	step := 1
	if unit < 0 {
		step = -1
		unit = -unit
	}
	for unit > 0 {
		date = date.AddDate(0, 0, step)
		if !isWeekend(date) {
			unit--
		}
	}
	return date
}

// ToUnit returns the time unit containing date. Weekend dates map to the
// following working day.
func (d *Days) ToUnit(date time.Time) int {
	date = truncate(date)
	if !d.SkipWeekends {
		return int(date.Sub(d.Start).Hours() / 24)
	}
	date = nextWorkday(date)
	units := 0
	if date.Before(d.Start) {
		for cur := date; cur.Before(d.Start); cur = cur.AddDate(0, 0, 1) {
			if !isWeekend(cur) {
				units--
			}
		}
		return units
	}
	for cur := d.Start; cur.Before(date); cur = cur.AddDate(0, 0, 1) {
		if !isWeekend(cur) {
			units++
		}
	}
	return units
}

func truncate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func nextWorkday(t time.Time) time.Time {
	for isWeekend(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
