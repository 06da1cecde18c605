// Package resample aggregates time-indexed measurement tables to coarser
// frequencies using per-column aggregation rules.
package resample

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gremau/ecoflux-tools/internal/errors"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// Frequency describes a resampling bucket width: either a fixed duration or a
// whole number of calendar months. The zero value means daily.
type Frequency struct {
	step   time.Duration
	months int
}

// Duration creates a fixed-width frequency.
func Duration(d time.Duration) Frequency {
	return Frequency{step: d}
}

// Days creates a frequency of n whole days.
func Days(n int) Frequency {
	return Frequency{step: time.Duration(n) * day}
}

// Weeks creates a frequency of n whole weeks. Weekly buckets start on Monday.
func Weeks(n int) Frequency {
	return Frequency{step: time.Duration(n) * week}
}

// Months creates a calendar-month frequency. Month buckets start on the first
// of the month; widths follow the calendar.
func Months(n int) Frequency {
	return Frequency{months: n}
}

// Daily returns the default one-day frequency.
func Daily() Frequency {
	return Days(1)
}

// ParseFrequency reads a frequency token. It accepts Go duration strings
// ("30m", "1h", "24h") and the calendar shorthand "<n>D", "<n>W" and "<n>M"
// for days, weeks and months, with the count defaulting to one. A lowercase
// "m" is a minute, per Go duration syntax; months are always uppercase "M".
func ParseFrequency(s string) (Frequency, error) {
	token := strings.TrimSpace(s)
	if token == "" {
		return Frequency{}, errors.NewInvalidInputError("Frequency", "empty frequency")
	}

	if d, err := time.ParseDuration(token); err == nil {
		if d <= 0 {
			return Frequency{}, errors.NewInvalidInputError("Frequency",
				fmt.Sprintf("frequency must be positive, got %q", s))
		}
		return Duration(d), nil
	}

	unit := token[len(token)-1]
	count := 1
	if digits := token[:len(token)-1]; digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil || n <= 0 {
			return Frequency{}, errors.NewInvalidInputError("Frequency",
				fmt.Sprintf("cannot parse frequency %q", s))
		}
		count = n
	}

	switch unit {
	case 'D', 'd':
		return Days(count), nil
	case 'W', 'w':
		return Weeks(count), nil
	case 'M':
		return Months(count), nil
	default:
		return Frequency{}, errors.NewInvalidInputError("Frequency",
			fmt.Sprintf("cannot parse frequency %q", s))
	}
}

// IsZero reports whether the frequency is unset.
func (f Frequency) IsZero() bool {
	return f.step == 0 && f.months == 0
}

// Validate checks that the frequency describes a usable bucket width.
func (f Frequency) Validate() error {
	if f.months < 0 || f.step < 0 {
		return errors.NewInvalidInputError("Frequency", "frequency must be positive")
	}
	if f.months > 0 && f.step > 0 {
		return errors.NewInvalidInputError("Frequency", "frequency cannot mix months and a fixed step")
	}
	return nil
}

// String returns the frequency in its shorthand form.
func (f Frequency) String() string {
	switch {
	case f.months > 0:
		return fmt.Sprintf("%dM", f.months)
	case f.step > 0 && f.step%week == 0:
		return fmt.Sprintf("%dW", f.step/week)
	case f.step > 0 && f.step%day == 0:
		return fmt.Sprintf("%dD", f.step/day)
	case f.step > 0:
		return f.step.String()
	default:
		return "1D"
	}
}

// Truncate returns the start of the bucket containing t. Buckets are anchored
// in UTC; Go's zero time is a Monday, so whole-week steps land on Mondays and
// whole-day steps on midnight.
func (f Frequency) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if f.months > 0 {
		ym := t.Year()*12 + int(t.Month()) - 1
		ym -= ym % f.months
		return time.Date(ym/12, time.Month(ym%12+1), 1, 0, 0, 0, 0, time.UTC)
	}
	step := f.step
	if step == 0 {
		step = day
	}
	return t.Truncate(step)
}

// Next returns the start of the bucket after the one starting at t.
func (f Frequency) Next(t time.Time) time.Time {
	if f.months > 0 {
		return t.AddDate(0, f.months, 0)
	}
	step := f.step
	if step == 0 {
		step = day
	}
	return t.Add(step)
}
