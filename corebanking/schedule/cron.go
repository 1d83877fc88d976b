package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpression is returned when a cron expression cannot be parsed
// due to incorrect field count, out-of-range values, or malformed syntax.
var ErrInvalidExpression = errors.New("invalid cron expression")

// ErrNoMatch is returned when Next exhausts its iteration limit without
// finding a time that satisfies all cron fields.
var ErrNoMatch = errors.New("cron: no matching time found within iteration limit")

// Cron field boundary constants.
const (
	cronFieldCount = 5  // number of fields in a standard cron expression
	maxMinute      = 59 // maximum value for minute field
	maxHour        = 23 // maximum value for hour field
	minDayOfMonth  = 1  // minimum value for day-of-month field
	maxDayOfMonth  = 31 // maximum value for day-of-month field
	minMonth       = 1  // minimum value for month field
	maxMonth       = 12 // maximum value for month field
	maxDayOfWeek   = 6  // maximum value for day-of-week field
	splitParts     = 2  // number of parts when splitting step or range expressions
)

// fieldSet holds the matching values of one cron field as a bitmask. Field
// values never exceed 59, so a single word covers every field.
type fieldSet uint64

func (s fieldSet) contains(v int) bool {
	return s&(1<<uint(v)) != 0
}

func (s *fieldSet) add(v int) {
	*s |= 1 << uint(v)
}

// Schedule is a parsed cron schedule capable of computing the next execution
// time after a given reference time.
type Schedule struct {
	minutes fieldSet
	hours   fieldSet
	doms    fieldSet
	months  fieldSet
	dows    fieldSet
}

// Parse parses a standard 5-field cron expression, in the order
// minute hour day-of-month month day-of-week, and returns its Schedule.
// Returns ErrInvalidExpression if the expression is malformed or contains
// out-of-range values.
func Parse(expr string) (*Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	fields := strings.Fields(expr)
	if len(fields) != cronFieldCount {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidExpression, cronFieldCount, len(fields))
	}

	minutes, err := parseField(fields[0], 0, maxMinute)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}

	hours, err := parseField(fields[1], 0, maxHour)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}

	doms, err := parseField(fields[2], minDayOfMonth, maxDayOfMonth)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-month field: %w", err)
	}

	months, err := parseField(fields[3], minMonth, maxMonth)
	if err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}

	dows, err := parseField(fields[4], 0, maxDayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-week field: %w", err)
	}

	return &Schedule{
		minutes: minutes,
		hours:   hours,
		doms:    doms,
		months:  months,
		dows:    dows,
	}, nil
}

// Next computes the next execution time after the given reference time. It
// normalizes the input to UTC, advances by one minute, and iteratively checks
// each cron field (month, day-of-month, day-of-week, hour, minute) to find
// the next matching time. Returns the matching time in UTC, or ErrNoMatch if
// no match is found within the iteration limit.
func (sched *Schedule) Next(from time.Time) (time.Time, error) {
	from = from.UTC()
	candidate := from.Add(time.Minute)
	candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour(), candidate.Minute(), 0, 0, time.UTC)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if !sched.months.contains(int(candidate.Month())) {
			candidate = time.Date(candidate.Year(), candidate.Month()+1, 1, 0, 0, 0, 0, time.UTC)

			continue
		}

		if !sched.doms.contains(candidate.Day()) || !sched.dows.contains(int(candidate.Weekday())) {
			candidate = candidate.AddDate(0, 0, 1)
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), 0, 0, 0, 0, time.UTC)

			continue
		}

		if !sched.hours.contains(candidate.Hour()) {
			candidate = candidate.Add(time.Hour)
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour(), 0, 0, 0, time.UTC)

			continue
		}

		if !sched.minutes.contains(candidate.Minute()) {
			candidate = candidate.Add(time.Minute)

			continue
		}

		return candidate, nil
	}

	return time.Time{}, ErrNoMatch
}

func parseField(field string, minVal, maxVal int) (fieldSet, error) {
	var result fieldSet

	parts := strings.Split(field, ",")
	for _, part := range parts {
		if err := parsePart(&result, part, minVal, maxVal); err != nil {
			return 0, err
		}
	}

	return result, nil
}

func parsePart(set *fieldSet, part string, minVal, maxVal int) error {
	var rangeStart, rangeEnd, step int

	stepParts := strings.SplitN(part, "/", splitParts)
	hasStep := len(stepParts) == splitParts

	if hasStep {
		s, err := parseStep(stepParts[1])
		if err != nil {
			return err
		}

		step = s
	}

	rangePart := stepParts[0]

	switch {
	case rangePart == "*":
		rangeStart = minVal
		rangeEnd = maxVal
	case strings.Contains(rangePart, "-"):
		lo, hi, err := parseRange(rangePart, minVal, maxVal)
		if err != nil {
			return err
		}

		rangeStart = lo
		rangeEnd = hi
	default:
		val, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("%w: invalid value %q", ErrInvalidExpression, rangePart)
		}

		if val < minVal || val > maxVal {
			return fmt.Errorf("%w: value %d out of bounds [%d, %d]", ErrInvalidExpression, val, minVal, maxVal)
		}

		if !hasStep {
			set.add(val)
			return nil
		}

		rangeStart = val
		rangeEnd = maxVal
	}

	if !hasStep {
		step = 1
	}

	for v := rangeStart; v <= rangeEnd; v += step {
		set.add(v)
	}

	return nil
}

// parseStep parses and validates a cron step value, ensuring it is a positive integer.
func parseStep(raw string) (int, error) {
	s, err := strconv.Atoi(raw)
	if err != nil || s <= 0 {
		return 0, fmt.Errorf("%w: invalid step %q", ErrInvalidExpression, raw)
	}

	return s, nil
}

// parseRange parses a "lo-hi" range expression, validates bounds against
// [minVal, maxVal], and returns the low and high values.
func parseRange(rangePart string, minVal, maxVal int) (int, int, error) {
	bounds := strings.SplitN(rangePart, "-", splitParts)

	lo, err := strconv.Atoi(bounds[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid range start %q", ErrInvalidExpression, bounds[0])
	}

	hi, err := strconv.Atoi(bounds[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid range end %q", ErrInvalidExpression, bounds[1])
	}

	if lo < minVal || hi > maxVal || lo > hi {
		return 0, 0, fmt.Errorf("%w: range %d-%d out of bounds [%d, %d]", ErrInvalidExpression, lo, hi, minVal, maxVal)
	}

	return lo, hi, nil
}
