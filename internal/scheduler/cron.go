// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cron is a parsed standard 5-field cron expression:
// minute hour day-of-month month day-of-week.
type Cron struct {
	minutes     []int // 0-59
	hours       []int // 0-23
	daysOfMonth []int // 1-31
	months      []int // 1-12
	daysOfWeek  []int // 0-6 (0 = Sunday)
}

// ParseCron parses a 5-field cron expression. Supported per-field syntax:
// "*", "n", "n-m", "a,b,c", "*/s" and "n-m/s".
//
//	"0 16 * * *"  daily at 16:00
//	"0 3 * * 0"   Sundays at 03:00
func ParseCron(expr string) (*Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}
	daysOfMonth, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-month field: %w", err)
	}
	months, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}
	daysOfWeek, err := parseField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-week field: %w", err)
	}

	// 7 is an alias for Sunday.
	for i, d := range daysOfWeek {
		if d == 7 {
			daysOfWeek[i] = 0
		}
	}

	return &Cron{
		minutes:     minutes,
		hours:       hours,
		daysOfMonth: daysOfMonth,
		months:      months,
		daysOfWeek:  uniqueInts(daysOfWeek),
	}, nil
}

// Next returns the first matching instant strictly after the given time,
// in its location. The search is capped at four years; a valid
// expression always matches well before that.
func (c *Cron) Next(after time.Time) time.Time {
	t := after.Add(time.Minute).Truncate(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, after.Location())

	maxMinutes := 4 * 366 * 24 * 60
	for i := 0; i < maxMinutes; i++ {
		if c.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

// matches reports whether t satisfies the expression. Day-of-month and
// day-of-week are OR'd when both are restricted, per standard cron.
func (c *Cron) matches(t time.Time) bool {
	if !containsInt(c.minutes, t.Minute()) ||
		!containsInt(c.hours, t.Hour()) ||
		!containsInt(c.months, int(t.Month())) {
		return false
	}

	domWildcard := len(c.daysOfMonth) == 31
	dowWildcard := len(c.daysOfWeek) == 7
	domMatch := containsInt(c.daysOfMonth, t.Day())
	dowMatch := containsInt(c.daysOfWeek, int(t.Weekday()))

	switch {
	case domWildcard && dowWildcard:
		return true
	case domWildcard:
		return dowMatch
	case dowWildcard:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// parseField parses one cron field into its sorted value set.
func parseField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return rangeInts(minVal, maxVal), nil
	}

	var result []int
	for _, part := range strings.Split(field, ",") {
		values, err := parseFieldPart(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	return uniqueInts(result), nil
}

// parseFieldPart parses a single list element: value, range or step.
func parseFieldPart(part string, minVal, maxVal int) ([]int, error) {
	if base, stepStr, ok := strings.Cut(part, "/"); ok {
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepStr)
		}

		start, end := minVal, maxVal
		switch {
		case base == "*":
		case strings.Contains(base, "-"):
			if start, end, err = parseRange(base, minVal, maxVal); err != nil {
				return nil, err
			}
		default:
			if start, err = strconv.Atoi(base); err != nil {
				return nil, fmt.Errorf("invalid value: %s", base)
			}
		}

		var result []int
		for i := start; i <= end; i += step {
			if i >= minVal && i <= maxVal {
				result = append(result, i)
			}
		}
		return result, nil
	}

	if strings.Contains(part, "-") {
		start, end, err := parseRange(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}
		return rangeInts(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d (allowed %d-%d)", val, minVal, maxVal)
	}
	return []int{val}, nil
}

// parseRange parses "n-m" and checks bounds.
func parseRange(s string, minVal, maxVal int) (int, int, error) {
	startStr, endStr, _ := strings.Cut(s, "-")
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start: %s", startStr)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end: %s", endStr)
	}
	if start > end || start < minVal || end > maxVal {
		return 0, 0, fmt.Errorf("invalid range: %d-%d (allowed %d-%d)", start, end, minVal, maxVal)
	}
	return start, end, nil
}

func rangeInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func containsInt(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

func uniqueInts(slice []int) []int {
	seen := make(map[int]bool, len(slice))
	result := make([]int, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Ints(result)
	return result
}
