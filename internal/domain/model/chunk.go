// Package model defines the core data types shared by the ivt-chain planner, submitter and journal.
package model

import (
	"fmt"
	"strconv"
)

// WorkChunk is a contiguous span of years (with boundary months) processed by one batch job.
// A chunk is immutable once produced by the planner.
type WorkChunk struct {
	StartYear  int `json:"start_year"`
	EndYear    int `json:"end_year"`
	StartMonth int `json:"start_month"`
	EndMonth   int `json:"end_month"`
}

// String renders the chunk as "YYYY-MM..YYYY-MM".
func (c WorkChunk) String() string {
	return fmt.Sprintf("%04d-%02d..%04d-%02d", c.StartYear, c.StartMonth, c.EndYear, c.EndMonth)
}

// Months lists the months the chunk covers in chronological order. The first year starts at
// StartMonth and the last year stops at EndMonth; years in between cover all twelve months.
func (c WorkChunk) Months() []MonthKey {
	if c.StartYear > c.EndYear {
		return nil
	}
	var out []MonthKey
	for y := c.StartYear; y <= c.EndYear; y++ {
		first, last := 1, 12
		if y == c.StartYear {
			first = c.StartMonth
		}
		if y == c.EndYear {
			last = c.EndMonth
		}
		for m := first; m <= last; m++ {
			out = append(out, NewMonthKey(y, m))
		}
	}
	return out
}

// MonthKey identifies one month of model output as "YYYYMM".
type MonthKey string

// NewMonthKey formats a year and month as a MonthKey.
func NewMonthKey(year, month int) MonthKey {
	return MonthKey(fmt.Sprintf("%04d%02d", year, month))
}

// Year returns the year part of the key, or 0 if the key is malformed.
func (k MonthKey) Year() int {
	if len(k) != 6 {
		return 0
	}
	y, err := strconv.Atoi(string(k[:4]))
	if err != nil {
		return 0
	}
	return y
}

// Month returns the month part of the key, or 0 if the key is malformed.
func (k MonthKey) Month() int {
	if len(k) != 6 {
		return 0
	}
	m, err := strconv.Atoi(string(k[4:]))
	if err != nil {
		return 0
	}
	return m
}

// String implements fmt.Stringer.
func (k MonthKey) String() string { return string(k) }
