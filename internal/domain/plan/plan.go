// Package plan splits a year/month range into the year chunks submitted as one batch job each.
package plan

import (
	"github.com/target/ivt-chain/internal/domain/model"
	apperrors "github.com/target/ivt-chain/internal/errors"
)

// Request describes the range to process and the number of years per chunk.
type Request struct {
	StartYear  int
	EndYear    int
	StartMonth int
	EndMonth   int
	ChunkSize  int
}

// Validate checks the request bounds and returns an InvalidRange error naming the first bad field.
func (r Request) Validate() error {
	if r.StartYear > r.EndYear {
		return apperrors.InvalidRangef("start_year", "start year %d is after end year %d", r.StartYear, r.EndYear)
	}
	if r.StartMonth < 1 || r.StartMonth > 12 {
		return apperrors.InvalidRangef("start_month", "start month %d outside [1,12]", r.StartMonth)
	}
	if r.EndMonth < 1 || r.EndMonth > 12 {
		return apperrors.InvalidRangef("end_month", "end month %d outside [1,12]", r.EndMonth)
	}
	if r.ChunkSize < 1 {
		return apperrors.InvalidRangef("chunk_size", "chunk size must be at least 1, got %d", r.ChunkSize)
	}
	if r.StartYear == r.EndYear && r.StartMonth > r.EndMonth {
		return apperrors.InvalidRangef("start_month",
			"start month %d is after end month %d within year %d", r.StartMonth, r.EndMonth, r.StartYear)
	}
	return nil
}

type position int

const (
	single position = iota
	first
	last
	interior
)

func classify(chunkStart, chunkEnd, startYear, endYear int) position {
	switch {
	case chunkStart == startYear && chunkEnd == endYear:
		return single
	case chunkStart == startYear:
		return first
	case chunkEnd == endYear:
		return last
	default:
		return interior
	}
}

// Plan returns the chunks covering the request in chronological order.
// Chunks start at StartYear and advance by ChunkSize years; the final chunk is clamped to EndYear.
// Only the chunk holding StartYear keeps StartMonth and only the chunk holding EndYear keeps EndMonth.
func Plan(req Request) ([]model.WorkChunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var chunks []model.WorkChunk
	for y, end := req.StartYear, 0; ; y = end + 1 {
		// ChunkSize may be as large as math.MaxInt; clamp before adding so the end year cannot wrap.
		end = y + min(req.ChunkSize-1, req.EndYear-y)
		c := model.WorkChunk{StartYear: y, EndYear: end}
		switch classify(y, end, req.StartYear, req.EndYear) {
		case single:
			c.StartMonth, c.EndMonth = req.StartMonth, req.EndMonth
		case first:
			c.StartMonth, c.EndMonth = req.StartMonth, 12
		case last:
			c.StartMonth, c.EndMonth = 1, req.EndMonth
		case interior:
			c.StartMonth, c.EndMonth = 1, 12
		}
		chunks = append(chunks, c)
		if end == req.EndYear {
			break
		}
	}
	return chunks, nil
}
