package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a report ID does not exist.
	ErrNotFound = errors.New("snow report not found")

	// ErrInvalidReport is wrapped by every ValidationError.
	ErrInvalidReport = errors.New("invalid snow report")
)

const (
	// DefaultListLimit applies when a filter does not set a limit.
	DefaultListLimit = 100
	// MaxListLimit caps the number of reports returned by one listing.
	MaxListLimit = 1000
)

// jst is used for timestamps submitted without a zone offset.
var jst = time.FixedZone("JST", 9*60*60)

// reportTimeLayouts are tried in order by ParseReportTime.
var reportTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// SnowReport describes one completed snow-clearing operation.
type SnowReport struct {
	ID        int64      `json:"id"`
	Area      string     `json:"area"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ValidationError names the report field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidReport
}

// NewReport builds a validated report for area covering [start, end],
// stamped with the current time. The ID is left for the store to assign.
func NewReport(area, start, end string) (SnowReport, error) {
	created := Now()
	r := SnowReport{
		Area:      area,
		StartTime: strings.TrimSpace(start),
		EndTime:   strings.TrimSpace(end),
		CreatedAt: &created,
	}
	if err := r.Validate(); err != nil {
		return SnowReport{}, err
	}
	return r, nil
}

// Validate checks the area and the work window.
func (r SnowReport) Validate() error {
	if r.Area == "" {
		return &ValidationError{Field: "area", Reason: "is required"}
	}
	if !IsDistrict(r.Area) {
		return &ValidationError{Field: "area", Reason: fmt.Sprintf("unknown district %q", r.Area)}
	}

	start, err := parseField("start_time", r.StartTime)
	if err != nil {
		return err
	}
	end, err := parseField("end_time", r.EndTime)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_time", Reason: "is before start_time"}
	}
	return nil
}

func parseField(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ValidationError{Field: field, Reason: "is required"}
	}
	t, err := ParseReportTime(value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: err.Error()}
	}
	return t, nil
}

// ParseReportTime parses a report timestamp in any accepted layout.
// Layouts without an offset are read as JST.
func ParseReportTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range reportTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, jst); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReportFilter narrows a report listing.
type ReportFilter struct {
	Area  string
	Limit int
}

// EffectiveLimit returns the limit clamped to [1, MaxListLimit], with
// DefaultListLimit for unset or negative values.
func (f ReportFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// Matches reports whether r passes the area filter.
func (f ReportFilter) Matches(r SnowReport) bool {
	return f.Area == "" || f.Area == r.Area
}
