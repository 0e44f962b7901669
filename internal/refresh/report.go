package refresh

import (
	"fmt"
	"strings"
	"time"
)

// Report summarizes one refresh cycle.
type Report struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Skipped bool   `json:"skipped,omitempty"`
	Forced  bool   `json:"forced,omitempty"`

	Candidates    int `json:"candidates"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Updated       int `json:"updated"`
	FailedWrites  int `json:"failed_writes"`

	// Errors holds one entry per failed batch and one summary entry per
	// batch with failed writes.
	Errors []string `json:"errors,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Schedule gates Run to one weekday in a given location.
type Schedule struct {
	Any      bool
	Day      time.Weekday
	Location *time.Location
}

// Due reports whether a gated run should do work at t.
func (s Schedule) Due(t time.Time) bool {
	if s.Any {
		return true
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Weekday() == s.Day
}

func (s Schedule) String() string {
	if s.Any {
		return "any day"
	}
	return s.Day.String()
}

// ParseSchedule builds a Schedule from a weekday name ("friday", "fri") or
// "any", and an IANA timezone name.
func ParseSchedule(weekday, timezone string) (Schedule, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		loc = l
	}

	w := strings.ToLower(strings.TrimSpace(weekday))
	if w == "any" || w == "*" {
		return Schedule{Any: true, Location: loc}, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if w == name || (len(w) == 3 && strings.HasPrefix(name, w)) {
			return Schedule{Day: d, Location: loc}, nil
		}
	}
	return Schedule{}, fmt.Errorf("invalid weekday %q", weekday)
}

// Summary is a one-line description for logs and CLI output.
func (rep *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (candidates=%d batches=%d updated=%d", rep.Message, rep.Candidates, rep.Batches, rep.Updated)
	if rep.FailedBatches > 0 || rep.FailedWrites > 0 {
		fmt.Fprintf(&b, " failed_batches=%d failed_writes=%d", rep.FailedBatches, rep.FailedWrites)
	}
	b.WriteString(")")
	return b.String()
}
