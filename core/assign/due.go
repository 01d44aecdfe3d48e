package assign

import (
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
)

// DueClient is a client scheduled for the target date.
type DueClient struct {
	Client   model.Client
	DueDate  time.Time
	Services model.ServiceSet
}

// DueResult is the output of the due client selection.
type DueResult struct {
	// Evaluated counts active clients considered.
	Evaluated int
	Due       []DueClient
	Issues    []model.DataQualityIssue
}

// DueSelector computes next-due dates from visit frequencies.
type DueSelector struct {
	intervals map[string]int
	log       logger.Logger
}

// NewDueSelector indexes the active frequency settings. Inactive settings are
// ignored so the fallback table applies to them.
func NewDueSelector(freqs []model.FrequencySetting, log logger.Logger) *DueSelector {
	iv := make(map[string]int, len(freqs))
	for _, f := range freqs {
		if !f.Active {
			continue
		}
		iv[model.NormalizeKey(f.Name)] = f.IntervalDays
	}
	return &DueSelector{intervals: iv, log: log}
}

// Interval resolves a frequency name to days.
func (s *DueSelector) Interval(name string) (int, bool) {
	k := model.NormalizeKey(name)
	if d, ok := s.intervals[k]; ok {
		return d, true
	}
	d, ok := model.FallbackIntervals[k]
	return d, ok
}

// NextDue returns the first occurrence of last + n*interval (n >= 1) that is
// on or after today.
func NextDue(last, today time.Time, interval int) time.Time {
	next := model.AddDays(last, interval)
	if gap := model.DaysBetween(next, today); gap > 0 {
		steps := (gap + interval - 1) / interval
		next = model.AddDays(next, steps*interval)
	}
	return next
}

// Select returns the active clients due on or before target, ordered by
// client ID. Clients with unusable records are reported as issues.
func (s *DueSelector) Select(clients []model.Client, today, target time.Time) DueResult {
	today, target = model.Day(today), model.Day(target)
	var res DueResult
	skip := func(c model.Client, reason string) {
		s.log.Warnf("skipping client %s: %s", c.ID, reason)
		res.Issues = append(res.Issues, model.DataQualityIssue{Entity: "client", ID: c.ID, Reason: reason})
	}
	for _, c := range clients {
		if err := c.Validate(); err != nil {
			skip(c, "invalid status flags")
			continue
		}
		if !c.Active {
			continue
		}
		res.Evaluated++
		if strings.TrimSpace(c.Region) == "" {
			skip(c, "missing region")
			continue
		}
		if strings.TrimSpace(c.Route) == "" {
			skip(c, "missing route")
			continue
		}
		if c.LastServiceDate == nil {
			skip(c, "missing last service date")
			continue
		}
		interval, ok := s.Interval(c.Frequency)
		if !ok {
			skip(c, "unknown frequency "+c.Frequency)
			continue
		}
		if interval <= 0 {
			skip(c, "non-positive interval for frequency "+c.Frequency)
			continue
		}
		next := NextDue(*c.LastServiceDate, today, interval)
		if next.After(target) {
			continue
		}
		res.Due = append(res.Due, DueClient{Client: c, DueDate: next, Services: c.ServiceSet()})
	}
	sort.Slice(res.Due, func(i, j int) bool { return res.Due[i].Client.ID < res.Due[j].Client.ID })
	s.log.Debugw("due selection", map[string]any{
		"evaluated": res.Evaluated,
		"due":       len(res.Due),
		"skipped":   len(res.Issues),
	})
	return res
}
