package trip

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hpungsan/tripkit/internal/errors"
)

//go:embed default_template.json
var defaultTemplateJSON []byte

// Template is the authored, read-only description of a trip.
type Template struct {
	Info Info  `json:"info"`
	Days []Day `json:"itinerary"`

	start time.Time
}

// Start returns the parsed start date.
func (t *Template) Start() time.Time {
	return t.start
}

// Default returns the built-in template.
func Default() (*Template, error) {
	return Parse(defaultTemplateJSON)
}

// LoadFile reads and validates a template from path.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("template", path)
		}
		return nil, errors.NewInternal(err)
	}
	return Parse(data)
}

// Load returns the template at path, or the built-in one when path is empty.
func Load(path string) (*Template, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse decodes and validates template JSON.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.NewInvalidTemplate([]string{fmt.Sprintf("invalid JSON: %v", err)})
	}
	if problems := Lint(&t); len(problems) > 0 {
		return nil, errors.NewInvalidTemplate(problems)
	}
	t.start, _ = ParseDate(t.Info.StartDate)
	return &t, nil
}

// Lint returns every problem found in t; an empty result means t is usable.
func Lint(t *Template) []string {
	var problems []string

	start, err := ParseDate(t.Info.StartDate)
	if err != nil {
		problems = append(problems, fmt.Sprintf("startDate %q is not YYYY-MM-DD", t.Info.StartDate))
	}
	if t.Info.EndDate != "" {
		end, err := ParseDate(t.Info.EndDate)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("endDate %q is not YYYY-MM-DD", t.Info.EndDate))
		case !start.IsZero() && end.Before(start):
			problems = append(problems, "endDate is before startDate")
		}
	}
	if len(t.Days) == 0 {
		problems = append(problems, "itinerary has no days")
	}
	return append(problems, LintDays(t.Days)...)
}

// LintDays checks a day list for duplicate day or stop ids, stops without an
// id, and times or check-ins that are not "HH:MM".
func LintDays(days []Day) []string {
	var problems []string

	dayIDs := make(map[int]bool)
	itemIDs := make(map[int64]bool)
	for i, d := range days {
		if dayIDs[d.ID] {
			problems = append(problems, fmt.Sprintf("day %d: duplicate day id %d", i, d.ID))
		}
		dayIDs[d.ID] = true

		for _, it := range d.Items {
			if it.ID == 0 {
				problems = append(problems, fmt.Sprintf("day %d: item without id", d.ID))
				continue
			}
			if itemIDs[it.ID] {
				problems = append(problems, fmt.Sprintf("duplicate item id %d", it.ID))
			}
			itemIDs[it.ID] = true
			if !ValidClock(it.Time) {
				problems = append(problems, fmt.Sprintf("item %d: time %q is not HH:MM", it.ID, it.Time))
			}
			for _, v := range []*string{it.ActualArrival, it.ActualDeparture} {
				if v != nil && !ValidClock(*v) {
					problems = append(problems, fmt.Sprintf("item %d: check-in %q is not HH:MM", it.ID, *v))
				}
			}
		}
	}

	return problems
}
