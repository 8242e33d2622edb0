package weather

import (
	"math"
	"time"

	"github.com/hpungsan/tripkit/internal/trip"
)

// DaySummary condenses the slots of one calendar day.
type DaySummary struct {
	Date      string  `json:"date"`
	MinTemp   float64 `json:"min_temp"`
	MaxTemp   float64 `json:"max_temp"`
	Condition string  `json:"condition"`
	Code      int     `json:"code"`
	MaxPop    float64 `json:"max_pop"`
}

// Daily groups f's slots by local calendar date. When dates is non-empty only
// those dates are returned, in that order, skipping any without slots.
func Daily(f Forecast, dates []string) []DaySummary {
	zone := time.FixedZone("", f.TimezoneOffset)

	type acc struct {
		sum    DaySummary
		counts map[string]int
		codes  map[string]int
		order  []string
	}
	byDate := make(map[string]*acc)
	var seen []string

	for _, s := range f.Slots {
		date := time.Unix(s.Time, 0).In(zone).Format(trip.DateLayout)
		a, ok := byDate[date]
		if !ok {
			a = &acc{
				sum:    DaySummary{Date: date, MinTemp: math.Inf(1), MaxTemp: math.Inf(-1)},
				counts: make(map[string]int),
				codes:  make(map[string]int),
			}
			byDate[date] = a
			seen = append(seen, date)
		}
		a.sum.MinTemp = math.Min(a.sum.MinTemp, s.Temp)
		a.sum.MaxTemp = math.Max(a.sum.MaxTemp, s.Temp)
		a.sum.MaxPop = math.Max(a.sum.MaxPop, s.Pop)
		if _, ok := a.counts[s.Condition]; !ok {
			a.order = append(a.order, s.Condition)
			a.codes[s.Condition] = s.Code
		}
		a.counts[s.Condition]++
	}

	if len(dates) == 0 {
		dates = seen
	}
	out := make([]DaySummary, 0, len(dates))
	for _, d := range dates {
		a, ok := byDate[d]
		if !ok {
			continue
		}
		// Most frequent condition; ties go to the earliest.
		best := ""
		for _, c := range a.order {
			if best == "" || a.counts[c] > a.counts[best] {
				best = c
			}
		}
		a.sum.Condition = best
		a.sum.Code = a.codes[best]
		out = append(out, a.sum)
	}
	return out
}

var defaultDays = []Slot{
	{Temp: 2, Code: 600, Condition: "Snow", Pop: 0.85},
	{Temp: -1, Code: 601, Condition: "Snow", Pop: 0.85},
	{Temp: 3, Code: 804, Condition: "Clouds", Pop: 0.2},
	{Temp: -2, Code: 601, Condition: "Snow", Pop: 0.85},
	{Temp: 4, Code: 804, Condition: "Clouds", Pop: 0.2},
}

// DefaultForecast is the placeholder shown before any forecast was fetched:
// one midday slot per date, cycling through a snowy winter week.
func DefaultForecast(location string, dates []string) Forecast {
	f := Forecast{Location: location, Slots: make([]Slot, 0, len(dates))}
	for i, d := range dates {
		day, err := trip.ParseDate(d)
		if err != nil {
			continue
		}
		s := defaultDays[i%len(defaultDays)]
		s.Time = day.Add(12 * time.Hour).Unix()
		f.Slots = append(f.Slots, s)
	}
	return f
}
