// Package itinerary holds the live trip schedule: it reconciles the authored
// template with persisted state at load, applies check-in and structural
// mutations, and writes the whole schedule back after every change.
package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/tripkit/internal/trip"
)

// OverlayMode selects how persisted check-ins are matched to stops at load.
type OverlayMode string

const (
	// OverlayByPosition maps snapshot day i / item j onto day i / item j.
	OverlayByPosition OverlayMode = "position"
	// OverlayByID maps snapshot check-ins onto the stop with the same id.
	OverlayByID OverlayMode = "id"
)

// Snapshot is the decoded persisted schedule.
type Snapshot struct {
	Days []trip.Day
	// Legacy is set for the bare-array format, which only contributes
	// check-ins and never replaces the template's structure.
	Legacy bool
}

type rootedSnapshot struct {
	Days []trip.Day `json:"days"`
}

// DecodeSnapshot parses a stored value in either the rooted
// ({"days": [...]}) or the legacy bare-array format.
func DecodeSnapshot(raw string) (*Snapshot, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot")
	}

	if data[0] == '[' {
		var days []trip.Day
		if err := json.Unmarshal(data, &days); err != nil {
			return nil, err
		}
		return &Snapshot{Days: days, Legacy: true}, nil
	}

	var root rootedSnapshot
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &Snapshot{Days: root.Days}, nil
}

// EncodeSnapshot renders days in the rooted format.
func EncodeSnapshot(days []trip.Day) (string, error) {
	if days == nil {
		days = []trip.Day{}
	}
	data, err := json.Marshal(rootedSnapshot{Days: days})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Reconcile builds the live schedule from the template and an optional
// snapshot. The result shares no memory with either input, and the same
// inputs always produce the same schedule.
func Reconcile(tmpl *trip.Template, snap *Snapshot, mode OverlayMode) []trip.Day {
	source := tmpl.Days
	if snap != nil && !snap.Legacy && len(snap.Days) > 0 {
		source = snap.Days
	}

	days := trip.CloneDays(source)
	start := tmpl.Start()
	for i := range days {
		days[i].Date = trip.ProjectDate(start, i)
		for j := range days[i].Items {
			days[i].Items[j].ActualArrival = nil
			days[i].Items[j].ActualDeparture = nil
		}
	}

	if snap == nil {
		return days
	}
	if mode == OverlayByID {
		overlayByID(days, snap.Days)
	} else {
		overlayByPosition(days, snap.Days)
	}
	return days
}

func overlayByPosition(days, snap []trip.Day) {
	for i := range days {
		if i >= len(snap) {
			return
		}
		for j := range days[i].Items {
			if j >= len(snap[i].Items) {
				break
			}
			copyCheckIns(&days[i].Items[j], snap[i].Items[j])
		}
	}
}

func overlayByID(days, snap []trip.Day) {
	byID := make(map[int64]trip.Item)
	for _, d := range snap {
		for _, it := range d.Items {
			if _, seen := byID[it.ID]; !seen {
				byID[it.ID] = it
			}
		}
	}
	for i := range days {
		for j := range days[i].Items {
			if prev, ok := byID[days[i].Items[j].ID]; ok {
				copyCheckIns(&days[i].Items[j], prev)
			}
		}
	}
}

func copyCheckIns(dst *trip.Item, src trip.Item) {
	dst.SetCheckIn(trip.Arrival, copyString(src.ActualArrival))
	dst.SetCheckIn(trip.Departure, copyString(src.ActualDeparture))
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
