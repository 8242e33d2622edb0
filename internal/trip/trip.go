package trip

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Category is the kind of stop. The set is open; these are the values the
// built-in template and the surfaces know about.
type Category string

const (
	CategoryTransport  Category = "transport"
	CategoryFood       Category = "food"
	CategoryAttraction Category = "attraction"
	CategoryShop       Category = "shop"
	CategoryLodging    Category = "lodging"
)

// CheckInKind selects which check-in field an operation touches.
type CheckInKind string

const (
	Arrival   CheckInKind = "arrival"
	Departure CheckInKind = "departure"
)

// ParseCheckInKind maps user input to a CheckInKind. Empty means arrival.
func ParseCheckInKind(s string) (CheckInKind, bool) {
	switch CheckInKind(s) {
	case "", Arrival:
		return Arrival, true
	case Departure:
		return Departure, true
	default:
		return "", false
	}
}

// Location is the trip's home location, used for weather lookups.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat,string"`
	Lon  float64 `json:"lon,string"`
}

// UnmarshalJSON accepts coordinates written either as numbers or as strings.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string          `json:"name"`
		Lat  json.RawMessage `json:"lat"`
		Lon  json.RawMessage `json:"lon"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	lat, err := parseCoord(raw.Lat)
	if err != nil {
		return fmt.Errorf("location lat: %w", err)
	}
	lon, err := parseCoord(raw.Lon)
	if err != nil {
		return fmt.Errorf("location lon: %w", err)
	}
	*l = Location{Name: raw.Name, Lat: lat, Lon: lon}
	return nil
}

func parseCoord(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if s[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if s = strings.TrimSpace(s); s == "" {
			return 0, nil
		}
	}
	return strconv.ParseFloat(s, 64)
}

// Info is the authored header of a trip.
type Info struct {
	Title       string   `json:"title"`
	SubTitle    string   `json:"subTitle,omitempty"`
	Description string   `json:"description,omitempty"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate,omitempty"`
	Location    Location `json:"location"`
}

// Details is the optional structured annotation of a stop. Every field is
// optional; which ones are used depends on the stop's Category
// (Line/Platform for transport, MustTry/Reservation for food, ...).
type Details struct {
	Note        string            `json:"note,omitempty"`
	Address     string            `json:"address,omitempty"`
	Line        string            `json:"line,omitempty"`
	Platform    string            `json:"platform,omitempty"`
	Price       string            `json:"price,omitempty"`
	Reservation string            `json:"reservation,omitempty"`
	Kind        string            `json:"type,omitempty"`
	MustSee     []string          `json:"mustSee,omitempty"`
	MustTry     []string          `json:"mustTry,omitempty"`
	MustEat     []string          `json:"mustEat,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether no field is set.
func (d Details) IsZero() bool {
	return d.Note == "" && d.Address == "" && d.Line == "" && d.Platform == "" &&
		d.Price == "" && d.Reservation == "" && d.Kind == "" &&
		len(d.MustSee) == 0 && len(d.MustTry) == 0 && len(d.MustEat) == 0 && len(d.Extra) == 0
}

// Clone returns a deep copy.
func (d Details) Clone() Details {
	out := d
	out.MustSee = cloneStrings(d.MustSee)
	out.MustTry = cloneStrings(d.MustTry)
	out.MustEat = cloneStrings(d.MustEat)
	if d.Extra != nil {
		out.Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Item is one scheduled stop.
type Item struct {
	ID              int64    `json:"id"`
	Time            string   `json:"time"`
	Location        string   `json:"location"`
	Desc            string   `json:"desc"`
	Type            Category `json:"type"`
	Details         Details  `json:"details"`
	ActualArrival   *string  `json:"actualArrival"`
	ActualDeparture *string  `json:"actualDeparture"`
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	out := it
	out.Details = it.Details.Clone()
	out.ActualArrival = cloneStringPtr(it.ActualArrival)
	out.ActualDeparture = cloneStringPtr(it.ActualDeparture)
	return out
}

// CheckIn returns the field selected by kind.
func (it *Item) CheckIn(kind CheckInKind) *string {
	if kind == Departure {
		return it.ActualDeparture
	}
	return it.ActualArrival
}

// SetCheckIn stores value (nil clears) in the field selected by kind.
func (it *Item) SetCheckIn(kind CheckInKind, value *string) {
	if kind == Departure {
		it.ActualDeparture = value
		return
	}
	it.ActualArrival = value
}

// Day is one calendar day of the trip. Date is derived from the trip start
// date and the day's position; it is output only.
type Day struct {
	ID    int    `json:"id"`
	Date  string `json:"date,omitempty"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Clone returns a deep copy.
func (d Day) Clone() Day {
	out := d
	out.Items = make([]Item, len(d.Items))
	for i, it := range d.Items {
		out.Items[i] = it.Clone()
	}
	return out
}

// CloneDays deep-copies a day list.
func CloneDays(days []Day) []Day {
	out := make([]Day, len(days))
	for i, d := range days {
		out[i] = d.Clone()
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
