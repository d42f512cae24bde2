package survey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks missing, malformed or non-numeric survey data.
var ErrInvalidInput = errors.New("invalid input")

const (
	// IDColumn is the join key shared by all three datasets.
	IDColumn = "ID"
	// GenderColumn is the demographic column used for per-gender means.
	GenderColumn = "gender"
)

// Activity is one of the four screen-time activities surveyed.
type Activity int

const (
	Computer Activity = iota
	Gaming
	Smartphone
	TV
)

// Activities lists every activity in column order.
var Activities = []Activity{Computer, Gaming, Smartphone, TV}

var (
	activityPrefixes = [...]string{"C", "G", "S", "T"}
	activityNames    = [...]string{"Computer", "Video Game", "Smartphone", "TV"}
)

// Prefix returns the column prefix used in the screen-time dataset.
func (a Activity) Prefix() string {
	if a < Computer || a > TV {
		return "?"
	}
	return activityPrefixes[a]
}

func (a Activity) String() string {
	if a < Computer || a > TV {
		return fmt.Sprintf("Activity(%d)", int(a))
	}
	return activityNames[a]
}

// DayType distinguishes weekday from weekend screen time.
type DayType int

const (
	Weekday DayType = iota
	Weekend
)

// Suffix returns the column suffix ("wk" or "we").
func (d DayType) Suffix() string {
	if d == Weekend {
		return "we"
	}
	return "wk"
}

func (d DayType) String() string {
	if d == Weekend {
		return "Weekend"
	}
	return "Weekday"
}

// ScreenTimeField identifies one of the eight numeric screen-time columns.
type ScreenTimeField struct {
	Activity Activity
	Day      DayType
}

// Column returns the CSV column name, e.g. "C_we".
func (f ScreenTimeField) Column() string {
	return f.Activity.Prefix() + "_" + f.Day.Suffix()
}

// Label returns a human readable name, e.g. "Computer (Weekend)".
func (f ScreenTimeField) Label() string {
	return fmt.Sprintf("%s (%s)", f.Activity, f.Day)
}

func (f ScreenTimeField) String() string { return f.Column() }

// MarshalText encodes the field as its column name so reports and map keys
// serialise readably.
func (f ScreenTimeField) MarshalText() ([]byte, error) {
	return []byte(f.Column()), nil
}

// UnmarshalText parses a column name produced by MarshalText.
func (f *ScreenTimeField) UnmarshalText(text []byte) error {
	parsed, ok := ParseScreenTimeField(string(text))
	if !ok {
		return fmt.Errorf("%w: unknown screen-time column %q", ErrInvalidInput, string(text))
	}
	*f = parsed
	return nil
}

// ParseScreenTimeField maps a column name such as "G_wk" back to its field.
func ParseScreenTimeField(column string) (ScreenTimeField, bool) {
	for _, f := range ScreenTimeFields {
		if strings.EqualFold(f.Column(), strings.TrimSpace(column)) {
			return f, true
		}
	}
	return ScreenTimeField{}, false
}

// ScreenTimeFields is the fixed reporting order of the eight columns.
var ScreenTimeFields = []ScreenTimeField{
	{Computer, Weekend}, {Computer, Weekday},
	{Gaming, Weekend}, {Gaming, Weekday},
	{Smartphone, Weekend}, {Smartphone, Weekday},
	{TV, Weekend}, {TV, Weekday},
}

// WeekendFields are the four weekend columns summed for the median split.
var WeekendFields = []ScreenTimeField{
	{Computer, Weekend}, {Gaming, Weekend}, {Smartphone, Weekend}, {TV, Weekend},
}

// DefaultIndicators are the 14 well-being items tested for association with
// weekend screen time.
var DefaultIndicators = []string{
	"Relx", "Optm", "Usef", "Intp", "Engs", "Dealpr", "Thcklr",
	"Goodme", "Clsep", "Conf", "Mkmind", "Loved", "Intthg", "Cheer",
}

// Participant is one joined survey respondent. Values are never mutated
// after the dataset is built.
type Participant struct {
	ID           string                      `json:"id"`
	Demographics map[string]string           `json:"demographics"`
	ScreenTime   map[ScreenTimeField]float64 `json:"screenTime"`
	Indicators   map[string]float64          `json:"indicators"`
}

// Gender returns the raw gender code, or "" when the column is absent.
func (p *Participant) Gender() string {
	return p.Demographics[GenderColumn]
}

// ActivityTotal sums weekday and weekend time for one activity.
func (p *Participant) ActivityTotal(a Activity) float64 {
	return p.ScreenTime[ScreenTimeField{a, Weekday}] + p.ScreenTime[ScreenTimeField{a, Weekend}]
}

// Total sums the given screen-time fields.
func (p *Participant) Total(fields ...ScreenTimeField) float64 {
	var sum float64
	for _, f := range fields {
		sum += p.ScreenTime[f]
	}
	return sum
}

// Dataset is the inner join of the demographic, screen-time and
// well-being sources.
type Dataset struct {
	Participants []Participant `json:"participants"`
	// Demographics lists the non-ID columns of the demographic source.
	Demographics []string `json:"demographics"`
	// Indicators lists the well-being columns in source header order.
	Indicators []string  `json:"indicators"`
	Stats      JoinStats `json:"stats"`
	// Checksum identifies the decoded input bytes; set by Loader.
	Checksum string `json:"checksum,omitempty"`
}

// Len returns the number of joined participants.
func (d *Dataset) Len() int { return len(d.Participants) }

// Column extracts one screen-time field across all participants.
func (d *Dataset) Column(f ScreenTimeField) []float64 {
	out := make([]float64, len(d.Participants))
	for i := range d.Participants {
		out[i] = d.Participants[i].ScreenTime[f]
	}
	return out
}

// HasIndicator reports whether the well-being source carried the column.
func (d *Dataset) HasIndicator(name string) bool {
	for _, ind := range d.Indicators {
		if ind == name {
			return true
		}
	}
	return false
}

// Indicator extracts one well-being indicator across all participants.
func (d *Dataset) Indicator(name string) ([]float64, error) {
	if !d.HasIndicator(name) {
		return nil, fmt.Errorf("%w: missing well-being indicator %q", ErrInvalidInput, name)
	}
	out := make([]float64, len(d.Participants))
	for i := range d.Participants {
		out[i] = d.Participants[i].Indicators[name]
	}
	return out, nil
}

// Totals sums the given fields per participant.
func (d *Dataset) Totals(fields ...ScreenTimeField) []float64 {
	out := make([]float64, len(d.Participants))
	for i := range d.Participants {
		out[i] = d.Participants[i].Total(fields...)
	}
	return out
}

// IndicatorScores returns one participant's indicator values in dataset
// column order.
func (d *Dataset) IndicatorScores(p *Participant) []float64 {
	out := make([]float64, len(d.Indicators))
	for i, name := range d.Indicators {
		out[i] = p.Indicators[name]
	}
	return out
}
