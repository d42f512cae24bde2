package survey

import (
	"fmt"
	"math"
	"strconv"
)

// JoinStats describes how many rows each source contributed and how many
// survived the inner join.
type JoinStats struct {
	Demographics int `json:"demographics"`
	ScreenTime   int `json:"screenTime"`
	WellBeing    int `json:"wellBeing"`
	Joined       int `json:"joined"`
	// Distinct is the number of IDs seen in at least one source.
	Distinct int `json:"distinct"`
}

// Dropped returns the number of IDs missing from at least one source.
func (s JoinStats) Dropped() int {
	return s.Distinct - s.Joined
}

// Join inner-joins the three tables on ID. Rows are emitted in the order
// of the demographic table; IDs absent from any source are dropped.
func Join(demographics, screenTime, wellBeing *Table) (*Dataset, error) {
	for _, f := range ScreenTimeFields {
		if !screenTime.HasColumn(f.Column()) {
			return nil, fmt.Errorf("%w: %s has no %q column", ErrInvalidInput, screenTime.Name, f.Column())
		}
	}

	ds := &Dataset{
		Demographics: demographics.Columns(),
		Indicators:   wellBeing.Columns(),
		Stats: JoinStats{
			Demographics: demographics.Len(),
			ScreenTime:   screenTime.Len(),
			WellBeing:    wellBeing.Len(),
		},
	}

	distinct := make(map[string]struct{}, demographics.Len())
	for _, t := range []*Table{demographics, screenTime, wellBeing} {
		for _, id := range t.Order {
			distinct[id] = struct{}{}
		}
	}
	ds.Stats.Distinct = len(distinct)

	for _, id := range demographics.Order {
		if _, ok := screenTime.Rows[id]; !ok {
			continue
		}
		if _, ok := wellBeing.Rows[id]; !ok {
			continue
		}

		p := Participant{
			ID:           id,
			Demographics: make(map[string]string, len(ds.Demographics)),
			ScreenTime:   make(map[ScreenTimeField]float64, len(ScreenTimeFields)),
			Indicators:   make(map[string]float64, len(ds.Indicators)),
		}
		for _, col := range ds.Demographics {
			p.Demographics[col], _ = demographics.Value(id, col)
		}
		for _, f := range ScreenTimeFields {
			v, err := numericValue(screenTime, id, f.Column())
			if err != nil {
				return nil, err
			}
			p.ScreenTime[f] = v
		}
		for _, col := range ds.Indicators {
			v, err := numericValue(wellBeing, id, col)
			if err != nil {
				return nil, err
			}
			p.Indicators[col] = v
		}
		ds.Participants = append(ds.Participants, p)
	}
	ds.Stats.Joined = len(ds.Participants)
	return ds, nil
}

func numericValue(t *Table, id, col string) (float64, error) {
	raw, ok := t.Value(id, col)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no %q column", ErrInvalidInput, t.Name, col)
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: %s %s=%s: missing %q", ErrInvalidInput, t.Name, IDColumn, id, col)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %s=%s: non-numeric %q value %q", ErrInvalidInput, t.Name, IDColumn, id, col, raw)
	}
	return v, nil
}
