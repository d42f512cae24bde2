package evaluation

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/pkg/survey"
)

// FieldMean is the mean of one screen-time column.
type FieldMean struct {
	Field survey.ScreenTimeField `json:"field"`
	Mean  float64                `json:"mean"`
}

// GenderMeans holds the per-field means of one gender group.
type GenderMeans struct {
	Gender string      `json:"gender"` // Raw code from the demographic source
	Label  string      `json:"label"`  // Display name, falls back to the code
	Count  int         `json:"count"`
	Means  []FieldMean `json:"means"`
}

// ScreenTimeReport is the output of the screen-time aggregator.
type ScreenTimeReport struct {
	Fields  []survey.ScreenTimeField `json:"fields"`
	Overall []FieldMean              `json:"overall"`
	Genders []GenderMeans            `json:"genders"`
}

// Mean looks up the overall mean of a field.
func (r *ScreenTimeReport) Mean(f survey.ScreenTimeField) (float64, bool) {
	for _, m := range r.Overall {
		if m.Field == f {
			return m.Mean, true
		}
	}
	return 0, false
}

// GenderMean looks up the mean of a field for one raw gender code.
func (r *ScreenTimeReport) GenderMean(gender string, f survey.ScreenTimeField) (float64, bool) {
	for _, g := range r.Genders {
		if g.Gender != gender {
			continue
		}
		for _, m := range g.Means {
			if m.Field == f {
				return m.Mean, true
			}
		}
	}
	return 0, false
}

// ScreenTime computes the mean of every screen-time field overall and per
// gender.
func (sa *StatisticalAnalyzer) ScreenTime(ctx context.Context, ds *survey.Dataset) (*ScreenTimeReport, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrDegenerateSample)
	}
	if !hasColumn(ds.Demographics, survey.GenderColumn) {
		return nil, fmt.Errorf("%w: missing demographic column %q", ErrInvalidInput, survey.GenderColumn)
	}

	report := &ScreenTimeReport{
		Fields: append([]survey.ScreenTimeField(nil), survey.ScreenTimeFields...),
	}

	overall, err := fieldMeans(ds.Participants)
	if err != nil {
		return nil, err
	}
	report.Overall = overall

	groups := make(map[string][]survey.Participant)
	for _, p := range ds.Participants {
		g := p.Gender()
		if g == "" {
			return nil, fmt.Errorf("%w: %s=%s has no %s", ErrInvalidInput, survey.IDColumn, p.ID, survey.GenderColumn)
		}
		groups[g] = append(groups[g], p)
	}

	genders := make([]string, 0, len(groups))
	for g := range groups {
		genders = append(genders, g)
	}
	sort.Strings(genders)

	for _, g := range genders {
		means, err := fieldMeans(groups[g])
		if err != nil {
			return nil, err
		}
		report.Genders = append(report.Genders, GenderMeans{
			Gender: g,
			Label:  sa.genderLabel(g),
			Count:  len(groups[g]),
			Means:  means,
		})
	}

	sa.logger.Debug("Screen time aggregated",
		zap.Int("participants", ds.Len()),
		zap.Int("genders", len(report.Genders)))
	return report, nil
}

func (sa *StatisticalAnalyzer) genderLabel(code string) string {
	if label, ok := sa.config.GenderLabels[code]; ok {
		return label
	}
	return code
}

func fieldMeans(participants []survey.Participant) ([]FieldMean, error) {
	means := make([]FieldMean, 0, len(survey.ScreenTimeFields))
	values := make([]float64, len(participants))
	for _, f := range survey.ScreenTimeFields {
		for i := range participants {
			values[i] = participants[i].ScreenTime[f]
		}
		desc, err := Describe(values)
		if err != nil {
			return nil, fmt.Errorf("mean of %s: %w", f.Column(), err)
		}
		means = append(means, FieldMean{Field: f, Mean: desc.Mean})
	}
	return means, nil
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}
