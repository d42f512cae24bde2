package evaluation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/pkg/survey"
)

// IntervalRow summarises one screen-time field.
type IntervalRow struct {
	Field     survey.ScreenTimeField `json:"field"`
	Mean      float64                `json:"mean"`
	StdDev    float64                `json:"stdDev"`
	N         int                    `json:"n"`
	StdErr    float64                `json:"stdErr"`
	TCritical float64                `json:"tCritical"`
	Interval  ConfidenceInterval     `json:"interval"`
}

// Rounded returns the row with every statistic rounded to 2 decimals.
func (r IntervalRow) Rounded() IntervalRow {
	r.Mean = round2(r.Mean)
	r.StdDev = round2(r.StdDev)
	r.StdErr = round2(r.StdErr)
	r.TCritical = round2(r.TCritical)
	r.Interval.LowerBound = round2(r.Interval.LowerBound)
	r.Interval.UpperBound = round2(r.Interval.UpperBound)
	r.Interval.MarginError = round2(r.Interval.MarginError)
	return r
}

// IntervalReport holds one confidence interval per screen-time field.
type IntervalReport struct {
	Level float64       `json:"level"`
	Rows  []IntervalRow `json:"rows"`
}

// Row looks up the row for a field.
func (r *IntervalReport) Row(f survey.ScreenTimeField) (IntervalRow, bool) {
	for _, row := range r.Rows {
		if row.Field == f {
			return row, true
		}
	}
	return IntervalRow{}, false
}

// ConfidenceIntervals computes a t-based interval for the mean of every
// screen-time field at the configured confidence level.
func (sa *StatisticalAnalyzer) ConfidenceIntervals(ctx context.Context, ds *survey.Dataset) (*IntervalReport, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	level := sa.config.ConfidenceLevel
	report := &IntervalReport{
		Level: level,
		Rows:  make([]IntervalRow, 0, len(survey.ScreenTimeFields)),
	}

	for _, f := range survey.ScreenTimeFields {
		desc, ci, tValue, err := MeanConfidenceInterval(ds.Column(f), level)
		if err != nil {
			return nil, fmt.Errorf("confidence interval for %s: %w", f.Column(), err)
		}
		report.Rows = append(report.Rows, IntervalRow{
			Field:     f,
			Mean:      desc.Mean,
			StdDev:    desc.StdDev,
			N:         desc.Count,
			StdErr:    StandardError(desc),
			TCritical: tValue,
			Interval:  ci,
		})
	}

	sa.logger.Debug("Confidence intervals computed",
		zap.Float64("level", level),
		zap.Int("n", ds.Len()))
	return report, nil
}
