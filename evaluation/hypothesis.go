package evaluation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/pkg/survey"
)

const (
	RejectNull = "We reject the null hypothesis"
	AcceptNull = "We accept the null hypothesis"
)

// MedianSplit partitions participant indices around the median total.
type MedianSplit struct {
	Median float64 `json:"median"`
	High   []int   `json:"high"` // Strictly above the median
	Low    []int   `json:"low"`  // At or below the median
}

// SplitByMedian partitions totals by their median. Values equal to the
// median go to Low.
func SplitByMedian(totals []float64) (MedianSplit, error) {
	median, err := Median(totals)
	if err != nil {
		return MedianSplit{}, err
	}
	split := MedianSplit{Median: median}
	for i, v := range totals {
		if v > median {
			split.High = append(split.High, i)
		} else {
			split.Low = append(split.Low, i)
		}
	}
	return split, nil
}

// HypothesisRow is the outcome of one indicator's test.
type HypothesisRow struct {
	Indicator  string           `json:"indicator"`
	High       DescriptiveStats `json:"high"`
	Low        DescriptiveStats `json:"low"`
	Test       TTestResult      `json:"test"`
	Reject     bool             `json:"reject"`
	Conclusion string           `json:"conclusion"`
}

// HypothesisReport holds the tests of every configured indicator.
type HypothesisReport struct {
	Median         float64         `json:"median"`
	HighCount      int             `json:"highCount"`
	LowCount       int             `json:"lowCount"`
	Alpha          float64         `json:"alpha"`
	TrimProportion float64         `json:"trimProportion"`
	Rows           []HypothesisRow `json:"rows"`
}

// HypothesisTests splits participants by median weekend screen time and
// tests, per indicator, whether the high group scores greater than the
// low group.
func (sa *StatisticalAnalyzer) HypothesisTests(ctx context.Context, ds *survey.Dataset) (*HypothesisReport, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	for _, name := range sa.config.Indicators {
		if !ds.HasIndicator(name) {
			return nil, fmt.Errorf("%w: missing well-being indicator %q", ErrInvalidInput, name)
		}
	}

	split, err := SplitByMedian(ds.Totals(survey.WeekendFields...))
	if err != nil {
		return nil, fmt.Errorf("weekend screen time median: %w", err)
	}
	if len(split.High) == 0 || len(split.Low) == 0 {
		return nil, fmt.Errorf("%w: median split left %d high and %d low participants",
			ErrDegenerateSample, len(split.High), len(split.Low))
	}

	report := &HypothesisReport{
		Median:         split.Median,
		HighCount:      len(split.High),
		LowCount:       len(split.Low),
		Alpha:          sa.config.SignificanceLevel,
		TrimProportion: sa.config.TrimProportion,
		Rows:           make([]HypothesisRow, 0, len(sa.config.Indicators)),
	}

	for _, name := range sa.config.Indicators {
		values, err := ds.Indicator(name)
		if err != nil {
			return nil, err
		}
		row, err := sa.testIndicator(name, pick(values, split.High), pick(values, split.Low))
		if err != nil {
			return nil, fmt.Errorf("t-test for %s: %w", name, err)
		}
		report.Rows = append(report.Rows, row)
	}

	sa.logger.Debug("Hypothesis tests completed",
		zap.Float64("median", report.Median),
		zap.Int("high", report.HighCount),
		zap.Int("low", report.LowCount),
		zap.Int("indicators", len(report.Rows)))
	return report, nil
}

func (sa *StatisticalAnalyzer) testIndicator(name string, high, low []float64) (HypothesisRow, error) {
	highStats, err := TrimmedDescribe(high, sa.config.TrimProportion)
	if err != nil {
		return HypothesisRow{}, err
	}
	lowStats, err := TrimmedDescribe(low, sa.config.TrimProportion)
	if err != nil {
		return HypothesisRow{}, err
	}
	result, err := WelchTTest(highStats, lowStats, Greater)
	if err != nil {
		return HypothesisRow{}, err
	}

	row := HypothesisRow{
		Indicator:  name,
		High:       highStats,
		Low:        lowStats,
		Test:       result,
		Reject:     result.PValue < sa.config.SignificanceLevel,
		Conclusion: AcceptNull,
	}
	if row.Reject {
		row.Conclusion = RejectNull
	}
	return row, nil
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
