package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/example/screentime-wellbeing/pkg/survey"
)

var (
	// ErrDegenerateSample is returned when a sample is too small (or has no
	// spread) for the requested statistic.
	ErrDegenerateSample = errors.New("degenerate sample")
	// ErrInvalidInput is shared with the survey loader.
	ErrInvalidInput = survey.ErrInvalidInput
)

// StatisticalAnalyzer computes the four survey reports.
type StatisticalAnalyzer struct {
	logger *zap.Logger
	config StatisticalConfig
}

// StatisticalConfig holds the analysis parameters.
type StatisticalConfig struct {
	ConfidenceLevel   float64           `json:"confidenceLevel" yaml:"confidence_level"`     // Interval confidence level
	SignificanceLevel float64           `json:"significanceLevel" yaml:"significance_level"` // Rejection threshold for p-values
	TrimProportion    float64           `json:"trimProportion" yaml:"trim_proportion"`       // Proportion cut from each tail before mean/std
	Indicators        []string          `json:"indicators" yaml:"indicators"`                // Indicators tested by HypothesisTests
	GenderLabels      map[string]string `json:"genderLabels" yaml:"gender_labels"`           // Display names for raw gender codes
}

// DefaultStatisticalConfig mirrors the published analysis: 99% intervals,
// alpha 0.05, untrimmed means and the 14 questionnaire items.
func DefaultStatisticalConfig() StatisticalConfig {
	return StatisticalConfig{
		ConfidenceLevel:   0.99,
		SignificanceLevel: 0.05,
		TrimProportion:    0,
		Indicators:        append([]string(nil), survey.DefaultIndicators...),
		GenderLabels: map[string]string{
			"0": "Female",
			"1": "Male",
		},
	}
}

// Validate rejects parameters outside their meaningful ranges.
func (c StatisticalConfig) Validate() error {
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1) {
		return fmt.Errorf("confidence level %v outside (0, 1)", c.ConfidenceLevel)
	}
	if !(c.SignificanceLevel > 0 && c.SignificanceLevel < 1) {
		return fmt.Errorf("significance level %v outside (0, 1)", c.SignificanceLevel)
	}
	if !(c.TrimProportion >= 0 && c.TrimProportion < 0.5) {
		return fmt.Errorf("trim proportion %v outside [0, 0.5)", c.TrimProportion)
	}
	return nil
}

// NewStatisticalAnalyzer creates a new statistical analyzer. A zero config
// falls back to DefaultStatisticalConfig.
func NewStatisticalAnalyzer(logger *zap.Logger, config StatisticalConfig) *StatisticalAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultStatisticalConfig()
	if config.ConfidenceLevel == 0 {
		config.ConfidenceLevel = defaults.ConfidenceLevel
	}
	if config.SignificanceLevel == 0 {
		config.SignificanceLevel = defaults.SignificanceLevel
	}
	if len(config.Indicators) == 0 {
		config.Indicators = defaults.Indicators
	}
	if config.GenderLabels == nil {
		config.GenderLabels = defaults.GenderLabels
	}
	return &StatisticalAnalyzer{
		logger: logger,
		config: config,
	}
}

// Config returns the effective configuration.
func (sa *StatisticalAnalyzer) Config() StatisticalConfig {
	return sa.config
}

// DescriptiveStats summarises one sample.
type DescriptiveStats struct {
	Count  int     `json:"count"`  // Sample size
	Mean   float64 `json:"mean"`   // Arithmetic mean
	StdDev float64 `json:"stdDev"` // Sample standard deviation (n-1); 0 when Count < 2
}

// ConfidenceInterval is a two-sided interval around a mean.
type ConfidenceInterval struct {
	Level       float64 `json:"level"`       // Confidence level
	LowerBound  float64 `json:"lowerBound"`  // Lower bound
	UpperBound  float64 `json:"upperBound"`  // Upper bound
	MarginError float64 `json:"marginError"` // Half-width
}

// Alternative selects the alternative hypothesis of a t-test.
type Alternative int

const (
	TwoSided Alternative = iota
	Greater
	Less
)

func (a Alternative) String() string {
	switch a {
	case Greater:
		return "greater"
	case Less:
		return "less"
	default:
		return "two-sided"
	}
}

// TTestResult holds the statistic, Welch–Satterthwaite degrees of freedom
// and p-value of a two-sample test.
type TTestResult struct {
	Statistic   float64     `json:"statistic"`
	DF          float64     `json:"df"`
	PValue      float64     `json:"pValue"`
	Alternative Alternative `json:"alternative"`
}

// Describe computes count, mean and sample standard deviation.
func Describe(data []float64) (DescriptiveStats, error) {
	if len(data) == 0 {
		return DescriptiveStats{}, fmt.Errorf("%w: empty sample", ErrDegenerateSample)
	}
	if err := checkFinite(data); err != nil {
		return DescriptiveStats{}, err
	}
	if len(data) == 1 {
		return DescriptiveStats{Count: 1, Mean: data[0]}, nil
	}
	mean, std := stat.MeanStdDev(data, nil)
	return DescriptiveStats{Count: len(data), Mean: mean, StdDev: std}, nil
}

// TrimmedDescribe drops floor(proportion*n) values from each tail before
// describing the sample. A proportion of 0 is identical to Describe.
func TrimmedDescribe(data []float64, proportion float64) (DescriptiveStats, error) {
	if proportion < 0 || proportion >= 0.5 {
		return DescriptiveStats{}, fmt.Errorf("%w: trim proportion %v outside [0, 0.5)", ErrInvalidInput, proportion)
	}
	cut := int(proportion * float64(len(data)))
	if cut == 0 {
		return Describe(data)
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return Describe(sorted[cut : len(sorted)-cut])
}

// Median returns the middle value, averaging the two middle values of an
// even-sized sample.
func Median(data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: median of empty sample", ErrDegenerateSample)
	}
	if err := checkFinite(data); err != nil {
		return 0, err
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}

// TCritical returns the two-tailed Student's t critical value for the
// confidence level with df degrees of freedom.
func TCritical(confidenceLevel, df float64) (float64, error) {
	if !(confidenceLevel > 0 && confidenceLevel < 1) {
		return 0, fmt.Errorf("%w: confidence level %v outside (0, 1)", ErrInvalidInput, confidenceLevel)
	}
	if !(df > 0) {
		return 0, fmt.Errorf("%w: %v degrees of freedom", ErrDegenerateSample, df)
	}
	alpha := 1 - confidenceLevel
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.Quantile(1 - alpha/2), nil
}

// MeanConfidenceInterval computes the t-based interval around the sample
// mean. Samples with fewer than two values have no interval.
func MeanConfidenceInterval(data []float64, confidenceLevel float64) (DescriptiveStats, ConfidenceInterval, float64, error) {
	desc, err := Describe(data)
	if err != nil {
		return DescriptiveStats{}, ConfidenceInterval{}, 0, err
	}
	if desc.Count < 2 {
		return desc, ConfidenceInterval{}, 0, fmt.Errorf("%w: confidence interval needs n > 1, got %d", ErrDegenerateSample, desc.Count)
	}

	tValue, err := TCritical(confidenceLevel, float64(desc.Count-1))
	if err != nil {
		return desc, ConfidenceInterval{}, 0, err
	}
	standardError := StandardError(desc)
	marginError := tValue * standardError

	return desc, ConfidenceInterval{
		Level:       confidenceLevel,
		LowerBound:  desc.Mean - marginError,
		UpperBound:  desc.Mean + marginError,
		MarginError: marginError,
	}, tValue, nil
}

// StandardError returns std/sqrt(n).
func StandardError(desc DescriptiveStats) float64 {
	if desc.Count == 0 {
		return math.NaN()
	}
	return desc.StdDev / math.Sqrt(float64(desc.Count))
}

// WelchTTest runs a two-sample t-test on summary statistics without
// assuming equal variances. The statistic is (a.Mean - b.Mean) / SE.
func WelchTTest(a, b DescriptiveStats, alternative Alternative) (TTestResult, error) {
	if a.Count < 2 || b.Count < 2 {
		return TTestResult{}, fmt.Errorf("%w: t-test needs two values per group, got %d and %d", ErrDegenerateSample, a.Count, b.Count)
	}
	for _, v := range []float64{a.Mean, a.StdDev, b.Mean, b.StdDev} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return TTestResult{}, fmt.Errorf("%w: non-finite summary statistic", ErrInvalidInput)
		}
	}

	va := a.StdDev * a.StdDev / float64(a.Count)
	vb := b.StdDev * b.StdDev / float64(b.Count)
	se := math.Sqrt(va + vb)
	if se == 0 {
		return TTestResult{}, fmt.Errorf("%w: both groups have zero variance", ErrDegenerateSample)
	}

	t := (a.Mean - b.Mean) / se
	df := (va + vb) * (va + vb) / (va*va/float64(a.Count-1) + vb*vb/float64(b.Count-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	var p float64
	switch alternative {
	case Greater:
		p = dist.Survival(t)
	case Less:
		p = dist.CDF(t)
	default:
		p = 2 * dist.Survival(math.Abs(t))
	}

	return TTestResult{Statistic: t, DF: df, PValue: p, Alternative: alternative}, nil
}

func checkFinite(data []float64) error {
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value %v at index %d", ErrInvalidInput, v, i)
		}
	}
	return nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
