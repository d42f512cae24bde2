package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/screentime-wellbeing/pkg/metrics"
	"github.com/example/screentime-wellbeing/pkg/survey"
)

// Component names one of the four analyses.
type Component string

const (
	ScreenTimeComponent Component = "screentime"
	WellBeingComponent  Component = "wellbeing"
	IntervalComponent   Component = "interval"
	HypothesisComponent Component = "hypothesis"
)

// AllComponents lists every analysis in report order.
var AllComponents = []Component{ScreenTimeComponent, WellBeingComponent, IntervalComponent, HypothesisComponent}

// ParseComponent maps a CLI name to a Component.
func ParseComponent(name string) (Component, error) {
	for _, c := range AllComponents {
		if strings.EqualFold(string(c), strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown component %q", name)
}

// Results holds the reports of the components that were run. Components
// that were not requested are nil.
type Results struct {
	ScreenTime *ScreenTimeReport `json:"screenTime,omitempty"`
	WellBeing  *WellBeingReport  `json:"wellBeing,omitempty"`
	Intervals  *IntervalReport   `json:"intervals,omitempty"`
	Hypotheses *HypothesisReport `json:"hypotheses,omitempty"`
	// Cached lists components served from the result cache.
	Cached   []Component   `json:"cached,omitempty"`
	Duration time.Duration `json:"duration"`
}

// KeyFindings summarises the significant results in plain sentences.
func (r *Results) KeyFindings() []string {
	var findings []string
	if r.Hypotheses != nil {
		for _, row := range r.Hypotheses.Rows {
			if row.Reject {
				findings = append(findings, fmt.Sprintf(
					"High weekend screen time is associated with higher %s (t=%.2f, p=%.4f)",
					row.Indicator, row.Test.Statistic, row.Test.PValue))
			}
		}
		if len(findings) == 0 {
			findings = append(findings, fmt.Sprintf(
				"No indicator differs significantly between high and low weekend screen time at alpha=%.2f",
				r.Hypotheses.Alpha))
		}
	}
	if r.WellBeing != nil {
		for _, g := range r.WellBeing.Groups {
			if low := r.WellBeing.Percentage(g, LowWellBeing); low > 50 {
				findings = append(findings, fmt.Sprintf("%.1f%% of %s respondents report low well-being", low, g))
			}
		}
	}
	return findings
}

// EvaluationFramework runs the analysis components over one dataset.
type EvaluationFramework struct {
	analyzer *StatisticalAnalyzer
	cache    ResultCache
	logger   *zap.Logger
}

// NewEvaluationFramework creates a framework. cache may be nil.
func NewEvaluationFramework(analyzer *StatisticalAnalyzer, cache ResultCache, logger *zap.Logger) *EvaluationFramework {
	if logger == nil {
		logger = zap.NewNop()
	}
	if analyzer == nil {
		analyzer = NewStatisticalAnalyzer(logger, DefaultStatisticalConfig())
	}
	return &EvaluationFramework{
		analyzer: analyzer,
		cache:    cache,
		logger:   logger,
	}
}

// Run computes the requested components concurrently; with none
// requested it runs all four. checksum identifies the input for the
// result cache and may be empty to bypass it.
func (f *EvaluationFramework) Run(ctx context.Context, ds *survey.Dataset, checksum string, components ...Component) (*Results, error) {
	components, err := normalizeComponents(components)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	results := &Results{}
	cached := make([]bool, len(components))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range components {
		i, c := i, c
		switch c {
		case ScreenTimeComponent:
			g.Go(func() (err error) {
				results.ScreenTime, cached[i], err = runComponent(gctx, f, c, ds, checksum, f.analyzer.ScreenTime)
				return err
			})
		case WellBeingComponent:
			g.Go(func() (err error) {
				results.WellBeing, cached[i], err = runComponent(gctx, f, c, ds, checksum, f.analyzer.WellBeing)
				return err
			})
		case IntervalComponent:
			g.Go(func() (err error) {
				results.Intervals, cached[i], err = runComponent(gctx, f, c, ds, checksum, f.analyzer.ConfidenceIntervals)
				return err
			})
		case HypothesisComponent:
			g.Go(func() (err error) {
				results.Hypotheses, cached[i], err = runComponent(gctx, f, c, ds, checksum, f.analyzer.HypothesisTests)
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, c := range components {
		if cached[i] {
			results.Cached = append(results.Cached, c)
		}
	}
	results.Duration = time.Since(start)

	f.logger.Info("Evaluation completed",
		zap.Int("components", len(components)),
		zap.Int("cached", len(results.Cached)),
		zap.Duration("duration", results.Duration))
	return results, nil
}

// normalizeComponents canonicalises and de-duplicates the selection so
// no two goroutines write the same report.
func normalizeComponents(components []Component) ([]Component, error) {
	if len(components) == 0 {
		return AllComponents, nil
	}
	seen := make(map[Component]bool, len(components))
	out := make([]Component, 0, len(components))
	for _, c := range components {
		parsed, err := ParseComponent(string(c))
		if err != nil {
			return nil, err
		}
		if !seen[parsed] {
			seen[parsed] = true
			out = append(out, parsed)
		}
	}
	return out, nil
}

func runComponent[T any](
	ctx context.Context,
	f *EvaluationFramework,
	c Component,
	ds *survey.Dataset,
	checksum string,
	compute func(context.Context, *survey.Dataset) (*T, error),
) (*T, bool, error) {
	useCache := f.cache != nil && checksum != ""
	key := CacheKey(checksum, c, f.analyzer.Config())

	if useCache {
		var report T
		hit, err := f.cache.Get(ctx, key, &report)
		if err != nil {
			f.logger.Warn("Result cache read failed", zap.String("component", string(c)), zap.Error(err))
		} else if hit {
			metrics.RecordCacheHit(string(c))
			f.logger.Debug("Served analysis from cache", zap.String("component", string(c)), zap.String("key", key))
			return &report, true, nil
		}
	}

	start := time.Now()
	report, err := compute(ctx, ds)
	metrics.ObserveAnalysis(string(c), time.Since(start), err)
	if err != nil {
		return nil, false, fmt.Errorf("%s analysis failed: %w", c, err)
	}

	if useCache {
		if err := f.cache.Set(ctx, key, report); err != nil {
			f.logger.Warn("Failed to cache analysis result", zap.String("component", string(c)), zap.Error(err))
		}
	}
	return report, false, nil
}
