package survey

import (
	"errors"
	"fmt"
)

// ValidationOptions bound the values accepted by Validate.
type ValidationOptions struct {
	ScaleMin float64
	ScaleMax float64
	// MaxIssues caps how many problems are reported; 0 means 10.
	MaxIssues int
}

// DefaultValidationOptions returns the 1–5 ordinal scale used by the
// well-being questionnaire.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{ScaleMin: 1, ScaleMax: 5, MaxIssues: 10}
}

// Validate checks that indicators lie on the ordinal scale and screen time
// is non-negative.
func Validate(ds *Dataset, opts ValidationOptions) error {
	limit := opts.MaxIssues
	if limit <= 0 {
		limit = 10
	}

	var issues []error
	total := 0
	report := func(err error) {
		total++
		if len(issues) < limit {
			issues = append(issues, err)
		}
	}

	for i := range ds.Participants {
		p := &ds.Participants[i]
		for _, f := range ScreenTimeFields {
			if v := p.ScreenTime[f]; v < 0 {
				report(fmt.Errorf("%s=%s: negative %s %v", IDColumn, p.ID, f.Column(), v))
			}
		}
		for _, name := range ds.Indicators {
			if v := p.Indicators[name]; v < opts.ScaleMin || v > opts.ScaleMax {
				report(fmt.Errorf("%s=%s: %s=%v outside [%v, %v]", IDColumn, p.ID, name, v, opts.ScaleMin, opts.ScaleMax))
			}
		}
	}

	if total == 0 {
		return nil
	}
	if total > len(issues) {
		issues = append(issues, fmt.Errorf("%d more issues", total-len(issues)))
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(issues...))
}
