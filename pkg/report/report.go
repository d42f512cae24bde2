// Package report renders analysis reports as console tables and exports.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/example/screentime-wellbeing/evaluation"
)

const (
	ScreenTimeTitle = "Average Screen Time for Male and Female Respondents Across Different Activities"
	WellBeingTitle  = "Percentage of Low, Medium, and High Well-being Across User Groups"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(headers...)
}

func render(w io.Writer, title string, t *table.Table) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(title), t.Render())
	return err
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// PrintScreenTime prints overall and per-gender means per screen-time field.
func PrintScreenTime(w io.Writer, r *evaluation.ScreenTimeReport) error {
	headers := []string{"Activity", "Overall"}
	for _, g := range r.Genders {
		headers = append(headers, g.Label)
	}
	t := newTable(headers...)

	for _, f := range r.Fields {
		overall, _ := r.Mean(f)
		row := []string{f.Label(), f2(overall)}
		for _, g := range r.Genders {
			mean, _ := r.GenderMean(g.Gender, f)
			row = append(row, f2(mean))
		}
		t.Row(row...)
	}
	return render(w, ScreenTimeTitle, t)
}

// PrintWellBeing prints the row-normalised user group cross-tabulation.
func PrintWellBeing(w io.Writer, r *evaluation.WellBeingReport) error {
	headers := []string{"User Group"}
	for _, l := range evaluation.WellBeingLevels {
		headers = append(headers, string(l))
	}
	headers = append(headers, "N")
	t := newTable(headers...)

	for _, g := range r.Groups {
		row := []string{string(g)}
		for _, l := range evaluation.WellBeingLevels {
			row = append(row, fmt.Sprintf("%.1f%%", r.Percentage(g, l)))
		}
		row = append(row, strconv.Itoa(r.GroupSize(g)))
		t.Row(row...)
	}
	return render(w, WellBeingTitle, t)
}

// PrintIntervals prints one rounded row per screen-time field.
func PrintIntervals(w io.Writer, r *evaluation.IntervalReport) error {
	t := newTable("Activity", "Mean", "Std Dev", "Sample Size", "Std Error", "t-Critical", "Confidence Interval")
	for _, raw := range r.Rows {
		row := raw.Rounded()
		t.Row(
			row.Field.Label(),
			f2(row.Mean),
			f2(row.StdDev),
			strconv.Itoa(row.N),
			f2(row.StdErr),
			f2(row.TCritical),
			fmt.Sprintf("[%s, %s]", f2(row.Interval.LowerBound), f2(row.Interval.UpperBound)),
		)
	}
	title := fmt.Sprintf("%s%% Confidence Intervals for Average Screen Time",
		strconv.FormatFloat(math.Round(r.Level*1e4)/100, 'f', -1, 64))
	return render(w, title, t)
}

// PrintHypotheses prints the t-test outcome per indicator.
func PrintHypotheses(w io.Writer, r *evaluation.HypothesisReport) error {
	t := newTable("Indicator", "High Mean", "Low Mean", "t-Statistic", "p-Value", "Conclusion")
	for _, row := range r.Rows {
		t.Row(
			row.Indicator,
			f2(row.High.Mean),
			f2(row.Low.Mean),
			strconv.FormatFloat(row.Test.Statistic, 'f', 4, 64),
			strconv.FormatFloat(row.Test.PValue, 'f', 4, 64),
			row.Conclusion,
		)
	}
	title := fmt.Sprintf("Well-being by Weekend Screen Time (median %s h: %d high, %d low, alpha %s)",
		f2(r.Median), r.HighCount, r.LowCount, strconv.FormatFloat(r.Alpha, 'f', -1, 64))
	return render(w, title, t)
}

// PrintResults prints every report present in results, followed by the
// key findings.
func PrintResults(w io.Writer, results *evaluation.Results) error {
	if results.ScreenTime != nil {
		if err := PrintScreenTime(w, results.ScreenTime); err != nil {
			return err
		}
	}
	if results.WellBeing != nil {
		if err := PrintWellBeing(w, results.WellBeing); err != nil {
			return err
		}
	}
	if results.Intervals != nil {
		if err := PrintIntervals(w, results.Intervals); err != nil {
			return err
		}
	}
	if results.Hypotheses != nil {
		if err := PrintHypotheses(w, results.Hypotheses); err != nil {
			return err
		}
	}

	findings := results.KeyFindings()
	if len(findings) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, titleStyle.Render("Key Findings")); err != nil {
		return err
	}
	for _, f := range findings {
		if _, err := fmt.Fprintf(w, "  - %s\n", f); err != nil {
			return err
		}
	}
	return nil
}

// WriteAssignments exports the derived well-being and user group labels.
func WriteAssignments(w io.Writer, r *evaluation.WellBeingReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "WellBeing", "UserGroup"}); err != nil {
		return err
	}
	for _, a := range r.Assignments {
		if err := cw.Write([]string{a.ID, string(a.Level), string(a.UserGroup)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes results as indented JSON.
func WriteJSON(w io.Writer, results *evaluation.Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
