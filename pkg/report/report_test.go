package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/screentime-wellbeing/evaluation"
	"github.com/example/screentime-wellbeing/pkg/survey"
)

var computerWeekend = survey.ScreenTimeField{Activity: survey.Computer, Day: survey.Weekend}

func screenTimeReport() *evaluation.ScreenTimeReport {
	return &evaluation.ScreenTimeReport{
		Fields:  []survey.ScreenTimeField{computerWeekend},
		Overall: []evaluation.FieldMean{{Field: computerWeekend, Mean: 2.346}},
		Genders: []evaluation.GenderMeans{
			{Gender: "0", Label: "Female", Count: 2, Means: []evaluation.FieldMean{{Field: computerWeekend, Mean: 1.5}}},
			{Gender: "1", Label: "Male", Count: 3, Means: []evaluation.FieldMean{{Field: computerWeekend, Mean: 3.25}}},
		},
	}
}

func wellBeingReport() *evaluation.WellBeingReport {
	return &evaluation.WellBeingReport{
		Indicators: []string{"Optm"},
		Assignments: []evaluation.Assignment{
			{ID: "1", Level: evaluation.LowWellBeing, UserGroup: evaluation.Gamer},
			{ID: "2", Level: evaluation.HighWellBeing, UserGroup: evaluation.Gamer},
			{ID: "3", Level: evaluation.HighWellBeing, UserGroup: evaluation.Gamer},
		},
		Groups: []evaluation.UserGroup{evaluation.Gamer},
		Counts: map[evaluation.UserGroup]map[evaluation.WellBeingLevel]int{
			evaluation.Gamer: {evaluation.LowWellBeing: 1, evaluation.MediumWellBeing: 0, evaluation.HighWellBeing: 2},
		},
		Percentages: map[evaluation.UserGroup]map[evaluation.WellBeingLevel]float64{
			evaluation.Gamer: {evaluation.LowWellBeing: 100.0 / 3, evaluation.MediumWellBeing: 0, evaluation.HighWellBeing: 200.0 / 3},
		},
	}
}

func TestPrintScreenTime(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintScreenTime(&buf, screenTimeReport()))
	out := buf.String()

	assert.Contains(t, out, ScreenTimeTitle)
	assert.Contains(t, out, "Computer (Weekend)")
	assert.Contains(t, out, "Female")
	assert.Contains(t, out, "Male")
	assert.Contains(t, out, "2.35")
	assert.Contains(t, out, "3.25")
}

func TestPrintWellBeing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintWellBeing(&buf, wellBeingReport()))
	out := buf.String()

	assert.Contains(t, out, WellBeingTitle)
	assert.Contains(t, out, "Gamer")
	assert.Contains(t, out, "33.3%")
	assert.Contains(t, out, "0.0%")
	assert.Contains(t, out, "66.7%")
	assert.NotContains(t, out, "TV Watcher")
}

func TestPrintIntervals(t *testing.T) {
	r := &evaluation.IntervalReport{
		Level: 0.99,
		Rows: []evaluation.IntervalRow{{
			Field:     computerWeekend,
			Mean:      3,
			StdDev:    1.5811,
			N:         5,
			StdErr:    0.7071,
			TCritical: 4.6041,
			Interval:  evaluation.ConfidenceInterval{Level: 0.99, LowerBound: -0.2556, UpperBound: 6.2556},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintIntervals(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "99% Confidence Intervals")
	for _, want := range []string{"Sample Size", "t-Critical", "3.00", "1.58", "0.71", "4.60", "[-0.26, 6.26]"} {
		assert.Contains(t, out, want)
	}
}

func TestPrintHypotheses(t *testing.T) {
	r := &evaluation.HypothesisReport{
		Median:    5.5,
		HighCount: 3,
		LowCount:  3,
		Alpha:     0.05,
		Rows: []evaluation.HypothesisRow{
			{
				Indicator:  "Optm",
				High:       evaluation.DescriptiveStats{Count: 3, Mean: 4.6667},
				Low:        evaluation.DescriptiveStats{Count: 3, Mean: 1.3333},
				Test:       evaluation.TTestResult{Statistic: 7.0711, PValue: 0.00105},
				Reject:     true,
				Conclusion: evaluation.RejectNull,
			},
			{
				Indicator:  "Usef",
				Test:       evaluation.TTestResult{Statistic: 0, PValue: 0.5},
				Conclusion: evaluation.AcceptNull,
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintHypotheses(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "median 5.50 h: 3 high, 3 low")
	assert.Contains(t, out, "7.0711")
	assert.Contains(t, out, "0.5000")
	assert.Contains(t, out, "We reject the null hypothesis")
	assert.Contains(t, out, "We accept the null hypothesis")
}

func TestPrintResultsSkipsMissingReports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintResults(&buf, &evaluation.Results{WellBeing: wellBeingReport()}))
	out := buf.String()

	assert.Contains(t, out, WellBeingTitle)
	assert.NotContains(t, out, ScreenTimeTitle)
	assert.NotContains(t, out, "Confidence Interval")
	// Gamers are two-thirds high, so there is no low well-being finding.
	assert.NotContains(t, out, "Key Findings")
}

func TestWriteAssignments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAssignments(&buf, wellBeingReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"ID,WellBeing,UserGroup",
		"1,Low,Gamer",
		"2,High,Gamer",
		"3,High,Gamer",
	}, lines)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &evaluation.Results{ScreenTime: screenTimeReport()}))

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "screenTime")
	assert.NotContains(t, decoded, "wellBeing")
	assert.Contains(t, string(decoded["screenTime"]), `"C_we"`)
}
