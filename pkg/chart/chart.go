// Package chart renders screen-time and well-being reports as PNG bar
// charts. Rendering reads reports and never modifies them.
package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/example/screentime-wellbeing/evaluation"
)

const (
	// ScreenTimeFile and WellBeingFile are the default output names.
	ScreenTimeFile = "screen_time_by_gender.png"
	WellBeingFile  = "wellbeing_by_user_group.png"

	width  = 12 * vg.Inch
	height = 6 * vg.Inch
)

// ScreenTimeByGender draws one bar group per screen-time field with one
// bar per gender.
func ScreenTimeByGender(r *evaluation.ScreenTimeReport) (*plot.Plot, error) {
	if len(r.Genders) == 0 {
		return nil, fmt.Errorf("screen time report has no gender groups")
	}

	p := plot.New()
	p.Title.Text = "Average Screen Time for Male and Female Respondents Across Different Activities"
	p.X.Label.Text = "Activity"
	p.Y.Label.Text = "Average Hours"
	p.Legend.Top = true
	p.Legend.Add("Gender")

	barWidth := vg.Points(60 / float64(len(r.Genders)))
	for i, g := range r.Genders {
		values := make(plotter.Values, len(r.Fields))
		for j, f := range r.Fields {
			values[j], _ = r.GenderMean(g.Gender, f)
		}

		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return nil, fmt.Errorf("bars for %s: %w", g.Label, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(len(r.Genders)-1)/2)

		p.Add(bars)
		p.Legend.Add(g.Label, bars)
	}

	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Label()
	}
	p.NominalX(names...)
	return p, nil
}

// WellBeingByGroup draws stacked Low/Medium/High percentage bars per user
// group, annotated with each segment's share.
func WellBeingByGroup(r *evaluation.WellBeingReport) (*plot.Plot, error) {
	if len(r.Groups) == 0 {
		return nil, fmt.Errorf("well-being report has no user groups")
	}

	p := plot.New()
	p.Title.Text = "Percentage of Low, Medium, and High Well-being Across User Groups"
	p.X.Label.Text = "User Group"
	p.Y.Label.Text = "Percentage"
	p.Y.Min = 0
	p.Y.Max = 100
	p.Legend.Top = true

	var (
		below  *plotter.BarChart
		base   = make([]float64, len(r.Groups))
		labels plotter.XYLabels
	)
	for i, level := range evaluation.WellBeingLevels {
		values := make(plotter.Values, len(r.Groups))
		for j, g := range r.Groups {
			v := r.Percentage(g, level)
			values[j] = v
			if v > 0 {
				labels.XYs = append(labels.XYs, plotter.XY{X: float64(j), Y: base[j] + v/2})
				labels.Labels = append(labels.Labels, fmt.Sprintf("%.1f%%", v))
			}
			base[j] += v
		}

		bars, err := plotter.NewBarChart(values, vg.Points(50))
		if err != nil {
			return nil, fmt.Errorf("bars for %s: %w", level, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		if below != nil {
			bars.StackOn(below)
		}
		below = bars

		p.Add(bars)
		p.Legend.Add(string(level), bars)
	}

	if len(labels.XYs) > 0 {
		annotations, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("percentage labels: %w", err)
		}
		for i := range annotations.TextStyle {
			annotations.TextStyle[i].XAlign = -0.5
			annotations.TextStyle[i].YAlign = -0.5
		}
		p.Add(annotations)
	}

	names := make([]string, len(r.Groups))
	for i, g := range r.Groups {
		names[i] = string(g)
	}
	p.NominalX(names...)
	return p, nil
}

// WritePNG encodes p as a PNG image.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("png canvas: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes p to path, creating parent directories.
func SavePNG(path string, p *plot.Plot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Render writes the charts for whichever reports are present into dir and
// returns the written paths.
func Render(dir string, results *evaluation.Results) ([]string, error) {
	var paths []string
	if results.ScreenTime != nil {
		p, err := ScreenTimeByGender(results.ScreenTime)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, ScreenTimeFile)
		if err := SavePNG(path, p); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if results.WellBeing != nil {
		p, err := WellBeingByGroup(results.WellBeing)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, WellBeingFile)
		if err := SavePNG(path, p); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
