package evaluation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/pkg/survey"
)

// WellBeingLevel is the derived three-state well-being label.
type WellBeingLevel string

const (
	LowWellBeing    WellBeingLevel = "Low"
	MediumWellBeing WellBeingLevel = "Medium"
	HighWellBeing   WellBeingLevel = "High"
)

// WellBeingLevels lists the labels in display order.
var WellBeingLevels = []WellBeingLevel{LowWellBeing, MediumWellBeing, HighWellBeing}

// UserGroup is the dominant-activity group of a participant.
type UserGroup string

const (
	ComputerUser   UserGroup = "Computer User"
	Gamer          UserGroup = "Gamer"
	SmartphoneUser UserGroup = "Smartphone User"
	TVWatcher      UserGroup = "TV Watcher"
)

// UserGroups lists the groups in display order.
var UserGroups = []UserGroup{ComputerUser, Gamer, SmartphoneUser, TVWatcher}

// ClassifyWellBeing labels a score vector. Any score of 1 or 2 makes the
// participant Low even when every other score is high; High needs every
// score in {4, 5}.
func ClassifyWellBeing(scores []float64) WellBeingLevel {
	for _, s := range scores {
		if s == 1 || s == 2 {
			return LowWellBeing
		}
	}
	for _, s := range scores {
		if s != 4 && s != 5 {
			return MediumWellBeing
		}
	}
	return HighWellBeing
}

// ClassifyUserGroup assigns the first activity, in Computer, Gaming,
// Smartphone order, whose weekday+weekend total exceeds the combined
// total of the other three. Everyone else is a TV Watcher, even when TV is
// not their largest activity.
func ClassifyUserGroup(p *survey.Participant) UserGroup {
	computer := p.ActivityTotal(survey.Computer)
	gaming := p.ActivityTotal(survey.Gaming)
	smartphone := p.ActivityTotal(survey.Smartphone)
	tv := p.ActivityTotal(survey.TV)

	switch {
	case computer > gaming+smartphone+tv:
		return ComputerUser
	case gaming > computer+smartphone+tv:
		return Gamer
	case smartphone > computer+gaming+tv:
		return SmartphoneUser
	default:
		return TVWatcher
	}
}

// Assignment carries the derived labels of one participant.
type Assignment struct {
	ID        string         `json:"id"`
	Level     WellBeingLevel `json:"level"`
	UserGroup UserGroup      `json:"userGroup"`
}

// WellBeingReport cross-tabulates user groups against well-being levels.
type WellBeingReport struct {
	Indicators  []string                                 `json:"indicators"`
	Assignments []Assignment                             `json:"assignments"`
	Groups      []UserGroup                              `json:"groups"` // Groups with at least one member
	Counts      map[UserGroup]map[WellBeingLevel]int     `json:"counts"`
	Percentages map[UserGroup]map[WellBeingLevel]float64 `json:"percentages"`
}

// Percentage returns the share of a group at a level; absent pairs are 0.
func (r *WellBeingReport) Percentage(g UserGroup, l WellBeingLevel) float64 {
	return r.Percentages[g][l]
}

// GroupSize returns the number of participants in a group.
func (r *WellBeingReport) GroupSize(g UserGroup) int {
	total := 0
	for _, n := range r.Counts[g] {
		total += n
	}
	return total
}

// WellBeing labels every participant and builds the row-normalised
// cross-tabulation.
func (sa *StatisticalAnalyzer) WellBeing(ctx context.Context, ds *survey.Dataset) (*WellBeingReport, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if len(ds.Indicators) == 0 {
		return nil, fmt.Errorf("%w: no well-being indicators", ErrInvalidInput)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrDegenerateSample)
	}

	report := &WellBeingReport{
		Indicators:  append([]string(nil), ds.Indicators...),
		Assignments: make([]Assignment, 0, ds.Len()),
		Counts:      make(map[UserGroup]map[WellBeingLevel]int),
		Percentages: make(map[UserGroup]map[WellBeingLevel]float64),
	}

	for i := range ds.Participants {
		p := &ds.Participants[i]
		scores := ds.IndicatorScores(p)
		if err := checkFinite(scores); err != nil {
			return nil, fmt.Errorf("%s=%s: %w", survey.IDColumn, p.ID, err)
		}
		a := Assignment{
			ID:        p.ID,
			Level:     ClassifyWellBeing(scores),
			UserGroup: ClassifyUserGroup(p),
		}
		report.Assignments = append(report.Assignments, a)

		if report.Counts[a.UserGroup] == nil {
			report.Counts[a.UserGroup] = make(map[WellBeingLevel]int, len(WellBeingLevels))
		}
		report.Counts[a.UserGroup][a.Level]++
	}

	for _, g := range UserGroups {
		counts, ok := report.Counts[g]
		if !ok {
			continue
		}
		report.Groups = append(report.Groups, g)

		size := report.GroupSize(g)
		row := make(map[WellBeingLevel]float64, len(WellBeingLevels))
		for _, l := range WellBeingLevels {
			if _, seen := counts[l]; !seen {
				counts[l] = 0
			}
			row[l] = 100 * float64(counts[l]) / float64(size)
		}
		report.Percentages[g] = row
	}

	sa.logger.Debug("Well-being classified",
		zap.Int("participants", len(report.Assignments)),
		zap.Int("groups", len(report.Groups)))
	return report, nil
}
