package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// CheckStatus is the outcome of one validation check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// ValidationCheck is one integrity check against an artifact.
type ValidationCheck struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Expected string      `json:"expected,omitempty"`
	Actual   string      `json:"actual,omitempty"`
}

// ValidationResult is the outcome of validating one artifact.
type ValidationResult struct {
	ArtifactID  string            `json:"artifactId"`
	Name        string            `json:"name"`
	Checks      []ValidationCheck `json:"checks"`
	Score       float64           `json:"score"` // Passed / non-skipped checks
	Passed      bool              `json:"passed"`
	ValidatedAt time.Time         `json:"validatedAt"`
}

// RunValidation aggregates the artifact results of one run.
type RunValidation struct {
	RunID     string              `json:"runId"`
	Artifacts []*ValidationResult `json:"artifacts"`
	Score     float64             `json:"score"`
	Passed    bool                `json:"passed"`
}

// ReproducibilityValidator re-checks stored artifacts against the
// checksums and sizes recorded when they were created.
type ReproducibilityValidator struct {
	logger    *zap.Logger
	store     ArtifactStore
	threshold float64
}

// NewReproducibilityValidator creates a validator; an artifact passes when
// its score reaches 1.
func NewReproducibilityValidator(logger *zap.Logger, store ArtifactStore) *ReproducibilityValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReproducibilityValidator{
		logger:    logger,
		store:     store,
		threshold: 1.0,
	}
}

// ValidateArtifact runs the existence, size and checksum checks.
func (rv *ReproducibilityValidator) ValidateArtifact(ctx context.Context, artifact *Artifact) (*ValidationResult, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	result := &ValidationResult{
		ArtifactID:  artifact.ID,
		Name:        artifact.Name,
		ValidatedAt: time.Now().UTC(),
	}

	fileInfo, statErr := os.Stat(artifact.Path)
	result.Checks = append(result.Checks, rv.validateExists(artifact, statErr))
	result.Checks = append(result.Checks, rv.validateSize(artifact, fileInfo, statErr))
	result.Checks = append(result.Checks, rv.validateChecksum(artifact, statErr))

	result.Score = calculateValidationScore(result.Checks)
	result.Passed = result.Score >= rv.threshold

	rv.logger.Debug("Artifact validated",
		zap.String("id", artifact.ID),
		zap.Float64("score", result.Score),
		zap.Bool("passed", result.Passed))
	return result, nil
}

// ValidateRun validates every artifact listed in a manifest against the
// stored copy.
func (rv *ReproducibilityValidator) ValidateRun(ctx context.Context, manifest *RunManifest) (*RunValidation, error) {
	run := &RunValidation{RunID: manifest.RunID}

	var total float64
	for i := range manifest.Artifacts {
		recorded := manifest.Artifacts[i]

		stored, err := rv.store.Retrieve(ctx, recorded.ID)
		if err != nil && !errors.Is(err, ErrArtifactNotFound) {
			return nil, err
		}
		var result *ValidationResult
		if stored == nil {
			result = &ValidationResult{
				ArtifactID:  recorded.ID,
				Name:        recorded.Name,
				ValidatedAt: time.Now().UTC(),
				Checks: []ValidationCheck{{
					ID:      "artifact_stored",
					Name:    "Artifact Stored",
					Status:  CheckFailed,
					Message: "artifact missing from store",
				}},
			}
		} else {
			// The manifest copy is authoritative; the stored metadata only
			// supplies the current location.
			recorded.Path = stored.Path
			result, err = rv.ValidateArtifact(ctx, &recorded)
			if err != nil {
				return nil, err
			}
		}
		run.Artifacts = append(run.Artifacts, result)
		total += result.Score
	}

	if len(run.Artifacts) > 0 {
		run.Score = total / float64(len(run.Artifacts))
	}
	run.Passed = len(run.Artifacts) > 0 && run.Score >= rv.threshold

	rv.logger.Info("Run validation completed",
		zap.String("runId", run.RunID),
		zap.Int("artifacts", len(run.Artifacts)),
		zap.Float64("score", run.Score),
		zap.Bool("passed", run.Passed))
	return run, nil
}

func (rv *ReproducibilityValidator) validateExists(artifact *Artifact, statErr error) ValidationCheck {
	check := ValidationCheck{ID: "file_exists", Name: "File Exists"}
	switch {
	case artifact.Path == "":
		check.Status = CheckSkipped
		check.Message = "no file path recorded"
	case statErr != nil:
		check.Status = CheckFailed
		check.Message = fmt.Sprintf("file not accessible: %v", statErr)
	default:
		check.Status = CheckPassed
		check.Message = "file accessible"
	}
	return check
}

func (rv *ReproducibilityValidator) validateSize(artifact *Artifact, info os.FileInfo, statErr error) ValidationCheck {
	check := ValidationCheck{ID: "data_integrity", Name: "File Size"}
	if artifact.Path == "" || statErr != nil {
		check.Status = CheckSkipped
		check.Message = "file not available"
		return check
	}
	check.Expected = fmt.Sprint(artifact.Size)
	check.Actual = fmt.Sprint(info.Size())
	if info.Size() == artifact.Size {
		check.Status = CheckPassed
		check.Message = "file size matches"
	} else {
		check.Status = CheckFailed
		check.Message = "file size mismatch"
	}
	return check
}

func (rv *ReproducibilityValidator) validateChecksum(artifact *Artifact, statErr error) ValidationCheck {
	check := ValidationCheck{ID: "checksum_validation", Name: "Checksum"}
	if artifact.Path == "" || statErr != nil {
		check.Status = CheckSkipped
		check.Message = "file not available"
		return check
	}
	current, err := ComputeChecksum(artifact.Path)
	if err != nil {
		check.Status = CheckFailed
		check.Message = fmt.Sprintf("failed to compute checksum: %v", err)
		return check
	}
	check.Expected = artifact.Checksum
	check.Actual = current
	if current == artifact.Checksum {
		check.Status = CheckPassed
		check.Message = "checksum matches"
	} else {
		check.Status = CheckFailed
		check.Message = "checksum mismatch"
	}
	return check
}

func calculateValidationScore(checks []ValidationCheck) float64 {
	passed, total := 0, 0
	for _, check := range checks {
		if check.Status == CheckSkipped {
			continue
		}
		total++
		if check.Status == CheckPassed {
			passed++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total)
}
