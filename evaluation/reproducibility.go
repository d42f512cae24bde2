package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/pkg/survey"
)

// ReproducibilityManager records what a report run consumed and produced.
type ReproducibilityManager struct {
	logger        *zap.Logger
	artifactStore ArtifactStore
	basePath      string
}

// EnvironmentSnapshot captures the host a run executed on.
type EnvironmentSnapshot struct {
	Timestamp        time.Time `json:"timestamp"`
	OS               string    `json:"os"`
	Architecture     string    `json:"architecture"`
	Hostname         string    `json:"hostname"`
	WorkingDirectory string    `json:"workingDirectory"`
	Timezone         string    `json:"timezone"`
	GoVersion        string    `json:"goVersion"`
	NumCPU           int       `json:"numCpu"`
	Module           string    `json:"module,omitempty"`
	ModuleVersion    string    `json:"moduleVersion,omitempty"`
}

// RunManifest is the provenance record written at the end of a run.
type RunManifest struct {
	RunID           string               `json:"runId"`
	StartedAt       time.Time            `json:"startedAt"`
	CompletedAt     time.Time            `json:"completedAt"`
	DatasetChecksum string               `json:"datasetChecksum"`
	Join            survey.JoinStats     `json:"join"`
	Config          StatisticalConfig    `json:"config"`
	Components      []Component          `json:"components"`
	Cached          []Component          `json:"cached,omitempty"`
	KeyFindings     []string             `json:"keyFindings,omitempty"`
	Environment     *EnvironmentSnapshot `json:"environment"`
	Artifacts       []Artifact           `json:"artifacts"`
}

// NewReproducibilityManager creates a manager writing manifests under
// <basePath>/runs.
func NewReproducibilityManager(logger *zap.Logger, store ArtifactStore, basePath string) *ReproducibilityManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReproducibilityManager{
		logger:        logger,
		artifactStore: store,
		basePath:      basePath,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// CaptureEnvironment snapshots the current host and build.
func (rm *ReproducibilityManager) CaptureEnvironment(ctx context.Context) (*EnvironmentSnapshot, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()

	snapshot := &EnvironmentSnapshot{
		Timestamp:        time.Now().UTC(),
		OS:               runtime.GOOS,
		Architecture:     runtime.GOARCH,
		Hostname:         hostname,
		WorkingDirectory: wd,
		Timezone:         time.Now().Location().String(),
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		snapshot.Module = info.Main.Path
		snapshot.ModuleVersion = info.Main.Version
	}

	rm.logger.Debug("Environment snapshot captured",
		zap.String("os", snapshot.OS),
		zap.String("go", snapshot.GoVersion))
	return snapshot, nil
}

// CreateArtifact checksums the file at path and stores it.
func (rm *ReproducibilityManager) CreateArtifact(ctx context.Context, artifactType ArtifactType, name, path, runID string,
	metadata map[string]string) (*Artifact, error) {

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	checksum, err := ComputeChecksum(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compute checksum: %w", err)
	}

	artifact := &Artifact{
		ID:        uuid.NewString(),
		RunID:     runID,
		Type:      artifactType,
		Name:      name,
		Path:      path,
		Size:      fileInfo.Size(),
		Checksum:  checksum,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if artifact.Metadata == nil {
		artifact.Metadata = make(map[string]string)
	}
	artifact.Metadata["format"] = filepath.Ext(path)

	if err := rm.artifactStore.Store(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}

	rm.logger.Info("Artifact created",
		zap.String("artifactId", artifact.ID),
		zap.String("type", string(artifactType)),
		zap.String("name", name),
		zap.Int64("size", artifact.Size))
	return artifact, nil
}

// ManifestPath returns where the manifest of runID is written.
func (rm *ReproducibilityManager) ManifestPath(runID string) string {
	return filepath.Join(rm.basePath, "runs", runID, "manifest.json")
}

// WriteManifest persists the manifest and returns its path.
func (rm *ReproducibilityManager) WriteManifest(ctx context.Context, manifest *RunManifest) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	if manifest.RunID == "" {
		return "", fmt.Errorf("manifest has no run ID")
	}

	path := rm.ManifestPath(manifest.RunID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	rm.logger.Info("Run manifest written",
		zap.String("runId", manifest.RunID),
		zap.String("path", path),
		zap.Int("artifacts", len(manifest.Artifacts)))
	return path, nil
}

// ReadManifest loads a previously written manifest.
func (rm *ReproducibilityManager) ReadManifest(ctx context.Context, runID string) (*RunManifest, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(rm.ManifestPath(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for run %s: %w", runID, err)
	}
	var manifest RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest for run %s: %w", runID, err)
	}
	return &manifest, nil
}

// ComputeChecksum returns the hex SHA-256 of a file's content.
func ComputeChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
