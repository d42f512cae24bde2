package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrArtifactNotFound is returned when no stored artifact has the ID.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactType classifies files produced by a report run.
type ArtifactType string

const (
	ReportArtifact      ArtifactType = "report"      // JSON results
	ChartArtifact       ArtifactType = "chart"       // PNG charts
	AssignmentsArtifact ArtifactType = "assignments" // Per-participant labels
	MetricsArtifact     ArtifactType = "metrics"     // Prometheus textfile
)

// Artifact describes one file produced by a run.
type Artifact struct {
	ID        string            `json:"id"`        // Artifact ID
	RunID     string            `json:"runId"`     // Run that produced it
	Type      ArtifactType      `json:"type"`      // Artifact type
	Name      string            `json:"name"`      // Original file name
	Path      string            `json:"path"`      // Stored location
	Size      int64             `json:"size"`      // Size in bytes
	Checksum  string            `json:"checksum"`  // SHA-256 of the content
	Metadata  map[string]string `json:"metadata"`  // Free-form metadata
	CreatedAt time.Time         `json:"createdAt"` // Creation time
}

// ArtifactFilters narrows List results.
type ArtifactFilters struct {
	RunID         string       `json:"runId"`
	Type          ArtifactType `json:"type"`
	CreatedAfter  *time.Time   `json:"createdAfter"`
	CreatedBefore *time.Time   `json:"createdBefore"`
	Limit         int          `json:"limit"`
}

// ArtifactStore defines the interface for artifact storage
type ArtifactStore interface {
	Store(ctx context.Context, artifact *Artifact) error
	Retrieve(ctx context.Context, artifactID string) (*Artifact, error)
	List(ctx context.Context, filters ArtifactFilters) ([]*Artifact, error)
	Delete(ctx context.Context, artifactID string) error
}

// FileSystemArtifactStore implements ArtifactStore using filesystem
type FileSystemArtifactStore struct {
	basePath string
	logger   *zap.Logger
	config   *FileSystemStoreConfig
}

// FileSystemStoreConfig represents filesystem store configuration
type FileSystemStoreConfig struct {
	FilePermissions os.FileMode `json:"filePermissions"`
	DirPermissions  os.FileMode `json:"dirPermissions"`
	SyncWrites      bool        `json:"syncWrites"`
}

// NewFileSystemArtifactStore creates a new filesystem artifact store
func NewFileSystemArtifactStore(basePath string, logger *zap.Logger) *FileSystemArtifactStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemArtifactStore{
		basePath: basePath,
		logger:   logger,
		config: &FileSystemStoreConfig{
			FilePermissions: 0644,
			DirPermissions:  0755,
			SyncWrites:      true,
		},
	}
}

func (fs *FileSystemArtifactStore) root() string {
	return filepath.Join(fs.basePath, "artifacts")
}

// Store copies the artifact's file under <base>/artifacts/<type>/<id>/data
// and writes its metadata next to it. artifact.Path is updated to the
// stored location.
func (fs *FileSystemArtifactStore) Store(ctx context.Context, artifact *Artifact) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if artifact.ID == "" {
		return fmt.Errorf("artifact has no ID")
	}

	artifactDir := filepath.Join(fs.root(), string(artifact.Type), artifact.ID)
	if err := os.MkdirAll(artifactDir, fs.config.DirPermissions); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	dataPath := filepath.Join(artifactDir, "data")
	if artifact.Path != "" && artifact.Path != dataPath {
		if err := fs.copyFile(artifact.Path, dataPath); err != nil {
			return fmt.Errorf("failed to copy artifact data: %w", err)
		}
		artifact.Path = dataPath
	}

	metadataData, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(artifactDir, "metadata.json"), metadataData, fs.config.FilePermissions); err != nil {
		return fmt.Errorf("failed to write artifact metadata: %w", err)
	}

	fs.logger.Debug("Artifact stored",
		zap.String("id", artifact.ID),
		zap.String("type", string(artifact.Type)),
		zap.String("name", artifact.Name))
	return nil
}

// Retrieve loads an artifact's metadata by ID.
func (fs *FileSystemArtifactStore) Retrieve(ctx context.Context, artifactID string) (*Artifact, error) {
	dir, err := fs.find(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	return readArtifactMetadata(filepath.Join(dir, "metadata.json"))
}

// List returns the artifacts matching filters, oldest first.
func (fs *FileSystemArtifactStore) List(ctx context.Context, filters ArtifactFilters) ([]*Artifact, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var artifacts []*Artifact
	err := filepath.WalkDir(fs.root(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == fs.root() {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || d.Name() != "metadata.json" {
			return nil
		}

		artifact, err := readArtifactMetadata(path)
		if err != nil {
			fs.logger.Warn("Skipping unreadable artifact metadata", zap.String("path", path), zap.Error(err))
			return nil
		}
		if fs.matchesFilters(artifact, filters) {
			artifacts = append(artifacts, artifact)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].Name < artifacts[j].Name
		}
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	if filters.Limit > 0 && len(artifacts) > filters.Limit {
		artifacts = artifacts[:filters.Limit]
	}
	return artifacts, nil
}

// Delete removes an artifact and its data.
func (fs *FileSystemArtifactStore) Delete(ctx context.Context, artifactID string) error {
	dir, err := fs.find(ctx, artifactID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete artifact directory: %w", err)
	}
	fs.logger.Debug("Artifact deleted", zap.String("id", artifactID))
	return nil
}

func (fs *FileSystemArtifactStore) find(ctx context.Context, artifactID string) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	if artifactID == "" {
		return "", fmt.Errorf("%w: empty ID", ErrArtifactNotFound)
	}
	types, err := os.ReadDir(fs.root())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to search for artifact: %w", err)
	}
	for _, t := range types {
		if !t.IsDir() {
			continue
		}
		dir := filepath.Join(fs.root(), t.Name(), artifactID)
		if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, artifactID)
}

func (fs *FileSystemArtifactStore) matchesFilters(artifact *Artifact, filters ArtifactFilters) bool {
	if filters.RunID != "" && artifact.RunID != filters.RunID {
		return false
	}
	if filters.Type != "" && artifact.Type != filters.Type {
		return false
	}
	if filters.CreatedAfter != nil && artifact.CreatedAt.Before(*filters.CreatedAfter) {
		return false
	}
	if filters.CreatedBefore != nil && artifact.CreatedAt.After(*filters.CreatedBefore) {
		return false
	}
	return true
}

// copyFile copies a file from src to dst
func (fs *FileSystemArtifactStore) copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fs.config.FilePermissions)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	if fs.config.SyncWrites {
		return destFile.Sync()
	}
	return nil
}

func readArtifactMetadata(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact metadata: %w", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact metadata: %w", err)
	}
	return &artifact, nil
}
