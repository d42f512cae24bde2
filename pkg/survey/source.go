package survey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Canonical dataset names. File sources map them to paths; ConfigMap
// sources use them as data keys.
const (
	DemographicsDataset = "dataset1.csv"
	ScreenTimeDataset   = "dataset2.csv"
	WellBeingDataset    = "dataset3.csv"
)

// Datasets lists the three inputs in join order.
var Datasets = []string{DemographicsDataset, ScreenTimeDataset, WellBeingDataset}

// Source provides the raw CSV streams for the three datasets.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// FileSource reads datasets from the local filesystem.
type FileSource struct {
	paths map[string]string
}

// NewFileSource maps each dataset to an explicit path.
func NewFileSource(demographics, screenTime, wellBeing string) *FileSource {
	return &FileSource{paths: map[string]string{
		DemographicsDataset: demographics,
		ScreenTimeDataset:   screenTime,
		WellBeingDataset:    wellBeing,
	}}
}

// NewDirSource expects dataset1.csv, dataset2.csv and dataset3.csv in dir.
func NewDirSource(dir string) *FileSource {
	return NewFileSource(
		filepath.Join(dir, DemographicsDataset),
		filepath.Join(dir, ScreenTimeDataset),
		filepath.Join(dir, WellBeingDataset),
	)
}

// Path returns the configured path for a dataset.
func (s *FileSource) Path(name string) string { return s.paths[name] }

// Open opens the file backing name.
func (s *FileSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.paths[name]
	if !ok || path == "" {
		return nil, fmt.Errorf("no path configured for %s", name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// ConfigMapSource reads the datasets from the data keys of a Kubernetes
// ConfigMap, so the report can run as an in-cluster job.
type ConfigMapSource struct {
	client    kubernetes.Interface
	namespace string
	name      string
}

// NewConfigMapSource constructs a source over an existing client.
func NewConfigMapSource(client kubernetes.Interface, namespace, name string) *ConfigMapSource {
	return &ConfigMapSource{client: client, namespace: namespace, name: name}
}

// NewInClusterConfigMapSource builds a client from the pod service account.
func NewInClusterConfigMapSource(namespace, name string) (*ConfigMapSource, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client: %w", err)
	}
	return NewConfigMapSource(client, namespace, name), nil
}

// Open fetches the ConfigMap and returns the value stored under name.
func (s *ConfigMapSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get configmap %s/%s: %w", s.namespace, s.name, err)
	}
	if data, ok := cm.Data[name]; ok {
		return io.NopCloser(strings.NewReader(data)), nil
	}
	if data, ok := cm.BinaryData[name]; ok {
		return io.NopCloser(strings.NewReader(string(data))), nil
	}
	return nil, fmt.Errorf("configmap %s/%s has no key %q", s.namespace, s.name, name)
}

// MemorySource serves datasets from memory, useful for tests and for
// callers that already hold the CSV content.
type MemorySource struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemorySource constructs a source over name -> CSV content.
func NewMemorySource(data map[string]string) *MemorySource {
	if data == nil {
		data = make(map[string]string)
	}
	return &MemorySource{data: data}
}

// Put replaces the content of one dataset.
func (s *MemorySource) Put(name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = content
}

func (s *MemorySource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found", name)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func writeChecksumHeader(w io.Writer, name string) {
	fmt.Fprintf(w, "%s\n", name)
}

// Checksum hashes the three datasets in join order. It identifies an input
// snapshot for caching and provenance.
func Checksum(ctx context.Context, src Source) (string, error) {
	hash := sha256.New()
	for _, name := range Datasets {
		rc, err := src.Open(ctx, name)
		if err != nil {
			return "", err
		}
		writeChecksumHeader(hash, name)
		_, err = io.Copy(hash, rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", name, err)
		}
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
