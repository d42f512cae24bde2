package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/evaluation"
	"github.com/example/screentime-wellbeing/pkg/chart"
	"github.com/example/screentime-wellbeing/pkg/config"
	"github.com/example/screentime-wellbeing/pkg/report"
	"github.com/example/screentime-wellbeing/pkg/survey"
)

// Weekend totals are 1, 2, 3, 10, 12 and 14 hours, so the median split puts
// IDs 4-6 in the high group.
var fixtures = map[string]string{
	survey.DemographicsDataset: `ID,gender,minority,deprived
1,0,0,1
2,1,0,0
3,0,1,0
4,1,0,0
5,0,0,1
6,1,0,0
`,
	survey.ScreenTimeDataset: `ID,C_we,C_wk,G_we,G_wk,S_we,S_wk,T_we,T_wk
1,1,1,0,0,0,1,0,1
2,0,1,1,0,0,2,1,1
3,1,2,1,1,1,1,0,0
4,3,2,3,1,2,2,2,1
5,4,3,3,2,3,3,2,2
6,2,1,4,3,3,2,5,3
`,
	survey.WellBeingDataset: `ID,Optm,Usef
1,2,3
2,3,2
3,1,4
4,4,3
5,5,4
6,4,5
`,
}

const testConfig = `analysis:
  indicators: [Optm, Usef]
metrics:
  listen: 127.0.0.1:0
`

func setupData(t *testing.T) (dataDir, outDir, configPath string) {
	t.Helper()
	root := t.TempDir()
	dataDir = filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	for name, body := range fixtures {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte(body), 0o644))
	}
	configPath = filepath.Join(root, "report.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0o644))
	return dataDir, filepath.Join(root, "out"), configPath
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func runIDs(t *testing.T, outDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(outDir, "runs"))
	require.NoError(t, err)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.Name())
	}
	return ids
}

func TestAllWritesReportsAndManifest(t *testing.T) {
	dataDir, outDir, configPath := setupData(t)
	metricsFile := filepath.Join(outDir, "metrics.prom")

	out, err := execute(t, context.Background(), "all",
		"--config", configPath, "--data-dir", dataDir, "--out", outDir, "--metrics-file", metricsFile)
	require.NoError(t, err)

	assert.Contains(t, out, report.ScreenTimeTitle)
	assert.Contains(t, out, report.WellBeingTitle)
	assert.Contains(t, out, "99% Confidence Intervals")
	assert.Contains(t, out, "median 6.50 h: 3 high, 3 low")
	assert.Contains(t, out, "recorded in")

	for _, name := range []string{resultsFile, assignmentsFile, chart.ScreenTimeFile, chart.WellBeingFile, "metrics.prom"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	ids := runIDs(t, outDir)
	require.Len(t, ids, 1)

	out, err = execute(t, context.Background(), "verify", ids[0], "--config", configPath, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "verified (5 artifacts)")
}

func TestSingleComponentSkipsOtherReports(t *testing.T) {
	dataDir, outDir, configPath := setupData(t)

	out, err := execute(t, context.Background(), "interval",
		"--config", configPath, "--data-dir", dataDir, "--out", outDir, "--no-charts")
	require.NoError(t, err)

	assert.Contains(t, out, "Confidence Intervals")
	assert.NotContains(t, out, report.WellBeingTitle)
	assert.FileExists(t, filepath.Join(outDir, resultsFile))
	assert.NoFileExists(t, filepath.Join(outDir, assignmentsFile))
	assert.NoFileExists(t, filepath.Join(outDir, chart.ScreenTimeFile))
}

func TestVerifyDetectsTampering(t *testing.T) {
	dataDir, outDir, configPath := setupData(t)
	_, err := execute(t, context.Background(), "wellbeing",
		"--config", configPath, "--data-dir", dataDir, "--out", outDir, "--no-charts")
	require.NoError(t, err)

	stored, err := filepath.Glob(filepath.Join(outDir, "artifacts", string(evaluation.AssignmentsArtifact), "*", "data"))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NoError(t, os.WriteFile(stored[0], []byte("ID,WellBeing,UserGroup\n"), 0o644))

	out, err := execute(t, context.Background(), "verify", runIDs(t, outDir)[0], "--config", configPath, "--out", outDir)
	assert.Error(t, err)
	assert.Contains(t, out, "FAILED")
}

func TestMissingDatasetFails(t *testing.T) {
	dataDir, outDir, configPath := setupData(t)
	require.NoError(t, os.Remove(filepath.Join(dataDir, survey.WellBeingDataset)))

	_, err := execute(t, context.Background(), "screentime",
		"--config", configPath, "--data-dir", dataDir, "--out", outDir)
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(outDir, "runs"))
}

func TestInvalidConfigRejected(t *testing.T) {
	_, _, configPath := setupData(t)
	require.NoError(t, os.WriteFile(configPath, []byte("analysis:\n  confidence_level: 1.5\n"), 0o644))

	_, err := execute(t, context.Background(), "all", "--config", configPath)
	assert.Error(t, err)
}

func TestServeMetricsStopsOnCancel(t *testing.T) {
	dataDir, outDir, configPath := setupData(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, "serve-metrics",
		"--config", configPath, "--data-dir", dataDir, "--out", outDir)
	assert.NoError(t, err)
}

func TestRepeatedRunsReuseCachedResults(t *testing.T) {
	dataDir, outDir, _ := setupData(t)
	cfg := config.DefaultConfig()
	cfg.Data.Dir = dataDir
	cfg.Output.Dir = outDir
	cfg.Output.Charts = false
	cfg.Analysis.Indicators = []string{"Optm", "Usef"}

	a := &app{cfg: cfg, logger: zap.NewNop()}
	defer a.closeCache()

	ctx := context.Background()
	rm := evaluation.NewReproducibilityManager(nil, evaluation.NewFileSystemArtifactStore(outDir, nil), outDir)
	manifest := func(runID string) *evaluation.RunManifest {
		t.Helper()
		m, err := rm.ReadManifest(ctx, runID)
		require.NoError(t, err)
		return m
	}

	first, err := a.runAnalysis(ctx, io.Discard, nil)
	require.NoError(t, err)
	second, err := a.runAnalysis(ctx, io.Discard, nil)
	require.NoError(t, err)

	assert.Empty(t, manifest(first).Cached)
	assert.Equal(t, evaluation.AllComponents, manifest(second).Cached)
	assert.Equal(t, manifest(first).DatasetChecksum, manifest(second).DatasetChecksum)

	wb := filepath.Join(dataDir, survey.WellBeingDataset)
	require.NoError(t, os.WriteFile(wb, []byte(fixtures[survey.WellBeingDataset]+"7,3,3\n"), 0o644))
	third, err := a.runAnalysis(ctx, io.Discard, nil)
	require.NoError(t, err)

	assert.Empty(t, manifest(third).Cached)
	assert.NotEqual(t, manifest(first).DatasetChecksum, manifest(third).DatasetChecksum)
}
