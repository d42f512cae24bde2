package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/example/screentime-wellbeing/evaluation"
	"github.com/example/screentime-wellbeing/pkg/chart"
	"github.com/example/screentime-wellbeing/pkg/metrics"
	"github.com/example/screentime-wellbeing/pkg/report"
	"github.com/example/screentime-wellbeing/pkg/survey"
)

const (
	resultsFile     = "results.json"
	assignmentsFile = "assignments.csv"
)

func (a *app) source() (survey.Source, error) {
	if a.cfg.Data.ConfigMap != "" {
		return survey.NewInClusterConfigMapSource(a.cfg.Data.Namespace, a.cfg.Data.ConfigMap)
	}
	return survey.NewFileSource(a.cfg.DatasetPaths()), nil
}

// resultCache returns the cache shared by every run of this command: Redis
// when an address is configured, an in-process memory cache otherwise.
func (a *app) resultCache(ctx context.Context) (evaluation.ResultCache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	if a.cfg.Cache.RedisAddr == "" {
		a.cache = evaluation.NewMemoryResultCache()
		return a.cache, nil
	}
	cache, err := evaluation.NewRedisResultCache(ctx, a.cfg.Cache.RedisAddr, a.cfg.GetCacheTTL(), a.logger)
	if err != nil {
		return nil, err
	}
	a.cache = cache
	return a.cache, nil
}

// closeCache releases the result cache, if one was opened.
func (a *app) closeCache() {
	closer, ok := a.cache.(io.Closer)
	a.cache = nil
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		a.logger.Warn("Failed to close result cache", zap.Error(err))
	}
}

// runAnalysis loads the datasets, runs the selected components and records
// the outputs of the run. It returns the run ID, which is empty when
// artifact recording is disabled.
func (a *app) runAnalysis(ctx context.Context, out io.Writer, components []evaluation.Component) (string, error) {
	started := time.Now().UTC()

	src, err := a.source()
	if err != nil {
		return "", fmt.Errorf("failed to open datasets: %w", err)
	}
	ds, err := survey.NewLoader(src, a.logger).Load(ctx)
	if err != nil {
		return "", err
	}
	if a.cfg.Validation.Enabled {
		if err := survey.Validate(ds, a.cfg.SurveyValidation()); err != nil {
			return "", err
		}
	}
	checksum := ds.Checksum

	cache, err := a.resultCache(ctx)
	if err != nil {
		return "", err
	}

	analyzer := evaluation.NewStatisticalAnalyzer(a.logger, a.cfg.Analysis)
	framework := evaluation.NewEvaluationFramework(analyzer, cache, a.logger)
	results, err := framework.Run(ctx, ds, checksum, components...)
	if err != nil {
		return "", err
	}
	if err := report.PrintResults(out, results); err != nil {
		return "", err
	}

	outputs, err := a.writeOutputs(results)
	if err != nil {
		return "", err
	}
	if a.cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			return "", fmt.Errorf("failed to write metrics textfile: %w", err)
		}
		outputs = append(outputs, output{evaluation.MetricsArtifact, a.cfg.Metrics.Textfile})
	}
	if !a.cfg.Output.Artifacts {
		return "", nil
	}

	if len(components) == 0 {
		components = evaluation.AllComponents
	}
	manifest := &evaluation.RunManifest{
		RunID:           evaluation.NewRunID(),
		StartedAt:       started,
		DatasetChecksum: checksum,
		Join:            ds.Stats,
		Config:          analyzer.Config(),
		Components:      components,
		Cached:          results.Cached,
		KeyFindings:     results.KeyFindings(),
	}
	path, err := a.recordRun(ctx, manifest, outputs)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(out, "\nRun %s recorded in %s\n", manifest.RunID, path)
	return manifest.RunID, nil
}

type output struct {
	kind evaluation.ArtifactType
	path string
}

func (a *app) writeOutputs(results *evaluation.Results) ([]output, error) {
	dir := a.cfg.Output.Dir
	var outputs []output

	path := filepath.Join(dir, resultsFile)
	if err := writeFile(path, func(w io.Writer) error { return report.WriteJSON(w, results) }); err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	outputs = append(outputs, output{evaluation.ReportArtifact, path})

	if results.WellBeing != nil && a.cfg.Output.Assignments {
		path := filepath.Join(dir, assignmentsFile)
		if err := writeFile(path, func(w io.Writer) error { return report.WriteAssignments(w, results.WellBeing) }); err != nil {
			return nil, fmt.Errorf("failed to write assignments: %w", err)
		}
		outputs = append(outputs, output{evaluation.AssignmentsArtifact, path})
	}

	if a.cfg.Output.Charts {
		paths, err := chart.Render(dir, results)
		if err != nil {
			return nil, fmt.Errorf("failed to render charts: %w", err)
		}
		for _, p := range paths {
			outputs = append(outputs, output{evaluation.ChartArtifact, p})
		}
	}

	a.logger.Info("Outputs written", zap.String("dir", dir), zap.Int("files", len(outputs)))
	return outputs, nil
}

func (a *app) recordRun(ctx context.Context, manifest *evaluation.RunManifest, outputs []output) (string, error) {
	base := a.cfg.Output.Dir
	store := evaluation.NewFileSystemArtifactStore(base, a.logger)
	rm := evaluation.NewReproducibilityManager(a.logger, store, base)

	env, err := rm.CaptureEnvironment(ctx)
	if err != nil {
		return "", err
	}
	manifest.Environment = env

	for _, o := range outputs {
		artifact, err := rm.CreateArtifact(ctx, o.kind, filepath.Base(o.path), o.path, manifest.RunID,
			map[string]string{"datasetChecksum": manifest.DatasetChecksum})
		if err != nil {
			return "", err
		}
		manifest.Artifacts = append(manifest.Artifacts, *artifact)
	}

	manifest.CompletedAt = time.Now().UTC()
	return rm.WriteManifest(ctx, manifest)
}

// verify re-validates every artifact of runID and fails when any check
// does not pass.
func (a *app) verify(ctx context.Context, out io.Writer, runID string) error {
	base := a.cfg.Output.Dir
	store := evaluation.NewFileSystemArtifactStore(base, a.logger)
	manifest, err := evaluation.NewReproducibilityManager(a.logger, store, base).ReadManifest(ctx, runID)
	if err != nil {
		return err
	}

	result, err := evaluation.NewReproducibilityValidator(a.logger, store).ValidateRun(ctx, manifest)
	if err != nil {
		return err
	}
	for _, r := range result.Artifacts {
		status := "ok"
		if !r.Passed {
			status = "FAILED"
		}
		fmt.Fprintf(out, "%-6s %-32s score %.2f\n", status, r.Name, r.Score)
		for _, c := range r.Checks {
			if c.Status == evaluation.CheckFailed {
				fmt.Fprintf(out, "       %s: %s\n", c.Name, c.Message)
			}
		}
	}
	if !result.Passed {
		return fmt.Errorf("run %s failed verification (score %.2f)", runID, result.Score)
	}
	fmt.Fprintf(out, "Run %s verified (%d artifacts)\n", runID, len(result.Artifacts))
	return nil
}

// serveMetrics exposes /metrics and re-runs every analysis each interval
// until ctx is cancelled. A failed run is logged and retried on the next
// tick.
func (a *app) serveMetrics(ctx context.Context, out io.Writer, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	mux := http.NewServeMux()
	metrics.RegisterMetrics(mux)
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Metrics server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
loop:
	for {
		if _, err := a.runAnalysis(ctx, out, nil); err != nil && ctx.Err() == nil {
			a.logger.Error("Analysis run failed", zap.Error(err))
		}

		select {
		case err := <-errCh:
			return fmt.Errorf("metrics server failed: %w", err)
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
