// Package artifacts lays out and persists everything one run writes to
// disk: per-run subdirectories, bar data, debug/plot/export JSON blobs,
// and the top-level run summaries, matching spec's runs/<run_id>/ layout.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arrowlake/numerion/internal/marketdata"
)

// Store roots every run's artifacts under a single runs directory,
// matching the original ArtifactStore's per-run subdirectory layout.
type Store struct {
	runsDir string
}

// New creates a Store rooted at runsDir, creating it if missing.
func New(runsDir string) (*Store, error) {
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create runs dir: %w", err)
	}
	return &Store{runsDir: runsDir}, nil
}

func mkdir(path string) (string, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create %s: %w", path, err)
	}
	return path, nil
}

// RunDir returns runs/<run_id>, creating it if missing.
func (s *Store) RunDir(runID string) (string, error) {
	return mkdir(filepath.Join(s.runsDir, runID))
}

// DataDir returns runs/<run_id>/data.
func (s *Store) DataDir(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return mkdir(filepath.Join(root, "data"))
}

// DebugDir returns runs/<run_id>/debug.
func (s *Store) DebugDir(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return mkdir(filepath.Join(root, "debug"))
}

// PlotDir returns runs/<run_id>/plots.
func (s *Store) PlotDir(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return mkdir(filepath.Join(root, "plots"))
}

// ReportDir returns runs/<run_id>/report.
func (s *Store) ReportDir(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return mkdir(filepath.Join(root, "report"))
}

// ExportDir returns runs/<run_id>/exports.
func (s *Store) ExportDir(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return mkdir(filepath.Join(root, "exports"))
}

// SaveJSON marshals data with indentation and writes it to path,
// hardening the original's plain json.dump with a write-to-temp-then-
// rename so a crash mid-write never leaves a truncated artifact behind.
func (s *Store) SaveJSON(path string, data any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifacts: create parent dir for %s: %w", path, err)
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("artifacts: marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("artifacts: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// LoadJSON reads path and unmarshals it into out.
func (s *Store) LoadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("artifacts: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("artifacts: unmarshal %s: %w", path, err)
	}
	return nil
}

// DebugPath returns the path for a stage's debug JSON blob.
func (s *Store) DebugPath(runID, symbol, timeframe string) (string, error) {
	dir, err := s.DebugDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("search_%s_%s.json", symbol, timeframe)), nil
}

// PlotPath returns the path for a plot payload keyed by plotID.
func (s *Store) PlotPath(runID, plotID string) (string, error) {
	dir, err := s.PlotDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, plotID+".json"), nil
}

// UniverseSnapshotPath returns runs/<run_id>/universe_snapshot.json.
func (s *Store) UniverseSnapshotPath(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "universe_snapshot.json"), nil
}

// ResultSummaryPath returns runs/<run_id>/result_summary.json.
func (s *Store) ResultSummaryPath(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "result_summary.json"), nil
}

// TelemetryLogPath returns runs/<run_id>/telemetry.log.
func (s *Store) TelemetryLogPath(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "telemetry.log"), nil
}

// TelemetryJSONLPath returns runs/<run_id>/telemetry.jsonl.
func (s *Store) TelemetryJSONLPath(runID string) (string, error) {
	root, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "telemetry.jsonl"), nil
}

// ExpressionToPinePath returns runs/<run_id>/exports/expression_to_pine.json.
func (s *Store) ExpressionToPinePath(runID string) (string, error) {
	dir, err := s.ExportDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "expression_to_pine.json"), nil
}

// PineScriptPath returns runs/<run_id>/exports/<name>.pine.
func (s *Store) PineScriptPath(runID, name string) (string, error) {
	dir, err := s.ExportDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".pine"), nil
}

// SaveBars writes bars as a columnar block: a header row naming the
// fields, positional rows below it — a dependency-light stand-in for
// the original's parquet file, round-trippable byte-for-byte through
// LoadBars.
func (s *Store) SaveBars(runID, symbol, timeframe string, bars []marketdata.Kline) (string, error) {
	dir, err := s.DataDir(runID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("bars_%s_%s.csv", symbol, timeframe))

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("artifacts: create %s: %w", tmp, err)
	}
	if _, err := fmt.Fprintln(f, "open_time,open,high,low,close,volume,close_time"); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("artifacts: write header for %s: %w", path, err)
	}
	for _, k := range bars {
		if _, err := fmt.Fprintf(f, "%d,%g,%g,%g,%g,%g,%d\n",
			k.OpenTimeMs, k.Open, k.High, k.Low, k.Close, k.Volume, k.CloseTimeMs); err != nil {
			f.Close()
			_ = os.Remove(tmp)
			return "", fmt.Errorf("artifacts: write row for %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("artifacts: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("artifacts: rename %s to %s: %w", tmp, path, err)
	}
	return path, nil
}

// LoadBars reads back a columnar block written by SaveBars.
func (s *Store) LoadBars(runID, symbol, timeframe string) ([]marketdata.Kline, error) {
	dir, err := s.DataDir(runID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("bars_%s_%s.csv", symbol, timeframe))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifacts: read %s: %w", path, err)
	}
	return decodeBarsCSV(data)
}
