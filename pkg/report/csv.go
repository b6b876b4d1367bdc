package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/wesleyemery/k8s-scale-telemetry/pkg/telemetry"
)

const (
	TimeSeriesFile = "scale_time_series.csv"
	NodeReadyFile  = "node_ready_times.csv"
)

var (
	timeSeriesHeader = []string{"time_sec", "available_replicas", "total_nodes", "ready_nodes"}
	nodeReadyHeader  = []string{"node_name", "first_seen_sec", "ready_at_sec", "time_to_ready_sec"}
)

// WriteTimeSeriesCSV writes one row per sample
func WriteTimeSeriesCSV(w io.Writer, series []telemetry.Sample) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(timeSeriesHeader); err != nil {
		return fmt.Errorf("failed to write time series header: %w", err)
	}

	for _, s := range series {
		row := []string{
			strconv.Itoa(s.ElapsedSeconds),
			strconv.FormatInt(int64(s.AvailableReplicas), 10),
			strconv.Itoa(s.TotalNodes),
			strconv.Itoa(s.ReadyNodes),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write time series row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteNodeReadyCSV writes one row per node that became ready, sorted by name
func WriteNodeReadyCSV(w io.Writer, result *telemetry.RunResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(nodeReadyHeader); err != nil {
		return fmt.Errorf("failed to write node ready header: %w", err)
	}

	names := make([]string, 0, len(result.TimeToReady))
	for name := range result.TimeToReady {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		obs := result.Nodes[name]
		if obs.FirstSeenAt == nil || obs.ReadyAt == nil {
			continue
		}
		row := []string{
			name,
			strconv.Itoa(*obs.FirstSeenAt),
			strconv.Itoa(*obs.ReadyAt),
			strconv.Itoa(result.TimeToReady[name]),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write node ready row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFiles writes the time series and node readiness files to dir,
// creating it if needed, and returns the paths written
func WriteCSVFiles(dir string, result *telemetry.RunResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{TimeSeriesFile, func(w io.Writer) error { return WriteTimeSeriesCSV(w, result.Series) }},
		{NodeReadyFile, func(w io.Writer) error { return WriteNodeReadyCSV(w, result) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
	}()

	if err := write(file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
