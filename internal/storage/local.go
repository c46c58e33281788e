package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/timeutil"
)

// Format is the on-disk encoding of local output.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

const (
	defaultRetentionDays = 14
	defaultRunID         = "adhoc"
)

// LocalConfig configures the filesystem sink.
type LocalConfig struct {
	Path          string
	Format        Format
	RetentionDays int
}

// Local writes results under {path}/{date}/: one JSON file per match in a run
// directory, or one CSV file per run. A manifest lists the runs kept and
// runs older than the retention window are pruned.
type Local struct {
	basePath      string
	format        Format
	retentionDays int
	now           func() time.Time

	mu sync.Mutex
}

// NewLocal validates cfg and builds a local sink.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("local storage path required")
	}
	format := Format(strings.ToLower(string(cfg.Format)))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("unsupported local storage format %q", cfg.Format)
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	return &Local{
		basePath:      cfg.Path,
		format:        format,
		retentionDays: cfg.RetentionDays,
		now:           time.Now,
	}, nil
}

func (l *Local) Name() string { return string(KindLocal) }

// BasePath exposes the storage root.
func (l *Local) BasePath() string {
	if l == nil {
		return ""
	}
	return l.basePath
}

func (l *Local) Save(ctx context.Context, runID string, result domain.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return storageErr(l.Name(), result, err)
	}
	if runID == "" {
		runID = defaultRunID
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	date := timeutil.FormatDate(l.now().UTC())
	var err error
	switch l.format {
	case FormatCSV:
		err = l.appendCSV(l.csvPath(date, runID), result)
	default:
		err = l.writeJSON(l.jsonPath(date, runID, result), result)
	}
	if err == nil {
		err = l.updateManifest(date, runID, len(result.Records))
	}
	return storageErr(l.Name(), result, err)
}

func (l *Local) jsonPath(date, runID string, result domain.MatchResult) string {
	return filepath.Join(l.basePath, date, runID, objectName(result)+".json")
}

func (l *Local) csvPath(date, runID string) string {
	return filepath.Join(l.basePath, date, runID+".csv")
}

func (l *Local) writeJSON(target string, result domain.MatchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	return writeAtomic(target, data)
}

func (l *Local) appendCSV(target string, result domain.MatchResult) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	_, statErr := os.Stat(target)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.WriteAll(flatten(result)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *Local) updateManifest(date, runID string, records int) error {
	now := l.now()
	m, _ := readManifest(filepath.Join(l.basePath, manifestFile), l.retentionDays)
	m.Retention.Days = l.retentionDays
	m.upsert(runID, date, l.format, records, now)
	m.Runs = l.prune(m.Runs, now)
	return writeManifest(l.basePath, m, now)
}

// prune removes date directories older than the retention window and drops their runs.
func (l *Local) prune(runs []RunMeta, now time.Time) []RunMeta {
	cutoff := timeutil.RetentionCutoff(now, l.retentionDays)
	entries, err := os.ReadDir(l.basePath)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			day, err := timeutil.ParseDate(e.Name())
			if err != nil || !day.Before(cutoff) {
				continue
			}
			_ = os.RemoveAll(filepath.Join(l.basePath, e.Name()))
		}
	}

	keep := runs[:0]
	for _, r := range runs {
		if day, err := timeutil.ParseDate(r.Date); err == nil && day.Before(cutoff) {
			continue
		}
		keep = append(keep, r)
	}
	sort.SliceStable(keep, func(i, j int) bool {
		return keep[i].LastUpdated.Before(keep[j].LastUpdated)
	})
	return keep
}

// Manifest reads the current manifest.
func (l *Local) Manifest() (Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := readManifest(filepath.Join(l.basePath, manifestFile), l.retentionDays)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	return m, err
}

// LoadRun reads back the JSON results of one run, ordered by submission index.
func (l *Local) LoadRun(date, runID string) ([]domain.MatchResult, error) {
	if l.format != FormatJSON {
		return nil, fmt.Errorf("run loading needs json format, have %s", l.format)
	}
	dir := filepath.Join(l.basePath, date, runID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var results []domain.MatchResult
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var res domain.MatchResult
		if err := decodeFile(filepath.Join(dir, e.Name()), &res); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Name(), err)
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results, nil
}

func decodeFile(path string, payload any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(payload)
}
