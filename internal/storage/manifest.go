package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const manifestFile = "manifest.json"

// Manifest tracks the runs kept under a local storage root.
type Manifest struct {
	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	Retention   Retention `json:"retention"`
	Runs        []RunMeta `json:"runs"`
}

type Retention struct {
	Days int `json:"days"`
}

// RunMeta summarises one run's stored output.
type RunMeta struct {
	RunID       string    `json:"runId"`
	Date        string    `json:"date"`
	Format      Format    `json:"format"`
	Matches     int       `json:"matches"`
	Records     int       `json:"records"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func defaultManifest(retentionDays int) Manifest {
	return Manifest{
		Version:     1,
		GeneratedAt: time.Now().UTC(),
		Retention:   Retention{Days: retentionDays},
		Runs:        []RunMeta{},
	}
}

func readManifest(path string, retentionDays int) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return defaultManifest(retentionDays), err
	}
	defer f.Close()
	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return defaultManifest(retentionDays), err
	}
	return m, nil
}

func writeManifest(basePath string, m Manifest, now time.Time) error {
	m.GeneratedAt = now.UTC()
	path := filepath.Join(basePath, manifestFile)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// upsert adds the run or folds another saved match into it.
func (m *Manifest) upsert(runID, date string, format Format, records int, now time.Time) {
	for i := range m.Runs {
		if m.Runs[i].RunID == runID {
			m.Runs[i].Matches++
			m.Runs[i].Records += records
			m.Runs[i].LastUpdated = now.UTC()
			return
		}
	}
	m.Runs = append(m.Runs, RunMeta{
		RunID:       runID,
		Date:        date,
		Format:      format,
		Matches:     1,
		Records:     records,
		LastUpdated: now.UTC(),
	})
}

func writeAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}
