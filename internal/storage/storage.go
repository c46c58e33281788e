// Package storage persists finished match results.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/orchestrator"
)

// Kind names a storage backend.
type Kind string

const (
	KindLocal    Kind = "local"
	KindRemote   Kind = "remote"
	KindPostgres Kind = "postgres"
)

// ParseKinds reads a comma separated backend list, dropping duplicates.
func ParseKinds(raw string) ([]Kind, error) {
	var kinds []Kind
	seen := make(map[Kind]struct{})
	for _, part := range strings.Split(raw, ",") {
		k := Kind(strings.ToLower(strings.TrimSpace(part)))
		if k == "" {
			continue
		}
		switch k {
		case KindLocal, KindRemote, KindPostgres:
		default:
			return nil, fmt.Errorf("unknown storage kind %q", k)
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return []Kind{KindLocal}, nil
	}
	return kinds, nil
}

// Fanout saves each result to every sink, attempting all of them.
type Fanout struct {
	sinks []orchestrator.Sink
}

// NewFanout combines sinks. A single sink is returned unwrapped.
func NewFanout(sinks ...orchestrator.Sink) orchestrator.Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Name() string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Save returns the first sink failure; later sinks still run.
func (f *Fanout) Save(ctx context.Context, runID string, result domain.MatchResult) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Save(ctx, runID, result); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

func storageErr(sink string, result domain.MatchResult, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StorageError{Sink: sink, MatchID: result.Match.ID, Err: err}
}

// objectName is the file or key stem for a result.
func objectName(result domain.MatchResult) string {
	if result.Match.ID != "" {
		return result.Match.ID
	}
	return fmt.Sprintf("match-%04d", result.Index)
}
