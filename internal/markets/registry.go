// Package markets holds the static, sport-keyed table of market definitions.
package markets

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// ErrRegistryEmpty is returned when a registry is built without definitions.
var ErrRegistryEmpty = errors.New("markets: registry has no definitions")

// Registry is an immutable lookup table of market definitions.
// Build it once at startup and share the pointer; it has no mutators.
type Registry struct {
	defs map[domain.Sport]map[string]domain.MarketDefinition
	size int
}

// NewRegistry builds a registry, rejecting invalid definitions and duplicate
// (sport, key) pairs.
func NewRegistry(defs ...domain.MarketDefinition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, ErrRegistryEmpty
	}
	r := &Registry{defs: make(map[domain.Sport]map[string]domain.MarketDefinition)}
	for i, def := range defs {
		if err := validDefinition(def); err != nil {
			return nil, fmt.Errorf("markets: definition %d: %w", i, err)
		}
		bySport, ok := r.defs[def.Sport()]
		if !ok {
			bySport = make(map[string]domain.MarketDefinition)
			r.defs[def.Sport()] = bySport
		}
		if _, exists := bySport[def.Key()]; exists {
			return nil, fmt.Errorf("markets: duplicate registration for %s/%s", def.Sport(), def.Key())
		}
		bySport[def.Key()] = def
		r.size++
	}
	return r, nil
}

// validDefinition catches zero-value definitions built without NewMarketDefinition.
func validDefinition(def domain.MarketDefinition) error {
	if _, err := domain.NewMarketDefinition(def.Spec()); err != nil {
		return err
	}
	if len(def.Periods()) == 0 {
		return fmt.Errorf("market %q: at least one period is required", def.Key())
	}
	return nil
}

// Lookup resolves a market definition or returns *domain.UnknownMarketError.
func (r *Registry) Lookup(sport domain.Sport, key string) (domain.MarketDefinition, error) {
	k := normalizeKey(key)
	if r != nil {
		if def, ok := r.defs[sport][k]; ok {
			return def, nil
		}
	}
	return domain.MarketDefinition{}, &domain.UnknownMarketError{Sport: sport, Keys: []string{k}}
}

// Keys lists the registered market keys for a sport in sorted order.
func (r *Registry) Keys(sport domain.Sport) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.defs[sport]))
	for k := range r.defs[sport] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sports lists the sports that have at least one market.
func (r *Registry) Sports() []domain.Sport {
	if r == nil {
		return nil
	}
	out := make([]domain.Sport, 0, len(r.defs))
	for s := range r.defs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.size
}

// Definitions returns every definition ordered by sport then key.
func (r *Registry) Definitions() []domain.MarketDefinition {
	var out []domain.MarketDefinition
	for _, sport := range r.Sports() {
		for _, key := range r.Keys(sport) {
			out = append(out, r.defs[sport][key])
		}
	}
	return out
}

// With returns a new registry where the given definitions replace or extend this one.
func (r *Registry) With(defs ...domain.MarketDefinition) (*Registry, error) {
	merged := make(map[domain.Sport]map[string]domain.MarketDefinition)
	put := func(def domain.MarketDefinition) {
		if merged[def.Sport()] == nil {
			merged[def.Sport()] = make(map[string]domain.MarketDefinition)
		}
		merged[def.Sport()][def.Key()] = def
	}
	for _, def := range r.Definitions() {
		put(def)
	}
	for _, def := range defs {
		put(def)
	}
	var all []domain.MarketDefinition
	for _, bySport := range merged {
		for _, def := range bySport {
			all = append(all, def)
		}
	}
	return NewRegistry(all...)
}

// Resolve splits requested keys into known definitions and unknown keys, preserving order.
func (r *Registry) Resolve(sport domain.Sport, keys []string) ([]domain.MarketDefinition, []string) {
	var known []domain.MarketDefinition
	var unknown []string
	for _, key := range keys {
		def, err := r.Lookup(sport, key)
		if err != nil {
			unknown = append(unknown, normalizeKey(key))
			continue
		}
		known = append(known, def)
	}
	return known, unknown
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
