package markets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

func TestDefaultRegistryLookup(t *testing.T) {
	reg := Default()

	def, err := reg.Lookup(domain.SportFootball, "1x2")
	if err != nil {
		t.Fatalf("expected 1x2, got %v", err)
	}
	if def.MainTab() != "1X2" || def.Strategy() != domain.SingleLine {
		t.Fatalf("unexpected 1x2 definition %+v", def.Spec())
	}
	if got := def.Labels(); len(got) != 3 || got[1] != "X" {
		t.Fatalf("unexpected labels %v", got)
	}

	ou, err := reg.Lookup(domain.SportFootball, " OVER_UNDER_2_5 ")
	if err != nil {
		t.Fatalf("expected over_under_2_5, got %v", err)
	}
	if ou.Strategy() != domain.MultiLine || ou.SpecificTab() != "Over/Under +2.5" {
		t.Fatalf("unexpected over/under definition %+v", ou.Spec())
	}

	eh, err := reg.Lookup(domain.SportFootball, "european_handicap_-1")
	if err != nil || eh.SpecificTab() != "European Handicap -1" {
		t.Fatalf("unexpected handicap definition %+v err %v", eh.Spec(), err)
	}

	if _, err := reg.Lookup(domain.SportTennis, "1x2"); err == nil {
		t.Fatal("expected football market to be unknown for tennis")
	}
}

func TestLookupUnknownReturnsTypedError(t *testing.T) {
	reg := Default()
	_, err := reg.Lookup(domain.SportFootball, "bogus_market")
	unknown, ok := domain.AsUnknownMarketError(err)
	if !ok {
		t.Fatalf("expected UnknownMarketError, got %T", err)
	}
	if unknown.Sport != domain.SportFootball || unknown.Keys[0] != "bogus_market" || unknown.All {
		t.Fatalf("unexpected error payload %+v", unknown)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var reg *Registry
	if _, err := reg.Lookup(domain.SportFootball, "1x2"); err == nil {
		t.Fatal("expected error from nil registry")
	}
	if reg.Len() != 0 || reg.Keys(domain.SportFootball) != nil {
		t.Fatal("expected empty results from nil registry")
	}
}

func TestNewRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	if _, err := NewRegistry(); err != ErrRegistryEmpty {
		t.Fatalf("expected ErrRegistryEmpty, got %v", err)
	}
	def := domain.MustMarketDefinition(domain.MarketSpec{Sport: domain.SportFootball, Key: "1x2", MainTab: "1X2", Labels: []string{"1", "X", "2"}})
	if _, err := NewRegistry(def, def); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestNewRegistryRejectsZeroValueDefinition(t *testing.T) {
	valid := domain.MustMarketDefinition(domain.MarketSpec{Sport: domain.SportFootball, Key: "1x2", MainTab: "1X2", Labels: []string{"1", "X", "2"}})
	if _, err := NewRegistry(valid, domain.MarketDefinition{}); err == nil {
		t.Fatal("expected zero-value definition to be rejected")
	}
	if _, err := NewRegistry(valid); err != nil {
		t.Fatalf("expected valid definition accepted, got %v", err)
	}
}

func TestTennisMarketsUseTheirOwnTabs(t *testing.T) {
	reg := Default()
	cases := []struct {
		key, main, specific string
	}{
		{"over_under_sets_2_5", "Over/Under Sets", "Over/Under +2.5"},
		{"over_under_games_20_5", "Over/Under Games", "Over/Under +20.5"},
		{"asian_handicap_games_4_5", "Asian Handicap Games", "Asian Handicap +4.5"},
	}
	for _, tc := range cases {
		def, err := reg.Lookup(domain.SportTennis, tc.key)
		if err != nil {
			t.Fatalf("lookup %s: %v", tc.key, err)
		}
		if def.MainTab() != tc.main || def.SpecificTab() != tc.specific {
			t.Fatalf("%s: expected tabs %q/%q, got %q/%q", tc.key, tc.main, tc.specific, def.MainTab(), def.SpecificTab())
		}
	}
}

func TestDefaultTableCoverage(t *testing.T) {
	reg := Default()
	football := reg.Keys(domain.SportFootball)
	// 4 single-line, 2 all-line, 13 over/under lines, 8 handicaps.
	if len(football) != 27 {
		t.Fatalf("expected 27 football markets, got %d: %v", len(football), football)
	}
	tennis := reg.Keys(domain.SportTennis)
	// match winner, sets, 9 games lines, 7 handicaps, 4 correct scores.
	if len(tennis) != 22 {
		t.Fatalf("expected 22 tennis markets, got %d: %v", len(tennis), tennis)
	}
	if reg.Len() != len(football)+len(tennis) {
		t.Fatalf("expected Len to match key counts")
	}
	for i := 1; i < len(football); i++ {
		if football[i-1] > football[i] {
			t.Fatalf("expected sorted keys, got %v", football)
		}
	}
}

func TestResolveSplitsKnownAndUnknown(t *testing.T) {
	known, unknown := Default().Resolve(domain.SportFootball, []string{"1x2", "bogus", "btts"})
	if len(known) != 2 || known[0].Key() != "1x2" || known[1].Key() != "btts" {
		t.Fatalf("unexpected known %+v", known)
	}
	if len(unknown) != 1 || unknown[0] != "bogus" {
		t.Fatalf("unexpected unknown %v", unknown)
	}
}

func TestLoadFileOverridesAndExtends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "markets.yaml")
	doc := `
markets:
  - sport: football
    key: 1x2
    main_tab: "Full Time Result"
    labels: ["home", "draw", "away"]
  - sport: basketball
    key: home_away
    main_tab: "Home/Away"
    labels: ["1", "2"]
    periods: ["FullTimeInclOT"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	base := Default()
	reg, err := LoadFile(path, base)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := reg.Lookup(domain.SportFootball, "1x2")
	if err != nil || def.MainTab() != "Full Time Result" {
		t.Fatalf("expected override, got %+v err %v", def.Spec(), err)
	}
	bb, err := reg.Lookup(domain.SportBasketball, "home_away")
	if err != nil || !bb.SupportsPeriod(domain.PeriodFullInclOT) {
		t.Fatalf("expected basketball market, got %+v err %v", bb.Spec(), err)
	}
	if reg.Len() != base.Len()+1 {
		t.Fatalf("expected one new definition, got %d vs %d", reg.Len(), base.Len())
	}
	if orig, _ := base.Lookup(domain.SportFootball, "1x2"); orig.MainTab() != "1X2" {
		t.Fatal("expected base registry to be unchanged")
	}
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	if _, err := Parse([]byte("markets:\n  - sport: football\n    key: x\n"), nil); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := Parse([]byte("markets: ["), nil); err == nil {
		t.Fatal("expected yaml error")
	}
}
