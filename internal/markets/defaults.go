package markets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

var (
	footballPeriods = []domain.Period{domain.PeriodFullTime, domain.PeriodFirstHalf, domain.PeriodSecondHalf}
	tennisPeriods   = []domain.Period{domain.PeriodFullTime, domain.PeriodFirstSet}

	overUnderLabels = []string{"odds_over", "odds_under"}
)

// Default returns the built-in market table for football and tennis.
func Default() *Registry {
	r, err := NewRegistry(DefaultDefinitions()...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultDefinitions lists the built-in definitions in registration order.
func DefaultDefinitions() []domain.MarketDefinition {
	var defs []domain.MarketDefinition
	defs = append(defs, footballDefinitions()...)
	defs = append(defs, tennisDefinitions()...)
	return defs
}

func footballDefinitions() []domain.MarketDefinition {
	single := func(key, tab string, labels ...string) domain.MarketDefinition {
		return domain.MustMarketDefinition(domain.MarketSpec{
			Sport:    domain.SportFootball,
			Key:      key,
			MainTab:  tab,
			Labels:   labels,
			Periods:  footballPeriods,
			Strategy: domain.SingleLine,
		})
	}
	defs := []domain.MarketDefinition{
		single("1x2", "1X2", "1", "X", "2"),
		single("btts", "Both Teams to Score", "btts_yes", "btts_no"),
		single("double_chance", "Double Chance", "1X", "12", "X2"),
		single("dnb", "Draw No Bet", "dnb_team1", "dnb_team2"),
		multi(domain.SportFootball, "over_under", "Over/Under", "", overUnderLabels, footballPeriods),
		multi(domain.SportFootball, "european_handicap", "European Handicap", "",
			[]string{"team1_handicap", "draw_handicap", "team2_handicap"}, footballPeriods),
	}

	for tenths := 5; tenths <= 65; tenths += 5 {
		line := formatLine(tenths)
		defs = append(defs, multi(domain.SportFootball,
			"over_under_"+keySuffix(line),
			"Over/Under", "Over/Under +"+line,
			overUnderLabels, footballPeriods))
	}

	for _, h := range []int{-4, -3, -2, -1, 1, 2, 3, 4} {
		defs = append(defs, multi(domain.SportFootball,
			fmt.Sprintf("european_handicap_%d", h),
			"European Handicap", fmt.Sprintf("European Handicap %+d", h),
			[]string{"team1_handicap", "draw_handicap", "team2_handicap"}, footballPeriods))
	}
	return defs
}

func tennisDefinitions() []domain.MarketDefinition {
	defs := []domain.MarketDefinition{
		domain.MustMarketDefinition(domain.MarketSpec{
			Sport:    domain.SportTennis,
			Key:      "match_winner",
			MainTab:  "Home/Away",
			Labels:   []string{"player_1", "player_2"},
			Periods:  tennisPeriods,
			Strategy: domain.SingleLine,
		}),
		multi(domain.SportTennis, "over_under_sets_2_5", "Over/Under Sets", "Over/Under +2.5",
			overUnderLabels, []domain.Period{domain.PeriodFullTime}),
	}

	for tenths := 165; tenths <= 245; tenths += 10 {
		line := formatLine(tenths)
		defs = append(defs, multi(domain.SportTennis,
			"over_under_games_"+keySuffix(line),
			"Over/Under Games", "Over/Under +"+line,
			overUnderLabels, tennisPeriods))
	}

	for tenths := 25; tenths <= 85; tenths += 10 {
		line := formatLine(tenths)
		defs = append(defs, multi(domain.SportTennis,
			"asian_handicap_games_"+keySuffix(line),
			"Asian Handicap Games", "Asian Handicap +"+line,
			[]string{"handicap_player_1", "handicap_player_2"}, tennisPeriods))
	}

	for _, score := range [][2]int{{2, 0}, {2, 1}, {0, 2}, {1, 2}} {
		defs = append(defs, multi(domain.SportTennis,
			fmt.Sprintf("correct_score_%d_%d", score[0], score[1]),
			"Correct Score", fmt.Sprintf("%d:%d", score[0], score[1]),
			[]string{"correct_score"}, []domain.Period{domain.PeriodFullTime}))
	}
	return defs
}

func multi(sport domain.Sport, key, mainTab, specificTab string, labels []string, periods []domain.Period) domain.MarketDefinition {
	return domain.MustMarketDefinition(domain.MarketSpec{
		Sport:       sport,
		Key:         key,
		MainTab:     mainTab,
		SpecificTab: specificTab,
		Labels:      labels,
		Periods:     periods,
		Strategy:    domain.MultiLine,
	})
}

// formatLine renders tenths (25 -> "2.5", 10 -> "1").
func formatLine(tenths int) string {
	return strconv.FormatFloat(float64(tenths)/10, 'f', -1, 64)
}

func keySuffix(line string) string {
	return strings.ReplaceAll(line, ".", "_")
}
