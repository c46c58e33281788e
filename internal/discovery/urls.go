package discovery

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/timeutil"
)

// DefaultBaseURL is the odds site root.
const DefaultBaseURL = "https://www.oddsportal.com"

const currentSeason = "current"

var (
	// ErrUnknownLeague is returned for league slugs missing from the league table.
	ErrUnknownLeague = errors.New("unknown league")
	// ErrInvalidSeason is returned for seasons not shaped YYYY-YYYY with consecutive years.
	ErrInvalidSeason = errors.New("invalid season")
	// ErrInvalidDate is returned for unparseable or past upcoming dates.
	ErrInvalidDate = errors.New("invalid date")
)

var seasonPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// URLBuilder builds listing URLs against a site root.
type URLBuilder struct {
	base string
}

// NewURLBuilder returns a builder rooted at base, or DefaultBaseURL when base is empty.
func NewURLBuilder(base string) URLBuilder {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return URLBuilder{base: base}
}

// Base returns the site root without a trailing slash.
func (b URLBuilder) Base() string { return b.base }

// League returns the league listing URL without a trailing slash.
func (b URLBuilder) League(sport domain.Sport, league string) (string, error) {
	path, ok := LeaguePath(sport, league)
	if !ok {
		return "", fmt.Errorf("%w %q for sport %s", ErrUnknownLeague, league, sport)
	}
	return b.base + path, nil
}

// Upcoming returns the listing URL for matches on date. A league narrows the listing
// to that league's page.
func (b URLBuilder) Upcoming(sport domain.Sport, date time.Time, league string) (string, error) {
	if league != "" {
		u, err := b.League(sport, league)
		if err != nil {
			return "", err
		}
		return u + "/", nil
	}
	return fmt.Sprintf("%s/matches/%s/%s/", b.base, sport, date.Format(timeutil.CompactDateLayout)), nil
}

// Historic returns the results listing for a league season. An empty season or
// "current" selects the running season.
func (b URLBuilder) Historic(sport domain.Sport, league, season string) (string, error) {
	u, err := b.League(sport, league)
	if err != nil {
		return "", err
	}
	season = strings.TrimSpace(season)
	if season == "" || strings.EqualFold(season, currentSeason) {
		return u + "/results/", nil
	}
	if err := ValidateSeason(season); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s/results/", u, season), nil
}

// ValidateSeason checks the YYYY-YYYY shape with consecutive years.
func ValidateSeason(season string) error {
	m := seasonPattern.FindStringSubmatch(season)
	if m == nil {
		return fmt.Errorf("%w %q: expected YYYY-YYYY", ErrInvalidSeason, season)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end != start+1 {
		return fmt.Errorf("%w %q: years must be consecutive", ErrInvalidSeason, season)
	}
	return nil
}

// ParseUpcomingDate reads YYYYMMDD or YYYY-MM-DD in loc and rejects dates before today.
func ParseUpcomingDate(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	var (
		date time.Time
		err  error
	)
	if strings.Contains(raw, "-") {
		date, err = time.ParseInLocation(timeutil.DateLayout, raw, loc)
	} else {
		date, err = time.ParseInLocation(timeutil.CompactDateLayout, raw, loc)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: expected YYYYMMDD", ErrInvalidDate, raw)
	}
	if date.Before(timeutil.StartOfDay(now.In(loc))) {
		return time.Time{}, fmt.Errorf("%w %q: must be today or later", ErrInvalidDate, raw)
	}
	return date, nil
}
