package parser

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// flexString accepts JSON strings and numbers alike.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

type eventHeader struct {
	EventBody struct {
		StartDate    int64      `json:"startDate"`
		HomeResult   flexString `json:"homeResult"`
		AwayResult   flexString `json:"awayResult"`
		Venue        string     `json:"venue"`
		VenueTown    string     `json:"venueTown"`
		VenueCountry string     `json:"venueCountry"`
	} `json:"eventBody"`
	EventData struct {
		Home           string `json:"home"`
		Away           string `json:"away"`
		TournamentName string `json:"tournamentName"`
	} `json:"eventData"`
}

// ParseHeader reads the event header payload into a Match. The scheduled time
// is converted to loc (UTC when nil).
func (p *Parser) ParseHeader(fragment string, ref domain.MatchRef, loc *time.Location) (domain.Match, error) {
	id, err := domain.MatchIDFromURL(ref.URL)
	if err != nil {
		return domain.Match{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return domain.Match{}, &domain.HeaderParseError{URL: ref.URL, Err: err}
	}
	node := doc.Find(p.sel.EventHeader).First()
	if node.Length() == 0 {
		return domain.Match{}, &domain.HeaderParseError{URL: ref.URL, Reason: "event header not found"}
	}
	raw, ok := node.Attr(p.sel.EventHeaderAttr)
	if !ok || strings.TrimSpace(raw) == "" {
		return domain.Match{}, &domain.HeaderParseError{URL: ref.URL, Reason: "event header has no payload"}
	}

	var hdr eventHeader
	if err := json.Unmarshal([]byte(raw), &hdr); err != nil {
		return domain.Match{}, &domain.HeaderParseError{URL: ref.URL, Reason: "invalid payload", Err: err}
	}
	home := strings.TrimSpace(hdr.EventData.Home)
	away := strings.TrimSpace(hdr.EventData.Away)
	if home == "" || away == "" {
		return domain.Match{}, &domain.HeaderParseError{URL: ref.URL, Reason: "missing team names"}
	}
	if hdr.EventBody.StartDate <= 0 {
		return domain.Match{}, &domain.HeaderParseError{URL: ref.URL, Reason: "missing start date"}
	}

	match := domain.Match{
		ID:          id,
		URL:         ref.URL,
		Sport:       ref.Sport,
		League:      ref.League,
		ScheduledAt: time.Unix(hdr.EventBody.StartDate, 0).In(loc),
		HomeTeam:    home,
		AwayTeam:    away,
		Venue:       venue(hdr.EventBody.Venue, hdr.EventBody.VenueTown, hdr.EventBody.VenueCountry),
	}
	if match.League == "" {
		match.League = strings.TrimSpace(hdr.EventData.TournamentName)
	}
	homeScore := strings.TrimSpace(string(hdr.EventBody.HomeResult))
	awayScore := strings.TrimSpace(string(hdr.EventBody.AwayResult))
	if homeScore != "" && awayScore != "" {
		match.Score = &domain.Score{Home: homeScore, Away: awayScore}
	}
	return match, nil
}

func venue(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
