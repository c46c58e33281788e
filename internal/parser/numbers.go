package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

var (
	signedNumber = regexp.MustCompile(`[+-]?\d+(?:[.,]\d+)?`)
	scoreLine    = regexp.MustCompile(`(\d+)\s*:\s*(\d+)`)
)

// ParseOdds converts a rendered decimal odds string into a float.
// Both "1.95" and "1,95" are accepted, as are thousands separators and
// the doubled text some rows render ("1.951.95").
func ParseOdds(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\u00a0", ""))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, &domain.OddsFormatError{Raw: raw}
	}
	s = undouble(s)
	s = normalizeSeparators(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 1 {
		return 0, &domain.OddsFormatError{Raw: raw}
	}
	return v, nil
}

func undouble(s string) string {
	if len(s)%2 != 0 || !strings.ContainsAny(s, ".,") {
		return s
	}
	half := len(s) / 2
	if s[:half] == s[half:] && strings.ContainsAny(s[:half], ".,") {
		return s[:half]
	}
	return s
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		// Every dot but the last is a grouping separator.
		return strings.Replace(s, ".", "", strings.Count(s, ".")-1)
	}
	return s
}

// ParseLine extracts the line value from a line-group header such as
// "Over/Under +2.5" or "European Handicap -1". Score lines ("2:1") are kept as-is.
func ParseLine(header string) (string, error) {
	num := signedNumber.FindStringIndex(header)
	score := scoreLine.FindStringSubmatchIndex(header)
	if score != nil && (num == nil || score[0] <= num[0]) {
		return header[score[2]:score[3]] + ":" + header[score[4]:score[5]], nil
	}
	if num == nil {
		return "", fmt.Errorf("no line value in header %q", strings.TrimSpace(header))
	}
	raw := strings.Replace(header[num[0]:num[1]], ",", ".", 1)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", fmt.Errorf("line value %q: %w", raw, err)
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}
