package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/warecover/backend/internal/utils"
)

var (
	hoursUnitRe    = regexp.MustCompile(`(?i)\s*(ч|час(а|ов)?|h|hrs?|hours?)\.?\s*$`)
	priorityCellRe = regexp.MustCompile(`^\s*(.+?)\s*,\s*(\d+(?:[.,]\d+)?\s*(?:ч|час(?:а|ов)?|h|hrs?|hours?)?\.?)\s*$`)
	nonSlugRe      = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	h = strings.ReplaceAll(h, "\u00a0", " ")
	return strings.ToLower(strings.TrimSpace(h))
}

func normalizeCell(v string) string {
	v = strings.ReplaceAll(v, "\u00a0", " ")
	return strings.TrimSpace(v)
}

// ParseHours parses a delivery-time cell. It tolerates locale variants:
// comma decimal separators, non-breaking or grouping spaces, and hour
// unit suffixes ("ч", "час", "h", "hr"). Values must be finite and > 0.
func ParseHours(raw string) (float64, bool) {
	s := normalizeCell(raw)
	if s == "" {
		return 0, false
	}
	s = hoursUnitRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parsePriorityCell splits a composite "<warehouse name>, <hours><unit>"
// cell. The warehouse name may itself contain commas; the time part is
// the trailing number (comma or dot decimals) with an optional unit.
func parsePriorityCell(raw string) (string, float64, bool) {
	s := normalizeCell(raw)
	m := priorityCellRe.FindStringSubmatch(s)
	if m == nil {
		return "", 0, false
	}
	hours, ok := ParseHours(m[2])
	if !ok {
		return "", 0, false
	}
	return m[1], hours, true
}

func isNumericCell(raw string) bool {
	_, ok := ParseHours(raw)
	if ok {
		return true
	}
	// ParseHours rejects non-positive values; for shape detection any
	// parseable number counts as numeric.
	s := strings.ReplaceAll(strings.ReplaceAll(normalizeCell(raw), " ", ""), ",", ".")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// slugify lowers a display name into a stable identifier fragment,
// keeping Unicode letters and digits.
func slugify(name string) string {
	s := strings.ToLower(normalizeCell(name))
	s = nonSlugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// idAssigner derives stable warehouse ids from display names within a
// single upload. Re-parsing the same file yields the same ids; two
// distinct names slugging to the same id get a hash disambiguator.
type idAssigner struct {
	prefix string
	byName map[string]string
	owner  map[string]string
}

func newIDAssigner(prefix string) *idAssigner {
	return &idAssigner{prefix: prefix, byName: map[string]string{}, owner: map[string]string{}}
}

func (a *idAssigner) idFor(name string) string {
	name = normalizeCell(name)
	if id, ok := a.byName[name]; ok {
		return id
	}
	id := slugify(name)
	if id == "" {
		id = utils.ShortHash(name)
	}
	if a.prefix != "" {
		id = a.prefix + id
	}
	if owner, taken := a.owner[id]; taken && owner != name {
		id = id + "-" + utils.ShortHash(name)
	}
	a.byName[name] = id
	a.owner[id] = name
	return id
}
