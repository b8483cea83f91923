// Package address normalizes free-text New Zealand street addresses into
// lookup keys and the structured parts site searches need.
package address

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var streetTypes = map[string]string{
	"st": "street", "street": "street",
	"rd": "road", "road": "road",
	"ave": "avenue", "av": "avenue", "avenue": "avenue",
	"dr": "drive", "drive": "drive",
	"pl": "place", "place": "place",
	"cres": "crescent", "cr": "crescent", "crescent": "crescent",
	"tce": "terrace", "terrace": "terrace",
	"ln": "lane", "lane": "lane",
	"ct": "court", "court": "court",
	"hwy": "highway", "highway": "highway",
	"pde": "parade", "parade": "parade",
	"blvd": "boulevard", "boulevard": "boulevard",
	"cl": "close", "close": "close",
	"gr": "grove", "grove": "grove",
	"sq": "square", "square": "square",
	"esp": "esplanade", "esplanade": "esplanade",
	"way": "way", "mews": "mews", "rise": "rise", "quay": "quay",
}

var (
	slashUnitRe  = regexp.MustCompile(`^(\d+[A-Za-z]?)\s*/\s*(.+)$`)
	prefixUnitRe = regexp.MustCompile(`(?i)^(?:unit|flat|apt|apartment)\s*(\d+[A-Za-z]?)\s*,?\s*(.*)$`)
	numberRe     = regexp.MustCompile(`^(\d+[A-Za-z]?)\s+(.+)$`)
	dropRe       = regexp.MustCompile(`['’.]`)
	spaceRe      = regexp.MustCompile(`[^\pL\pN]+`)
)

// Parts is the structured form of an address. Fields the input did not
// carry are empty.
type Parts struct {
	Unit       string `json:"unit,omitempty"`
	Number     string `json:"number,omitempty"`
	Street     string `json:"street,omitempty"`
	StreetType string `json:"street_type,omitempty"`
	Suburb     string `json:"suburb,omitempty"`
	City       string `json:"city,omitempty"`
}

// StreetLine renders "unit/number street type"
func (p Parts) StreetLine() string {
	var b strings.Builder
	if p.Unit != "" {
		b.WriteString(p.Unit)
		b.WriteString("/")
	}
	b.WriteString(p.Number)
	for _, s := range []string{p.Street, titleCase(p.StreetType)} {
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s)
	}
	return b.String()
}

// Address is an immutable parsed address
type Address struct {
	raw   string
	key   string
	parts Parts
	extra []string
	ok    bool
}

// New parses raw. Inputs without a street number keep their text as-is and
// report Parsed() == false.
func New(raw string) Address {
	a := Address{raw: strings.TrimSpace(raw)}

	var segs []string
	for _, s := range strings.Split(a.raw, ",") {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			segs = append(segs, s)
		}
	}

	if len(segs) > 1 {
		if m := prefixUnitRe.FindStringSubmatch(segs[0]); m != nil && m[2] == "" {
			// "Unit 2, 677 Worcester Street"
			a.parts.Unit = strings.ToUpper(m[1])
			segs = segs[1:]
		}
	}

	if len(segs) > 0 {
		a.ok = a.parseStreetLine(segs[0])
		rest := segs[1:]
		if len(rest) > 0 {
			a.parts.Suburb = rest[0]
		}
		if len(rest) > 1 {
			a.parts.City = rest[1]
		}
		if len(rest) > 2 {
			a.extra = rest[2:]
		}
	}

	if a.ok {
		a.key = Normalize(a.String())
	} else {
		a.key = Normalize(a.raw)
	}
	return a
}

func (a *Address) parseStreetLine(line string) bool {
	if m := prefixUnitRe.FindStringSubmatch(line); m != nil && m[2] != "" {
		a.parts.Unit = strings.ToUpper(m[1])
		line = m[2]
	} else if m := slashUnitRe.FindStringSubmatch(line); m != nil {
		a.parts.Unit = strings.ToUpper(m[1])
		line = m[2]
	}

	m := numberRe.FindStringSubmatch(line)
	if m == nil {
		a.parts.Unit = ""
		a.parts.Street = line
		return false
	}
	a.parts.Number = strings.ToUpper(m[1])

	words := strings.Fields(m[2])
	if len(words) > 1 {
		last := strings.ToLower(strings.TrimSuffix(words[len(words)-1], "."))
		if full, ok := streetTypes[last]; ok {
			a.parts.StreetType = full
			words = words[:len(words)-1]
		}
	}
	a.parts.Street = strings.Join(words, " ")
	return true
}

// Raw returns the input text
func (a Address) Raw() string { return a.raw }

// Key returns the normalized form used for cache lookups
func (a Address) Key() string { return a.key }

// Parts returns the structured form
func (a Address) Parts() Parts { return a.parts }

// Parsed reports whether a street number was recognised
func (a Address) Parsed() bool { return a.ok }

// String renders the canonical comma-separated address
func (a Address) String() string {
	if !a.ok {
		return a.raw
	}
	segs := []string{a.parts.StreetLine()}
	for _, s := range append([]string{a.parts.Suburb, a.parts.City}, a.extra...) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return strings.Join(segs, ", ")
}

// Queries returns search texts from most to least specific: the full
// address, then with trailing comma parts dropped down to the street line.
func (a Address) Queries() []string {
	if !a.ok {
		return []string{a.raw}
	}
	full := strings.Split(a.String(), ", ")
	out := make([]string, 0, len(full))
	for n := len(full); n >= 1; n-- {
		out = append(out, strings.Join(full[:n], ", "))
	}
	return out
}

// UnitCompatible reports whether text could denote this address's unit.
// Texts without a unit, or an address without one, are always compatible.
func (a Address) UnitCompatible(text string) bool {
	if a.parts.Unit == "" {
		return true
	}
	other := New(text)
	if other.parts.Unit == "" {
		return true
	}
	return strings.EqualFold(other.parts.Unit, a.parts.Unit)
}

// CommonPrefixLen counts the leading characters text shares with the
// address once both are normalized
func (a Address) CommonPrefixLen(text string) int {
	x, y := []rune(a.key), []rune(New(text).Key())
	n := 0
	for n < len(x) && n < len(y) && x[n] == y[n] {
		n++
	}
	return n
}

// Normalize lowercases s, strips diacritics and punctuation and collapses
// whitespace
func Normalize(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		s,
	)
	s = strings.ToLower(s)
	s = dropRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
