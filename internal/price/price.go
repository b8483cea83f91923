// Package price turns the currency text sites print into whole-dollar amounts.
package price

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoAmount means the text carried no recognisable amount
var ErrNoAmount = errors.New("no amount in text")

const amountPattern = `(\$)?\s*(\d[\d,]*(?:\.\d+)?)\s*(m(?:il(?:lion)?)?|k)?\b`

var (
	amountRe = regexp.MustCompile(`(?i)` + amountPattern)
	rangeRe  = regexp.MustCompile(`(?i)` + amountPattern + `\s*(?:-|–|—|to)\s*` + amountPattern)
)

// Bounds is the plausible range for a residential estimate
type Bounds struct {
	Min int64
	Max int64
}

// DefaultBounds accepts $100k to $50M
func DefaultBounds() Bounds {
	return Bounds{Min: 100_000, Max: 50_000_000}
}

// Contains reports whether v lies within the bounds
func (b Bounds) Contains(v int64) bool {
	return v >= b.Min && v <= b.Max
}

type amount struct {
	digits string
	dollar bool
	suffix string
}

func (a amount) multiplier() float64 {
	switch strings.ToLower(a.suffix) {
	case "":
		return 1
	case "k":
		return 1_000
	default:
		return 1_000_000
	}
}

func (a amount) value(mult float64) (int64, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(a.digits, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", a.digits, err)
	}
	return int64(math.Round(f * mult)), nil
}

// plausible filters out bare small numbers like bedroom counts and years
func (a amount) plausible() bool {
	if a.dollar || a.suffix != "" || strings.Contains(a.digits, ",") {
		return true
	}
	v, err := a.value(1)
	return err == nil && v >= 10_000
}

func fromGroups(g []string) amount {
	return amount{dollar: g[0] != "", digits: g[1], suffix: g[2]}
}

// ParseAmount returns the first amount in text, e.g. "$1.5M", "850k",
// "$1,200,000" or "QV: $1,500,000"
func ParseAmount(text string) (int64, error) {
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		a := fromGroups(m[1:])
		if !a.plausible() {
			continue
		}
		return a.value(a.multiplier())
	}
	return 0, fmt.Errorf("%w: %q", ErrNoAmount, text)
}

// Range is a lower/upper pair with its midpoint
type Range struct {
	Lower    int64
	Upper    int64
	Midpoint int64
}

// ParseRange parses "lower - upper" forms such as "$750,000 - $820,000",
// "$750k–$820k" or "$1.2 to 1.4M". A suffix on the upper figure alone
// applies to both.
func ParseRange(text string) (Range, error) {
	m := rangeRe.FindStringSubmatch(text)
	if m == nil {
		return Range{}, fmt.Errorf("%w: no range in %q", ErrNoAmount, text)
	}
	lo, hi := fromGroups(m[1:4]), fromGroups(m[4:7])

	loMult := lo.multiplier()
	if lo.suffix == "" && hi.suffix != "" && !strings.Contains(lo.digits, ",") {
		loMult = hi.multiplier()
	}
	lower, err := lo.value(loMult)
	if err != nil {
		return Range{}, err
	}
	upper, err := hi.value(hi.multiplier())
	if err != nil {
		return Range{}, err
	}
	if lower > upper {
		return Range{}, fmt.Errorf("range %q is descending", text)
	}
	return Range{Lower: lower, Upper: upper, Midpoint: Mean(lower, upper)}, nil
}

// Mean returns the average of a and b rounded half up
func Mean(a, b int64) int64 {
	return a/2 + b/2 + (a%2+b%2+1)/2
}

// FindLabelled finds the amount that follows label within a short window,
// e.g. label "estimate" in "Estimate: $1.2M". An amount that opens a range,
// as in "Estimate $750k - $820k", is not a single figure and is skipped.
func FindLabelled(text, label string) (int64, bool) {
	re, err := regexp.Compile(`(?is)` + regexp.QuoteMeta(label) + `[^$\d]{0,40}?` + amountPattern)
	if err != nil {
		return 0, false
	}
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start := loc[4]
		if loc[2] >= 0 {
			start = loc[2]
		}
		if opensRange(text[start:]) {
			continue
		}
		a := amount{digits: text[loc[4]:loc[5]], dollar: loc[2] >= 0}
		if loc[6] >= 0 {
			a.suffix = text[loc[6]:loc[7]]
		}
		if !a.plausible() {
			continue
		}
		v, err := a.value(a.multiplier())
		return v, err == nil
	}
	return 0, false
}

// opensRange reports whether text starts with a "lower - upper" pair
func opensRange(text string) bool {
	m := rangeRe.FindStringSubmatchIndex(text)
	if m == nil || m[0] != 0 {
		return false
	}
	hi := amount{digits: text[m[10]:m[11]], dollar: m[8] >= 0}
	if m[12] >= 0 {
		hi.suffix = text[m[12]:m[13]]
	}
	return hi.plausible()
}
