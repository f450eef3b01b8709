package navigation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const defaultMatchThreshold = 0.88

// Hotspot is a known flood-prone area.
type Hotspot struct {
	Name string

	// Message is read to the driver when the hotspot matches. Empty means a
	// generic warning naming the hotspot.
	Message string
}

func (h Hotspot) warning(address string) string {
	if h.Message != "" {
		return h.Message
	}
	return fmt.Sprintf("Potential flood risk reported around %s, near %s.", h.Name, address)
}

// HotspotMatcher finds hotspot names inside free-text addresses. Geocoders
// spell local names inconsistently ("Geylang Bahru", "Geylang Bharu"), so a
// hotspot matches when some window of address words shares a Double
// Metaphone code with it and is close by Jaro-Winkler similarity.
//
// A HotspotMatcher is read-only after construction and safe for concurrent
// use.
type HotspotMatcher struct {
	hotspots  []hotspotEntry
	threshold float64
}

type hotspotEntry struct {
	Hotspot
	tokens []string
	codes  map[string]struct{}
}

// NewHotspotMatcher prepares hotspots for matching. threshold is the minimum
// Jaro-Winkler similarity; zero selects the default of 0.88.
func NewHotspotMatcher(hotspots []Hotspot, threshold float64) *HotspotMatcher {
	if threshold <= 0 {
		threshold = defaultMatchThreshold
	}
	m := &HotspotMatcher{threshold: threshold}
	for _, h := range hotspots {
		toks := tokenize(h.Name)
		if len(toks) == 0 {
			continue
		}
		m.hotspots = append(m.hotspots, hotspotEntry{Hotspot: h, tokens: toks, codes: codesForTokens(toks)})
	}
	return m
}

// Len returns the number of usable hotspots.
func (m *HotspotMatcher) Len() int { return len(m.hotspots) }

// Match returns every hotspot found in address, in configuration order.
func (m *HotspotMatcher) Match(address string) []Hotspot {
	words := tokenize(address)
	if len(words) == 0 {
		return nil
	}
	var out []Hotspot
	for _, h := range m.hotspots {
		if m.matches(h, words) {
			out = append(out, h.Hotspot)
		}
	}
	return out
}

// matches slides a window as wide as the hotspot name over the address.
func (m *HotspotMatcher) matches(h hotspotEntry, words []string) bool {
	name := strings.Join(h.tokens, " ")
	n := len(h.tokens)
	for i := 0; i+n <= len(words); i++ {
		window := words[i : i+n]
		phrase := strings.Join(window, " ")
		if phrase == name {
			return true
		}
		if !codesOverlap(codesForTokens(window), h.codes) {
			continue
		}
		if matchr.JaroWinkler(phrase, name, false) >= m.threshold {
			return true
		}
	}
	return false
}

// tokenize lower-cases s and splits it on anything that is not a letter or
// digit, so "Bedok North Ave 3," yields [bedok north ave 3].
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
