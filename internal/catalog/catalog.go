// Package catalog holds the fixed adjective vocabulary used by every
// assessment. 56 adjectives, partitioned into 8 domains of 7.
package catalog

import (
	"sort"
	"strings"
)

// DomainSize is the fixed number of adjectives per domain.
const DomainSize = 7

// Domain names, in canonical order.
const (
	DomainLinguistic    = "linguistic"
	DomainLogical       = "logical"
	DomainSpatial       = "spatial"
	DomainKinesthetic   = "kinesthetic"
	DomainMusical       = "musical"
	DomainInterpersonal = "interpersonal"
	DomainIntrapersonal = "intrapersonal"
	DomainNaturalist    = "naturalist"
)

var domainOrder = []string{
	DomainLinguistic,
	DomainLogical,
	DomainSpatial,
	DomainKinesthetic,
	DomainMusical,
	DomainInterpersonal,
	DomainIntrapersonal,
	DomainNaturalist,
}

var catalog = map[string][]string{
	DomainLinguistic:    {"articulate", "witty", "expressive", "persuasive", "talkative", "eloquent", "clever"},
	DomainLogical:       {"logical", "analytical", "curious", "methodical", "precise", "skeptical", "strategic"},
	DomainSpatial:       {"imaginative", "artistic", "observant", "visionary", "inventive", "stylish", "perceptive"},
	DomainKinesthetic:   {"energetic", "hands-on", "agile", "adventurous", "spontaneous", "restless", "coordinated"},
	DomainMusical:       {"rhythmic", "melodic", "attuned", "harmonious", "lyrical", "soulful", "tuneful"},
	DomainInterpersonal: {"friendly", "caring", "empathetic", "sociable", "diplomatic", "generous", "trustworthy"},
	DomainIntrapersonal: {"reflective", "independent", "self-aware", "disciplined", "calm", "modest", "resilient"},
	DomainNaturalist:    {"grounded", "nurturing", "patient", "practical", "adaptable", "wholesome", "resourceful"},
}

var (
	all      []string
	domainOf map[string]string
	position map[string]int
)

func init() {
	domainOf = make(map[string]string, len(domainOrder)*DomainSize)
	position = make(map[string]int, len(domainOrder)*DomainSize)
	for _, domain := range domainOrder {
		for _, adjective := range catalog[domain] {
			all = append(all, adjective)
			domainOf[adjective] = domain
			position[adjective] = len(all) - 1
		}
	}
}

// All returns every adjective in canonical (domain-grouped) order.
func All() []string {
	out := make([]string, len(all))
	copy(out, all)
	return out
}

// Size returns the total catalog size.
func Size() int {
	return len(all)
}

// Domains returns the domain names in canonical order.
func Domains() []string {
	out := make([]string, len(domainOrder))
	copy(out, domainOrder)
	return out
}

// DomainAdjectives returns the adjectives of one domain, or nil for an
// unknown domain.
func DomainAdjectives(domain string) []string {
	adjectives, ok := catalog[domain]
	if !ok {
		return nil
	}
	out := make([]string, len(adjectives))
	copy(out, adjectives)
	return out
}

// Canonical lower-cases and trims an input adjective.
func Canonical(adjective string) string {
	return strings.ToLower(strings.TrimSpace(adjective))
}

// Contains reports whether the adjective belongs to the catalog.
func Contains(adjective string) bool {
	_, ok := domainOf[Canonical(adjective)]
	return ok
}

// DomainOf returns the domain of a catalog adjective.
func DomainOf(adjective string) (string, bool) {
	domain, ok := domainOf[Canonical(adjective)]
	return domain, ok
}

// Position returns the canonical sort index of a catalog adjective. Unknown
// adjectives sort last.
func Position(adjective string) int {
	index, ok := position[Canonical(adjective)]
	if !ok {
		return len(all)
	}
	return index
}

// Normalize canonicalizes and dedupes an input selection. It returns the
// cleaned set in canonical catalog order plus any inputs that are not part
// of the catalog.
func Normalize(adjectives []string) (clean []string, unknown []string) {
	seen := make(map[string]bool, len(adjectives))
	for _, raw := range adjectives {
		adjective := Canonical(raw)
		if adjective == "" || seen[adjective] {
			continue
		}
		seen[adjective] = true
		if _, ok := domainOf[adjective]; ok {
			clean = append(clean, adjective)
		} else {
			unknown = append(unknown, adjective)
		}
	}
	sortCanonical(clean)
	return clean, unknown
}

// sortCanonical orders a slice of catalog adjectives by catalog position.
func sortCanonical(adjectives []string) {
	sort.Slice(adjectives, func(i, j int) bool {
		return Position(adjectives[i]) < Position(adjectives[j])
	})
}
