// Package johari implements the Johari Window classification: every
// catalog adjective is placed into exactly one of four quadrants from the
// pair of memberships (chosen by the subject, chosen by at least one peer).
package johari

import "johari/api/internal/catalog"

// QuadrantCounts holds the per-quadrant tally for one domain. The four
// counts always sum to catalog.DomainSize.
type QuadrantCounts struct {
	Open    int `json:"open"`
	Blind   int `json:"blind"`
	Hidden  int `json:"hidden"`
	Unknown int `json:"unknown"`
}

// Window is the result of classifying one assessment against its peer
// feedback. Quadrant slices are in canonical catalog order, so two
// computations over the same inputs produce identical windows.
type Window struct {
	Open          []string                  `json:"open"`
	Blind         []string                  `json:"blind"`
	Hidden        []string                  `json:"hidden"`
	Unknown       []string                  `json:"unknown"`
	DomainSummary map[string]QuadrantCounts `json:"domainSummary"`
	PeerPicks     map[string]int            `json:"peerPicks"`
	PeerCount     int                       `json:"peerCount"`
}

// Classify partitions the full catalog given the subject's selection and
// each peer's selection. Inputs are expected in canonical form; anything
// outside the catalog is ignored. The entire catalog is classified, not
// just observed adjectives: Unknown is the residual of traits nobody
// flagged.
func Classify(self []string, peers [][]string) Window {
	selfSet := toSet(self)

	peerPicks := make(map[string]int)
	for _, peer := range peers {
		for adjective := range toSet(peer) {
			peerPicks[adjective]++
		}
	}

	window := Window{
		Open:          []string{},
		Blind:         []string{},
		Hidden:        []string{},
		Unknown:       []string{},
		DomainSummary: make(map[string]QuadrantCounts, len(catalog.Domains())),
		PeerPicks:     peerPicks,
		PeerCount:     len(peers),
	}

	for _, adjective := range catalog.All() {
		domain, _ := catalog.DomainOf(adjective)
		counts := window.DomainSummary[domain]

		inSelf := selfSet[adjective]
		inPeers := peerPicks[adjective] > 0
		switch {
		case inSelf && inPeers:
			window.Open = append(window.Open, adjective)
			counts.Open++
		case !inSelf && inPeers:
			window.Blind = append(window.Blind, adjective)
			counts.Blind++
		case inSelf && !inPeers:
			window.Hidden = append(window.Hidden, adjective)
			counts.Hidden++
		default:
			window.Unknown = append(window.Unknown, adjective)
			counts.Unknown++
		}

		window.DomainSummary[domain] = counts
	}

	return window
}

func toSet(adjectives []string) map[string]bool {
	set := make(map[string]bool, len(adjectives))
	for _, adjective := range adjectives {
		if catalog.Contains(adjective) {
			set[catalog.Canonical(adjective)] = true
		}
	}
	return set
}
