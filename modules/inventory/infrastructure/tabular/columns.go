package tabular

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DetectColumn picks the document column matching one of the candidate
// names: exact match first, then case/punctuation-insensitive, then a
// close fuzzy match. Returns "" when nothing fits.
func DetectColumn(columns []string, candidates []string) string {
	for _, candidate := range candidates {
		for _, column := range columns {
			if column == candidate {
				return column
			}
		}
	}
	for _, candidate := range candidates {
		want := normalizeColumn(candidate)
		for _, column := range columns {
			if normalizeColumn(column) == want {
				return column
			}
		}
	}
	for _, candidate := range candidates {
		best := ""
		bestRank := -1
		for _, column := range columns {
			rank := fuzzy.RankMatchNormalizedFold(candidate, column)
			if rank < 0 || rank > 2 {
				continue
			}
			if bestRank == -1 || rank < bestRank {
				best, bestRank = column, rank
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

func normalizeColumn(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', ':':
			return -1
		}
		return r
	}, strings.ToLower(s))
}
