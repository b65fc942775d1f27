package domain

import (
	"sort"
	"strings"
)

// AddressNormalizer strips one of the configured address prefixes from raw
// document addresses, longest prefix first. Rows whose address matches none
// of the prefixes are rejected before matching.
type AddressNormalizer struct {
	prefixes  []string
	newPrefix string
}

func NewAddressNormalizer(prefixes []string, newPrefix string) AddressNormalizer {
	sorted := make([]string, len(prefixes))
	copy(sorted, prefixes)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return AddressNormalizer{prefixes: sorted, newPrefix: newPrefix}
}

// Clean removes stray question marks and surrounding whitespace the way
// source documents tend to carry them.
func (n AddressNormalizer) Clean(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "?", ""))
}

// Normalize returns the address suffix with the longest matching configured
// prefix removed. ok is false when no prefix matches.
func (n AddressNormalizer) Normalize(raw string) (suffix string, ok bool) {
	cleaned := n.Clean(raw)
	if cleaned == "" {
		return "", false
	}
	for _, prefix := range n.prefixes {
		if strings.HasPrefix(cleaned, prefix) {
			return strings.Trim(cleaned[len(prefix):], ", "), true
		}
	}
	return "", false
}

// Stored is the address persisted for newly inserted entities: the unified
// replacement prefix plus the normalized suffix.
func (n AddressNormalizer) Stored(suffix string) string {
	return n.newPrefix + suffix
}

func (n AddressNormalizer) PrefixCount() int { return len(n.prefixes) }

func (n AddressNormalizer) Prefixes() []string { return n.prefixes }
