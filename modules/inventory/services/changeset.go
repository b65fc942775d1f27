package services

import (
	"strings"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// Change is one column to rewrite on a matched entity.
type Change struct {
	Column string
	Value  any
}

// Changeset collects the minimal set of columns that differ between a
// matched entity and the candidate row. Empty candidate values are never
// considered new: they cannot overwrite stored data.
type Changeset struct {
	changes []Change
}

// Compare queues column for update when the candidate value is present and
// differs from the stored one.
func (c *Changeset) Compare(column string, stored, candidate any) {
	if candidate == nil {
		return
	}
	if s, ok := candidate.(string); ok && strings.TrimSpace(s) == "" {
		return
	}
	if valueEqual(stored, candidate) {
		return
	}
	c.Add(column, candidate)
}

// Add queues column for update unconditionally.
func (c *Changeset) Add(column string, value any) {
	c.changes = append(c.changes, Change{Column: column, Value: value})
}

// Drop removes a previously queued column.
func (c *Changeset) Drop(column string) {
	kept := c.changes[:0]
	for _, ch := range c.changes {
		if ch.Column != column {
			kept = append(kept, ch)
		}
	}
	c.changes = kept
}

func (c *Changeset) Empty() bool { return len(c.changes) == 0 }

func (c *Changeset) Len() int { return len(c.changes) }

func (c *Changeset) Changes() []Change { return c.changes }

// valueEqual compares stored and candidate values loosely: numeric kinds are
// compared as numbers regardless of the scanned Go type.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, aok := asFloat(a); aok {
		fb, bok := asFloat(b)
		return bok && fa == fb
	}
	if ba, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return bok && ba == bb
	}
	return toString(a) == toString(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return ""
}

// MergeProperties merges the candidate extra-properties into the stored map:
// new keys are added, overlapping keys take the candidate value, stored keys
// absent from the candidate stay untouched. changed reports whether the
// merge altered anything.
func MergeProperties(stored, candidate map[string]any) (merged map[string]any, changed bool) {
	merged = make(map[string]any, len(stored)+len(candidate))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range candidate {
		old, had := stored[k]
		if !had || !valueEqual(old, v) {
			changed = true
		}
		merged[k] = v
	}
	return merged, changed
}

// ReconcileModeled computes the symmetric update of the persisted
// modeled-flag set: fields the candidate now declares as modeled are added,
// and a previously modeled field is cleared only when the candidate actually
// supplies a concrete value for it.
func ReconcileModeled(stored map[string]int, declared []string, supplied func(field string) bool) (map[string]int, bool) {
	result := make(map[string]int, len(stored)+len(declared))
	for k, v := range stored {
		result[k] = v
	}
	declaredSet := make(map[string]struct{}, len(declared))
	changed := false
	for _, f := range declared {
		declaredSet[f] = struct{}{}
		if _, had := result[f]; !had {
			result[f] = 1
			changed = true
		}
	}
	for f := range stored {
		if _, still := declaredSet[f]; still {
			continue
		}
		if supplied != nil && supplied(f) {
			delete(result, f)
			changed = true
		}
	}
	return result, changed
}

// ParseModeledList splits a "modeled fields" document cell into field names.
func ParseModeledList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := strings.TrimSpace(p); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// buildProperties projects the mapped extra-property columns of a row into
// the jsonb properties shape, skipping blank values.
func buildProperties(row domain.Row, props domain.PropertiesMapping) map[string]any {
	out := make(map[string]any, len(props))
	for dbKey, column := range props {
		if v := row.Value(column); v != nil {
			out[dbKey] = v
		}
	}
	return out
}
