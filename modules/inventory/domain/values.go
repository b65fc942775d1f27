package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType maps document cell values onto database column types.
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
)

var falseTokens = map[string]struct{}{
	"-": {}, "0": {}, "false": {}, "no": {}, "off": {}, "нет": {}, "ложь": {},
}

// Coerce casts a raw document value to the given type. Returns nil, false for
// empty values and values that cannot be cast; such values never overwrite
// stored data.
func (t ValueType) Coerce(raw any) (any, bool) {
	if raw == nil {
		return nil, false
	}
	s := strings.TrimSpace(fmt.Sprint(raw))
	if s == "" {
		return nil, false
	}
	switch t {
	case TypeString:
		return s, true
	case TypeInt:
		f, err := strconv.ParseFloat(normalizeDecimal(s), 64)
		if err != nil {
			return nil, false
		}
		return int64(f), true
	case TypeFloat:
		f, err := strconv.ParseFloat(normalizeDecimal(s), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case TypeBool:
		if _, ok := falseTokens[strings.ToLower(s)]; ok {
			return false, true
		}
		return true, true
	}
	return nil, false
}

// normalizeDecimal turns comma-decimal numerals ("12,5") into dot-decimal
// form. Values with more than one comma are left as-is.
func normalizeDecimal(s string) string {
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}
