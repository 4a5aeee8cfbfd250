package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// Coercion helpers shared by every normalizer. They accept the raw decoded
// JSON value (string, float64, bool, map[string]any, []any or nil) and apply
// the defaulting rules from one place so each entity normalizer stays total.

// asObject returns the raw value as a JSON object, or nil when it is not one.
func asObject(raw any) map[string]any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}

// asList returns the raw value as a JSON array, or nil when it is not one.
func asList(raw any) []any {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	return list
}

// stringOrNil maps null/missing to nil, passes strings through unchanged and
// stringifies every other non-null scalar.
func stringOrNil(raw any) *string {
	if raw == nil {
		return nil
	}
	if value, ok := raw.(string); ok {
		return &value
	}
	value := stringify(raw)
	return &value
}

// stringOrEmpty behaves like stringOrNil but collapses null to the empty string.
func stringOrEmpty(raw any) string {
	if value := stringOrNil(raw); value != nil {
		return *value
	}
	return ""
}

// stringify renders a scalar the way the browser client did: numbers without
// a trailing ".0" when they are whole, booleans as true/false.
func stringify(raw any) string {
	switch value := raw.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(raw)
	}
}

// stringList coerces a raw value into a list of non-empty strings: arrays are
// coerced element-wise with empty results dropped, a single scalar is wrapped
// in a one-element list, and anything else becomes an empty list.
func stringList(raw any) []string {
	switch value := raw.(type) {
	case nil:
		return []string{}
	case []any:
		result := make([]string, 0, len(value))
		for _, element := range value {
			if element == nil {
				continue
			}
			text := strings.TrimSpace(stringify(element))
			if text == "" {
				continue
			}
			result = append(result, text)
		}
		return result
	case map[string]any:
		return []string{}
	default:
		text := strings.TrimSpace(stringify(value))
		if text == "" {
			return []string{}
		}
		return []string{text}
	}
}

// boolOrNil keeps the tri-state nature of optional flags: true/false pass
// through, everything else (including string "true") maps to nil.
func boolOrNil(raw any) *bool {
	value, ok := raw.(bool)
	if !ok {
		return nil
	}
	return &value
}

// boolOrDefault returns the raw boolean or the fallback when absent/mistyped.
func boolOrDefault(raw any, fallback bool) bool {
	if value, ok := raw.(bool); ok {
		return value
	}
	return fallback
}

// intOrDefault accepts JSON numbers and numeric strings, anything else
// collapses to the fallback.
func intOrDefault(raw any, fallback int) int {
	switch value := raw.(type) {
	case float64:
		return int(value)
	case int:
		return value
	case int64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}

// timestampOrZero reads unix-second timestamps that may arrive as numbers or
// numeric strings.
func timestampOrZero(raw any) int64 {
	switch value := raw.(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// boolMap coerces an object of identity -> flag into a map, dropping entries
// whose key is empty; non-boolean values default to false.
func boolMap(raw any) map[string]bool {
	obj := asObject(raw)
	result := make(map[string]bool, len(obj))
	for key, value := range obj {
		if strings.TrimSpace(key) == "" {
			continue
		}
		result[key] = boolOrDefault(value, false)
	}
	return result
}

// firstPresent returns the first key of candidates present in the object.
func firstPresent(obj map[string]any, candidates ...string) (any, bool) {
	for _, key := range candidates {
		if value, ok := obj[key]; ok {
			return value, true
		}
	}
	return nil, false
}
