// Package persistence holds driver-independent helpers shared by the store
// implementations, plus decorators that wrap any ports.KeyValueStore.
package persistence

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"cms-backend/application/ports"
)

// ConditionHolds evaluates cond against the currently stored attributes.
// existing is nil when no item is stored. A nil condition always holds.
func ConditionHolds(cond *ports.Condition, existing map[string]any) bool {
	if cond == nil {
		return true
	}
	switch cond.Type {
	case ports.ConditionMustNotExist:
		return existing == nil
	case ports.ConditionMustExist:
		return existing != nil
	case ports.ConditionAttributeEquals:
		if existing == nil {
			return false
		}
		v, ok := existing[cond.Attribute]
		return ok && ValuesEqual(v, cond.Value)
	default:
		return false
	}
}

// ValuesEqual compares attribute values, treating numbers of different Go
// types as equal when they print the same.
func ValuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if isNumber(a) && isNumber(b) {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Project returns the subset of attrs named in fields. An empty field list
// returns attrs unchanged.
func Project(attrs map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return attrs
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := attrs[f]; ok {
			out[f] = v
		}
	}
	return out
}

// SortedMatches returns the sort keys with the given prefix that sort after
// the cursor key, in ascending order.
func SortedMatches(keys []string, prefix, after string) []string {
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) && (after == "" || k > after) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
