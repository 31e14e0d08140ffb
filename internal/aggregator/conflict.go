package aggregator

import (
	"reflect"

	"github.com/CardaLabs/sdk/internal/domain"
)

// resolveConflict reconciles one field's contributed values into a single
// FieldResult. values must be non-empty and already in provider-priority
// order; the result always names at least one source.
func resolveConflict(field string, values []domain.ConflictingValue, strategy domain.ConflictStrategy) domain.FieldResult {
	if len(values) == 1 {
		return domain.FieldResult{
			Field:      field,
			Value:      values[0].Value,
			Sources:    []string{values[0].Provider},
			Confidence: 1.0,
		}
	}

	distinct := distinctValues(values)
	if len(distinct) == 1 {
		// Unanimous agreement: all contributors are sources, no conflicts.
		sources := make([]string, len(values))
		for i, v := range values {
			sources[i] = v.Provider
		}
		return domain.FieldResult{
			Field:      field,
			Value:      values[0].Value,
			Sources:    sources,
			Confidence: 1.0,
		}
	}

	switch strategy {
	case domain.ConflictMajority:
		return resolveMajority(field, values, distinct)
	default:
		// ConflictPriority, and ConflictNewest which degrades to it until
		// providers report per-field observation times.
		return resolvePriority(field, values)
	}
}

// resolvePriority takes the first value in provider-priority order and
// records every other distinct value as a conflict.
func resolvePriority(field string, values []domain.ConflictingValue) domain.FieldResult {
	chosen := values[0]

	var conflicts []domain.ConflictingValue
	for _, v := range values[1:] {
		if reflect.DeepEqual(v.Value, chosen.Value) {
			continue
		}
		if containsValue(conflicts, v.Value) {
			continue
		}
		conflicts = append(conflicts, v)
	}

	return domain.FieldResult{
		Field:      field,
		Value:      chosen.Value,
		Sources:    []string{chosen.Provider},
		Confidence: 0.8,
		Conflicts:  conflicts,
	}
}

// resolveMajority takes the value with the highest occurrence count;
// confidence is that count over the total number of contributions.
func resolveMajority(field string, values []domain.ConflictingValue, distinct []interface{}) domain.FieldResult {
	bestCount := 0
	var bestValue interface{}
	for _, candidate := range distinct {
		count := 0
		for _, v := range values {
			if reflect.DeepEqual(v.Value, candidate) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestValue = candidate
		}
	}

	var sources []string
	var conflicts []domain.ConflictingValue
	for _, v := range values {
		if reflect.DeepEqual(v.Value, bestValue) {
			sources = append(sources, v.Provider)
		} else if !containsValue(conflicts, v.Value) {
			conflicts = append(conflicts, v)
		}
	}

	return domain.FieldResult{
		Field:      field,
		Value:      bestValue,
		Sources:    sources,
		Confidence: float64(bestCount) / float64(len(values)),
		Conflicts:  conflicts,
	}
}

// distinctValues returns the deep-equality-distinct values in first-seen order.
func distinctValues(values []domain.ConflictingValue) []interface{} {
	var distinct []interface{}
	for _, v := range values {
		found := false
		for _, d := range distinct {
			if reflect.DeepEqual(v.Value, d) {
				found = true
				break
			}
		}
		if !found {
			distinct = append(distinct, v.Value)
		}
	}
	return distinct
}

func containsValue(conflicts []domain.ConflictingValue, value interface{}) bool {
	for _, c := range conflicts {
		if reflect.DeepEqual(c.Value, value) {
			return true
		}
	}
	return false
}
