package aggregator

import (
	"reflect"
	"testing"

	"github.com/CardaLabs/sdk/internal/domain"
)

func TestResolveConflictSingleValue(t *testing.T) {
	got := resolveConflict("price", []domain.ConflictingValue{
		{Provider: "a", Value: 1.0},
	}, domain.ConflictPriority)

	if got.Value != 1.0 || got.Confidence != 1.0 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "a" {
		t.Fatalf("want sources [a], got %v", got.Sources)
	}
	if len(got.Conflicts) != 0 {
		t.Fatalf("single value cannot conflict: %v", got.Conflicts)
	}
}

func TestResolveConflictUnanimous(t *testing.T) {
	got := resolveConflict("price", []domain.ConflictingValue{
		{Provider: "a", Value: 2.5},
		{Provider: "b", Value: 2.5},
		{Provider: "c", Value: 2.5},
	}, domain.ConflictMajority)

	if got.Confidence != 1.0 {
		t.Fatalf("agreement must have confidence 1.0, got %v", got.Confidence)
	}
	if !reflect.DeepEqual(got.Sources, []string{"a", "b", "c"}) {
		t.Fatalf("all contributors are sources, got %v", got.Sources)
	}
	if len(got.Conflicts) != 0 {
		t.Fatalf("agreement has no conflicts: %v", got.Conflicts)
	}
}

func TestResolvePriorityTakesFirstInOrder(t *testing.T) {
	values := []domain.ConflictingValue{
		{Provider: "preferred", Value: 1.0},
		{Provider: "other", Value: 2.0},
		{Provider: "third", Value: 3.0},
	}
	got := resolveConflict("price", values, domain.ConflictPriority)

	if got.Value != 1.0 {
		t.Fatalf("priority must take the first value, got %v", got.Value)
	}
	if got.Confidence != 0.8 {
		t.Fatalf("contested priority pick has confidence 0.8, got %v", got.Confidence)
	}
	if len(got.Conflicts) != 2 {
		t.Fatalf("both losing values are conflicts, got %v", got.Conflicts)
	}
}

func TestResolvePriorityDeterministic(t *testing.T) {
	values := []domain.ConflictingValue{
		{Provider: "a", Value: 1.0},
		{Provider: "b", Value: 2.0},
	}
	first := resolveConflict("price", values, domain.ConflictPriority)
	for i := 0; i < 10; i++ {
		again := resolveConflict("price", values, domain.ConflictPriority)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("resolution must be deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestResolveMajority(t *testing.T) {
	got := resolveConflict("price", []domain.ConflictingValue{
		{Provider: "a", Value: 5.0},
		{Provider: "b", Value: 7.0},
		{Provider: "c", Value: 5.0},
	}, domain.ConflictMajority)

	if got.Value != 5.0 {
		t.Fatalf("majority value should win, got %v", got.Value)
	}
	if got.Confidence < 0.66 || got.Confidence > 0.67 {
		t.Fatalf("confidence should be 2/3, got %v", got.Confidence)
	}
	if !reflect.DeepEqual(got.Sources, []string{"a", "c"}) {
		t.Fatalf("want sources [a c], got %v", got.Sources)
	}
	if len(got.Conflicts) != 1 || got.Conflicts[0].Provider != "b" {
		t.Fatalf("want conflict from b, got %v", got.Conflicts)
	}
}

func TestResolveNewestDegradesToPriority(t *testing.T) {
	values := []domain.ConflictingValue{
		{Provider: "a", Value: 1.0},
		{Provider: "b", Value: 2.0},
	}
	newest := resolveConflict("price", values, domain.ConflictNewest)
	priority := resolveConflict("price", values, domain.ConflictPriority)
	if !reflect.DeepEqual(newest, priority) {
		t.Fatalf("newest should resolve like priority: %+v vs %+v", newest, priority)
	}
}

func TestResolvePriorityDeduplicatesConflicts(t *testing.T) {
	got := resolveConflict("price", []domain.ConflictingValue{
		{Provider: "a", Value: 1.0},
		{Provider: "b", Value: 2.0},
		{Provider: "c", Value: 2.0},
	}, domain.ConflictPriority)
	if len(got.Conflicts) != 1 {
		t.Fatalf("equal losing values collapse into one conflict, got %v", got.Conflicts)
	}
}

func TestResolveConflictComplexValues(t *testing.T) {
	assetsA := []domain.AssetHolding{{Unit: "x", Quantity: "5"}}
	assetsB := []domain.AssetHolding{{Unit: "x", Quantity: "5"}}
	got := resolveConflict("assets", []domain.ConflictingValue{
		{Provider: "a", Value: assetsA},
		{Provider: "b", Value: assetsB},
	}, domain.ConflictPriority)

	if got.Confidence != 1.0 {
		t.Fatalf("deep-equal slices must count as agreement, got %+v", got)
	}
}
