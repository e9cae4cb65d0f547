package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapRoundTrip(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, CategoryIOFailure, "slot_write_failed", "check store directory permissions", true)
	if err == nil {
		t.Fatal("expected wrapped error")
	}
	if CategoryOf(err) != CategoryIOFailure {
		t.Fatalf("unexpected category: %s", CategoryOf(err))
	}
	if CodeOf(err) != "slot_write_failed" {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
	if HintOf(err) != "check store directory permissions" {
		t.Fatalf("unexpected hint: %s", HintOf(err))
	}
	if !RetryableOf(err) {
		t.Fatal("expected retryable true")
	}
	if !stderrors.Is(err, base) {
		t.Fatal("expected wrapped error to preserve cause")
	}
}

func TestClassificationSurvivesFurtherWrapping(t *testing.T) {
	base := stderrors.New("measurement range exhausted")
	classified := Wrap(base, CategoryCapacityExhausted, "range_exhausted", "sync or clear measurements", false)
	outer := fmt.Errorf("open measurement: %w", classified)
	if CategoryOf(outer) != CategoryCapacityExhausted {
		t.Fatalf("unexpected category through wrap: %s", CategoryOf(outer))
	}
	if !stderrors.Is(outer, base) {
		t.Fatal("expected outer error to preserve cause")
	}
}

func TestUnknownErrorDefaults(t *testing.T) {
	err := stderrors.New("plain")
	if CategoryOf(err) != "" {
		t.Fatalf("unexpected category: %s", CategoryOf(err))
	}
	if CodeOf(err) != "" {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
	if HintOf(err) != "" {
		t.Fatalf("unexpected hint: %s", HintOf(err))
	}
	if RetryableOf(err) {
		t.Fatal("unexpected retryable true")
	}
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if got := Wrap(nil, CategoryInternalFailure, "internal_failure", "retry later", false); got != nil {
		t.Fatalf("expected nil wrapped error, got=%v", got)
	}
}

func TestClassifiedErrorNilCauseDefaults(t *testing.T) {
	err := &classifiedError{Detail: Detail{Category: CategoryDeliveryFailed, Code: "sync_send_failed"}}
	if err.Error() != "unknown error" {
		t.Fatalf("unexpected nil-cause error text: %s", err.Error())
	}
	if err.Unwrap() != nil {
		t.Fatalf("expected unwrap nil for nil cause")
	}
}

func TestDescribeReturnsOutermostClassification(t *testing.T) {
	inner := Wrap(stderrors.New("slot missing"), CategoryNotFound, "slot_not_found", "", false)
	outer := Wrap(fmt.Errorf("lookup task: %w", inner), CategoryInvalidInput, "task_not_found", "list tasks", false)
	detail, ok := Describe(outer)
	if !ok {
		t.Fatalf("expected classified error")
	}
	if detail != (Detail{Category: CategoryInvalidInput, Code: "task_not_found", Hint: "list tasks"}) {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if _, ok := Describe(nil); ok {
		t.Fatalf("nil must not describe as classified")
	}
	if _, ok := Describe(stderrors.New("plain")); ok {
		t.Fatalf("plain error must not describe as classified")
	}
}

func TestCategorySetIsStableAndUnique(t *testing.T) {
	seen := map[Category]struct{}{}
	for _, category := range Categories() {
		if !category.Valid() {
			t.Fatalf("listed category %q must be valid", category)
		}
		if _, exists := seen[category]; exists {
			t.Fatalf("duplicate category: %s", category)
		}
		seen[category] = struct{}{}
	}
	if len(seen) != 9 {
		t.Fatalf("expected 9 categories, got %d", len(seen))
	}
	if Category("state_contention").Valid() || Category("").Valid() {
		t.Fatalf("unknown categories must not be valid")
	}
	listed := Categories()
	listed[0] = "mutated"
	if Categories()[0] != CategoryInvalidInput {
		t.Fatalf("Categories must return a copy")
	}
}
