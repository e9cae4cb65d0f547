package errors

import "errors"

type Category string

const (
	CategoryInvalidInput      Category = "invalid_input"
	CategoryNotFound          Category = "not_found"
	CategoryCapacityExhausted Category = "capacity_exhausted"
	CategoryNoActiveTask      Category = "no_active_task"
	CategoryCorruptState      Category = "corrupt_state"
	CategoryDependencyMissing Category = "dependency_missing"
	CategoryIOFailure         Category = "io_failure"
	CategoryDeliveryFailed    Category = "delivery_failed"
	CategoryInternalFailure   Category = "internal_failure"
)

var categories = []Category{
	CategoryInvalidInput,
	CategoryNotFound,
	CategoryCapacityExhausted,
	CategoryNoActiveTask,
	CategoryCorruptState,
	CategoryDependencyMissing,
	CategoryIOFailure,
	CategoryDeliveryFailed,
	CategoryInternalFailure,
}

// Categories lists every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Detail is the classification of one error as rendered in JSON envelopes.
type Detail struct {
	Category  Category `json:"error_category"`
	Code      string   `json:"error_code"`
	Hint      string   `json:"hint,omitempty"`
	Retryable bool     `json:"retryable"`
}

type classifiedError struct {
	Detail
	cause error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

// Wrap attaches a category, a stable machine code and an operator hint to cause.
// A nil cause stays nil so call sites can wrap unconditionally.
func Wrap(cause error, category Category, code, hint string, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		Detail: Detail{Category: category, Code: code, Hint: hint, Retryable: retryable},
		cause:  cause,
	}
}

// Describe returns the outermost classification in err's chain. ok is false for
// nil and unclassified errors.
func Describe(err error) (Detail, bool) {
	var classified *classifiedError
	if !errors.As(err, &classified) {
		return Detail{}, false
	}
	return classified.Detail, true
}

func CategoryOf(err error) Category {
	detail, _ := Describe(err)
	return detail.Category
}

func CodeOf(err error) string {
	detail, _ := Describe(err)
	return detail.Code
}

func HintOf(err error) string {
	detail, _ := Describe(err)
	return detail.Hint
}

func RetryableOf(err error) bool {
	detail, _ := Describe(err)
	return detail.Retryable
}
