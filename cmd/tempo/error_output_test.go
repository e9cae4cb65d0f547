package main

import (
	"errors"
	"testing"

	coreerrors "github.com/davidahmann/tempo/core/errors"
)

func TestMarshalOutputWithErrorEnvelopeUsesClassifiedCause(t *testing.T) {
	cause := coreerrors.Wrap(errors.New("outbox unavailable"), coreerrors.CategoryDeliveryFailed, "sync_delivery_failed", "retry later", true)
	encoded, err := marshalOutputWithErrorEnvelope(syncOutput{OK: false, Error: cause.Error()}, exitDeliveryFailed, cause)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := unmarshalJSONToMap(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["error_code"] != "sync_delivery_failed" || decoded["error_category"] != "delivery_failed" {
		t.Fatalf("unexpected envelope %v", decoded)
	}
	if decoded["retryable"] != true || decoded["hint"] != "retry later" {
		t.Fatalf("unexpected envelope %v", decoded)
	}
}

func TestMarshalOutputWithErrorEnvelopeDefaults(t *testing.T) {
	encoded, err := marshalOutputWithErrorEnvelope(trackOutput{OK: false, Error: "bad flag"}, exitInvalidInput, errors.New("bad flag"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := unmarshalJSONToMap(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["error_code"] != "invalid_input" || decoded["error_category"] != "invalid_input" || decoded["retryable"] != false {
		t.Fatalf("unexpected default envelope %v", decoded)
	}
	if decoded["hint"] != defaultHint(exitInvalidInput) {
		t.Fatalf("unexpected default hint %v", decoded["hint"])
	}

	encoded, err = marshalOutputWithErrorEnvelope(trackOutput{OK: true, Action: "status"}, exitOK, nil)
	if err != nil {
		t.Fatalf("marshal success: %v", err)
	}
	decoded, err = unmarshalJSONToMap(encoded)
	if err != nil {
		t.Fatalf("unmarshal success: %v", err)
	}
	if _, exists := decoded["error_code"]; exists {
		t.Fatalf("success output must not carry an error envelope: %v", decoded)
	}
}

func TestExitCodeForError(t *testing.T) {
	cases := []struct {
		category coreerrors.Category
		want     int
	}{
		{category: coreerrors.CategoryInvalidInput, want: exitInvalidInput},
		{category: coreerrors.CategoryNotFound, want: exitInvalidInput},
		{category: coreerrors.CategoryNoActiveTask, want: exitNoActiveTask},
		{category: coreerrors.CategoryCapacityExhausted, want: exitCapacityExhausted},
		{category: coreerrors.CategoryDeliveryFailed, want: exitDeliveryFailed},
		{category: coreerrors.CategoryDependencyMissing, want: exitMissingDependency},
		{category: coreerrors.CategoryCorruptState, want: exitCorruptState},
		{category: coreerrors.CategoryIOFailure, want: exitInternalFailure},
	}
	for _, testCase := range cases {
		err := coreerrors.Wrap(errors.New("boom"), testCase.category, "code", "", false)
		if got := exitCodeForError(err, exitOK); got != testCase.want {
			t.Fatalf("%s: expected %d got %d", testCase.category, testCase.want, got)
		}
		if defaultErrorCategory(testCase.want) == "" {
			t.Fatalf("missing default category for exit %d", testCase.want)
		}
	}
	if exitCodeForError(nil, exitInvalidInput) != exitOK {
		t.Fatalf("nil error must map to exitOK")
	}
	if exitCodeForError(errors.New("plain"), exitDeliveryFailed) != exitDeliveryFailed {
		t.Fatalf("unclassified error must use the fallback")
	}
	if !defaultRetryable(coreerrors.CategoryDeliveryFailed) || defaultRetryable(coreerrors.CategoryInvalidInput) {
		t.Fatalf("unexpected retryable defaults")
	}
}
