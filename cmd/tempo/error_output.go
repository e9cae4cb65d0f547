package main

import (
	"encoding/json"
	"fmt"
	"strings"

	coreerrors "github.com/davidahmann/tempo/core/errors"
)

func writeJSONOutput(output any, exitCode int) int {
	return writeJSONOutputWithCause(output, exitCode, nil)
}

// writeJSONOutputWithCause fills the error envelope from the classified cause
// before falling back to exit-code defaults.
func writeJSONOutputWithCause(output any, exitCode int, cause error) int {
	encoded, err := marshalOutputWithErrorEnvelope(output, exitCode, cause)
	if err != nil {
		fmt.Println(`{"ok":false,"error":"failed to encode output","error_code":"encode_failed","error_category":"internal_failure","retryable":false}`)
		return exitInternalFailure
	}
	fmt.Println(string(encoded))
	return exitCode
}

func marshalOutputWithErrorEnvelope(output any, exitCode int, cause error) ([]byte, error) {
	encoded, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	result, err := unmarshalJSONToMap(encoded)
	if err != nil {
		return nil, err
	}
	errorText := strings.TrimSpace(asString(result["error"]))
	if errorText == "" {
		return json.Marshal(result)
	}
	if detail, ok := coreerrors.Describe(cause); ok {
		if strings.TrimSpace(asString(result["error_code"])) == "" {
			result["error_code"] = detail.Code
		}
		if strings.TrimSpace(asString(result["error_category"])) == "" {
			result["error_category"] = string(detail.Category)
		}
		if _, exists := result["retryable"]; !exists {
			result["retryable"] = detail.Retryable
		}
		if strings.TrimSpace(asString(result["hint"])) == "" && detail.Hint != "" {
			result["hint"] = detail.Hint
		}
	}
	if strings.TrimSpace(asString(result["error_code"])) == "" {
		result["error_code"] = defaultErrorCode(exitCode)
	}
	if strings.TrimSpace(asString(result["error_category"])) == "" {
		result["error_category"] = string(defaultErrorCategory(exitCode))
	}
	if _, exists := result["retryable"]; !exists {
		result["retryable"] = defaultRetryable(coreerrors.Category(asString(result["error_category"])))
	}
	if strings.TrimSpace(asString(result["hint"])) == "" {
		result["hint"] = defaultHint(exitCode)
	}
	return json.Marshal(result)
}

func exitCodeForError(err error, fallbackExit int) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput, coreerrors.CategoryNotFound:
		return exitInvalidInput
	case coreerrors.CategoryNoActiveTask:
		return exitNoActiveTask
	case coreerrors.CategoryCapacityExhausted:
		return exitCapacityExhausted
	case coreerrors.CategoryDeliveryFailed:
		return exitDeliveryFailed
	case coreerrors.CategoryDependencyMissing:
		return exitMissingDependency
	case coreerrors.CategoryCorruptState:
		return exitCorruptState
	case coreerrors.CategoryIOFailure, coreerrors.CategoryInternalFailure:
		return exitInternalFailure
	}
	return fallbackExit
}

func defaultErrorCategory(exitCode int) coreerrors.Category {
	switch exitCode {
	case exitInvalidInput:
		return coreerrors.CategoryInvalidInput
	case exitNoActiveTask:
		return coreerrors.CategoryNoActiveTask
	case exitCapacityExhausted:
		return coreerrors.CategoryCapacityExhausted
	case exitDeliveryFailed:
		return coreerrors.CategoryDeliveryFailed
	case exitMissingDependency:
		return coreerrors.CategoryDependencyMissing
	case exitCorruptState:
		return coreerrors.CategoryCorruptState
	default:
		return coreerrors.CategoryInternalFailure
	}
}

func defaultErrorCode(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "invalid_input"
	case exitNoActiveTask:
		return "no_active_task"
	case exitCapacityExhausted:
		return "storage_full"
	case exitDeliveryFailed:
		return "sync_failed"
	case exitMissingDependency:
		return "dependency_missing"
	case exitCorruptState:
		return "corrupt_state"
	default:
		return "internal_failure"
	}
}

func defaultHint(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "check command usage and input"
	case exitNoActiveTask:
		return "start a task with tempo track start first"
	case exitCapacityExhausted:
		return "run tempo sync or tempo track clear to free measurement slots"
	case exitDeliveryFailed:
		return "retry tempo sync; measurements stay on the device until delivered"
	case exitMissingDependency:
		return "configure the missing dependency and retry"
	case exitCorruptState:
		return "run tempo doctor to inspect the store"
	default:
		return "retry after checking local environment and logs"
	}
}

func defaultRetryable(category coreerrors.Category) bool {
	return category == coreerrors.CategoryDeliveryFailed || category == coreerrors.CategoryIOFailure
}

func unmarshalJSONToMap(payload []byte) (map[string]any, error) {
	output := map[string]any{}
	if err := json.Unmarshal(payload, &output); err != nil {
		return nil, err
	}
	return output, nil
}

func asString(value any) string {
	text, _ := value.(string)
	return text
}
