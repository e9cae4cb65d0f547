package validate

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/kaptinlin/jsonschema"
)

const maxLineBytes = 10 * 1024 * 1024

// Validator wraps one compiled schema. It is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// LineError reports the first JSONL line that failed validation.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("jsonl line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

var compiled sync.Map

// For returns the validator for schemaJSON, compiling it on first use.
func For(schemaJSON []byte) (*Validator, error) {
	key := xxhash.Sum64(schemaJSON)
	if cached, ok := compiled.Load(key); ok {
		return cached.(*Validator), nil
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	validator, _ := compiled.LoadOrStore(key, &Validator{schema: schema})
	return validator.(*Validator), nil
}

// Document validates one JSON value against schemaJSON.
func Document(schemaJSON []byte, data []byte) error {
	validator, err := For(schemaJSON)
	if err != nil {
		return err
	}
	return validator.Document(data)
}

// File validates every non-blank line of a JSONL file against schemaJSON.
func File(schemaJSON []byte, path string) error {
	validator, err := For(schemaJSON)
	if err != nil {
		return err
	}
	// #nosec G304 -- path is explicit local user input.
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open jsonl: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return validator.Lines(file)
}

func (v *Validator) Document(data []byte) error {
	result := v.schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

// Lines validates a JSONL stream and stops at the first bad line.
func (v *Validator) Lines(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		trimmed := bytes.TrimSpace(scanner.Bytes())
		if len(trimmed) == 0 {
			continue
		}
		if err := v.Document(trimmed); err != nil {
			return &LineError{Line: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read jsonl: %w", err)
	}
	return nil
}
