package main

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
	"testing"
	"time"
)

func TestRunDispatch(t *testing.T) {
	withWorkingDir(t, t.TempDir())
	if code := run([]string{"tempo"}); code != exitInvalidInput {
		t.Fatalf("run without args: expected %d got %d", exitInvalidInput, code)
	}
	if code := run([]string{"tempo", "version"}); code != exitOK {
		t.Fatalf("run version: expected %d got %d", exitOK, code)
	}
	if code := run([]string{"tempo", "unknown"}); code != exitInvalidInput {
		t.Fatalf("run unknown: expected %d got %d", exitInvalidInput, code)
	}
	if code := run([]string{"tempo", "--explain"}); code != exitOK {
		t.Fatalf("run explain: expected %d got %d", exitOK, code)
	}
	for _, arguments := range [][]string{
		{"tempo", "tasks", "list", "--help"},
		{"tempo", "tasks", "replace", "--help"},
		{"tempo", "track", "start", "--help"},
		{"tempo", "status", "--help"},
		{"tempo", "measurements", "list", "--help"},
		{"tempo", "sync", "--help"},
		{"tempo", "export", "--help"},
		{"tempo", "doctor", "--help"},
		{"tempo", "demo", "--help"},
		{"tempo", "track", "--explain"},
	} {
		if code := run(arguments); code != exitOK {
			t.Fatalf("run %v: expected %d got %d", arguments, exitOK, code)
		}
	}
	if code := run([]string{"tempo", "track"}); code != exitInvalidInput {
		t.Fatalf("run track without subcommand: expected %d got %d", exitInvalidInput, code)
	}
	if code := run([]string{"tempo", "track", "pause"}); code != exitInvalidInput {
		t.Fatalf("run unknown track subcommand: expected %d got %d", exitInvalidInput, code)
	}
	if code := run([]string{"tempo", "measurements"}); code != exitInvalidInput {
		t.Fatalf("run measurements without list: expected %d got %d", exitInvalidInput, code)
	}
}

func TestConfigFileDrivesPaths(t *testing.T) {
	workDir := t.TempDir()
	withWorkingDir(t, workDir)
	pinClock(t, time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC))
	writeConfig(t, "store:\n  dir: custom/store\ntasks:\n  seed_defaults: true\njournal:\n  path: \"off\"\n")

	var output tasksOutput
	if code := runJSON(t, &output, "tasks", "list", "--json"); code != exitOK {
		t.Fatalf("tasks list: expected %d got %d (%+v)", exitOK, code, output)
	}
	if output.Count != 3 || output.Tasks[0].Title != "Task 1" {
		t.Fatalf("expected seeded default tasks, got %+v", output)
	}
	if _, err := os.Stat("custom/store/slot-001"); err != nil {
		t.Fatalf("expected configured store dir to hold the tasks: %v", err)
	}
	if _, err := os.Stat(".tempo/journal.jsonl"); !os.IsNotExist(err) {
		t.Fatalf("expected journal off, stat err=%v", err)
	}

	if code := runJSON(t, &output, "tasks", "list", "--config", "missing.yaml", "--json"); code != exitInvalidInput {
		t.Fatalf("explicit missing config: expected %d got %d", exitInvalidInput, code)
	}
}

// runJSON runs the CLI with arguments and decodes its stdout into a zeroed
// target.
func runJSON(t *testing.T, target any, arguments ...string) int {
	t.Helper()
	reflect.ValueOf(target).Elem().SetZero()
	var code int
	raw := captureStdout(t, func() {
		code = run(append([]string{"tempo"}, arguments...))
	})
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		t.Fatalf("decode output of %v: %v\n%s", arguments, err, raw)
	}
	return code
}

// pinClock fixes the CLI clock at start and returns a function that moves it.
func pinClock(t *testing.T, start time.Time) func(time.Duration) {
	t.Helper()
	current := start
	original := clock
	clock = func() time.Time { return current }
	t.Cleanup(func() { clock = original })
	return func(step time.Duration) {
		current = current.Add(step)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = writer
	defer func() {
		os.Stdout = original
	}()

	type readResult struct {
		raw []byte
		err error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		raw, readErr := io.ReadAll(reader)
		resultCh <- readResult{raw: raw, err: readErr}
	}()

	fn()

	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	result := <-resultCh
	if result.err != nil {
		t.Fatalf("read stdout: %v", result.err)
	}
	return string(result.raw)
}

func withWorkingDir(t *testing.T, path string) {
	t.Helper()
	current, err := os.Getwd()
	if err != nil {
		t.Fatalf("get wd: %v", err)
	}
	if err := os.Chdir(path); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(current)
	})
}
