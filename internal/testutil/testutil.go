package testutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tasks"
)

// Run is the captured result of one tempo invocation.
type Run struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func RepoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to locate testutil source file")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}

// BuildTempoBinary compiles cmd/tempo into a temp directory owned by t.
func BuildTempoBinary(t *testing.T) string {
	t.Helper()
	binName := "tempo"
	if runtime.GOOS == "windows" {
		binName = "tempo.exe"
	}
	binPath := filepath.Join(t.TempDir(), binName)

	// #nosec G204 -- arguments are fixed and used only in test binaries.
	build := exec.Command("go", "build", "-o", binPath, "./cmd/tempo")
	build.Dir = RepoRoot(t)
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build tempo binary: %v\n%s", err, string(out))
	}
	return binPath
}

// RunTempo runs binPath in dir. A non-zero exit is returned, not fatal.
func RunTempo(t *testing.T, binPath string, dir string, args ...string) Run {
	t.Helper()
	// #nosec G204 -- binary is built by the test itself.
	cmd := exec.Command(binPath, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := Run{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("run tempo %v: %v", args, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result
}

// DecodeJSON unmarshals the stdout of a --json invocation.
func (r Run) DecodeJSON(t *testing.T, target any) {
	t.Helper()
	if err := json.Unmarshal([]byte(r.Stdout), target); err != nil {
		t.Fatalf("parse json output: %v\n%s", err, r.Stdout)
	}
}

// NewFileStore opens a store in a fresh temp directory and writes titles into
// its task range when any are given.
func NewFileStore(t *testing.T, titles ...string) (*slotstore.FileStore, slotstore.Layout) {
	t.Helper()
	store, err := slotstore.NewFileStore(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	layout := slotstore.DefaultLayout()
	if len(titles) > 0 {
		if err := tasks.NewRegistry(store, layout).ReplaceAll(titles); err != nil {
			t.Fatalf("seed tasks: %v", err)
		}
	}
	return store, layout
}

func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("create parent directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) []byte {
	t.Helper()
	content, err := os.ReadFile(path) // #nosec G304 -- test helper for controlled paths.
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return content
}
