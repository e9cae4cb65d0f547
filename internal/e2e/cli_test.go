package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/tempo/internal/testutil"
)

func TestCLIDemoVerify(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the tempo binary")
	}
	binPath := testutil.BuildTempoBinary(t)
	workDir := t.TempDir()

	demo := testutil.RunTempo(t, binPath, workDir, "demo")
	if demo.ExitCode != 0 {
		t.Fatalf("tempo demo failed with %d\n%s%s", demo.ExitCode, demo.Stdout, demo.Stderr)
	}
	if !strings.Contains(demo.Stdout, "payload=Sync;Task 1#") || !strings.Contains(demo.Stdout, "verify=ok") {
		t.Fatalf("unexpected demo output: %s", demo.Stdout)
	}
	if _, err := os.Stat(filepath.Join(workDir, "tempo-demo", "outbox.jsonl")); err != nil {
		t.Fatalf("expected demo outbox to exist: %v", err)
	}

	doctor := testutil.RunTempo(t, binPath, workDir,
		"doctor", "--store", "tempo-demo/store", "--outbox", "tempo-demo/outbox.jsonl", "--journal", "tempo-demo/journal.jsonl", "--json")
	if doctor.ExitCode != 0 {
		t.Fatalf("tempo doctor failed with %d\n%s", doctor.ExitCode, doctor.Stdout)
	}
	var doctorResult struct {
		OK     bool   `json:"ok"`
		Status string `json:"status"`
	}
	doctor.DecodeJSON(t, &doctorResult)
	if !doctorResult.OK || doctorResult.Status != "pass" {
		t.Fatalf("unexpected doctor result: %s", doctor.Stdout)
	}
}

func TestCLITrackingExitCodes(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the tempo binary")
	}
	binPath := testutil.BuildTempoBinary(t)
	workDir := t.TempDir()

	interrupt := testutil.RunTempo(t, binPath, workDir, "track", "interrupt")
	if interrupt.ExitCode != 3 {
		t.Fatalf("interrupt on empty store: expected exit 3 got %d\n%s", interrupt.ExitCode, interrupt.Stdout)
	}
	if !strings.HasPrefix(interrupt.Stdout, "No active found.") {
		t.Fatalf("unexpected interrupt output: %s", interrupt.Stdout)
	}

	if seed := testutil.RunTempo(t, binPath, workDir, "tasks", "seed"); seed.ExitCode != 0 {
		t.Fatalf("tasks seed failed: %+v", seed)
	}
	if start := testutil.RunTempo(t, binPath, workDir, "track", "start", "Task 2"); start.ExitCode != 0 {
		t.Fatalf("track start failed: %+v", start)
	}

	status := testutil.RunTempo(t, binPath, workDir, "status")
	if status.ExitCode != 0 || !strings.HasPrefix(status.Stdout, "Task 2 00:0") {
		t.Fatalf("unexpected status run: %+v", status)
	}

	synced := testutil.RunTempo(t, binPath, workDir, "sync", "--json")
	if synced.ExitCode != 0 || !strings.Contains(synced.Stdout, `"payload":"Sync;Task 2#`) {
		t.Fatalf("unexpected sync run: %+v", synced)
	}
	if after := testutil.RunTempo(t, binPath, workDir, "status"); !strings.HasPrefix(after.Stdout, "idle") {
		t.Fatalf("expected idle after sync: %+v", after)
	}
}
