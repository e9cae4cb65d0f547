package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/journal"
	"github.com/davidahmann/tempo/core/outbox"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tasks"
	"github.com/davidahmann/tempo/core/tracking"
)

const demoOutDir = "tempo-demo"

// demoStart is 2026-01-01T09:00:00Z; every demo step advances from it.
var demoStart = time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)

type demoStep struct {
	action  tracking.Action
	advance time.Duration
}

type demoOutput struct {
	OK      bool     `json:"ok"`
	Store   string   `json:"store,omitempty"`
	Outbox  string   `json:"outbox,omitempty"`
	Steps   []string `json:"steps,omitempty"`
	Payload string   `json:"payload,omitempty"`
	Synced  int      `json:"synced"`
	Error   string   `json:"error,omitempty"`
}

func runDemo(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Run a scripted tracking session against a scratch store and sync it to a scratch outbox.")
	}
	flagSet := newFlagSet("demo")
	var dir string
	var jsonOutput bool
	var helpFlag bool
	flagSet.StringVar(&dir, "dir", demoOutDir, "scratch directory for the demo store")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	if err := parseInterspersed(flagSet, arguments, map[string]bool{"dir": true}); err != nil {
		return writeDemoOutput(jsonOutput, demoOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printDemoUsage()
		return exitOK
	}

	output, err := playDemo(context.Background(), dir)
	if err != nil {
		output.Error = err.Error()
		return writeDemoOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure), err)
	}
	output.OK = true
	return writeDemoOutput(jsonOutput, output, exitOK, nil)
}

func playDemo(ctx context.Context, dir string) (demoOutput, error) {
	storeDir := filepath.Join(dir, "store")
	outboxPath := filepath.Join(dir, "outbox.jsonl")
	output := demoOutput{Store: storeDir, Outbox: outboxPath}

	store, err := slotstore.NewFileStore(storeDir)
	if err != nil {
		return output, err
	}
	release, err := store.Lock(storeLockTimeout)
	if err != nil {
		return output, err
	}
	defer release()
	eventJournal, err := journal.New(filepath.Join(dir, "journal.jsonl"))
	if err != nil {
		return output, err
	}

	now := demoStart
	demoClock := func() time.Time { return now }
	machine, err := tracking.New(tracking.Options{
		Store:     store,
		Layout:    slotstore.DefaultLayout(),
		Transport: &outbox.File{Path: outboxPath, Now: demoClock},
		Journal:   eventJournal,
		Now:       demoClock,
	})
	if err != nil {
		return output, err
	}
	if _, err := machine.Recover(); err != nil {
		return output, err
	}
	if err := machine.Registry().ReplaceAll(tasks.DefaultTitles); err != nil {
		return output, err
	}
	first, err := machine.Registry().Get(0)
	if err != nil {
		return output, err
	}
	second, err := machine.Registry().Get(1)
	if err != nil {
		return output, err
	}

	steps := []demoStep{
		{action: tracking.Clear{}},
		{action: tracking.StartTracking{Task: first}},
		{action: tracking.Interruption{}, advance: 25 * time.Minute},
		{action: tracking.StartTracking{Task: second}, advance: 20 * time.Minute},
		{action: tracking.EndTracking{}, advance: 30 * time.Minute},
		{action: tracking.SyncMeasurements{}, advance: time.Minute},
	}
	for _, step := range steps {
		now = now.Add(step.advance)
		outcome, err := machine.Perform(ctx, step.action)
		warnJournal(outcome)
		if err != nil {
			return output, fmt.Errorf("demo %s: %w", outcome.Action, err)
		}
		output.Steps = append(output.Steps, describeDemoStep(outcome))
		if outcome.Action == "sync" {
			output.Payload = outcome.Payload
			output.Synced = outcome.Synced
		}
	}

	records, err := outbox.Read(outboxPath)
	if err != nil {
		return output, err
	}
	if len(records) == 0 || records[len(records)-1].Payload != output.Payload {
		return output, coreerrors.Wrap(
			fmt.Errorf("outbox does not end with the synced payload"),
			coreerrors.CategoryCorruptState,
			"demo_verify_failed",
			"remove "+dir+" and rerun tempo demo",
			false,
		)
	}
	return output, nil
}

func describeDemoStep(outcome tracking.Outcome) string {
	switch outcome.Action {
	case "start", "interrupt":
		return fmt.Sprintf("%s task=%d slot=%d", outcome.Action, outcome.State.Task.ID, outcome.Slot)
	case "end":
		return fmt.Sprintf("end closed=%t", outcome.Closed)
	case "clear", "sync":
		return fmt.Sprintf("%s cleared=%d", outcome.Action, outcome.Cleared)
	default:
		return outcome.Action
	}
}

func writeDemoOutput(jsonOutput bool, output demoOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if !output.OK {
		if cause != nil {
			printTextError("demo", cause)
		} else {
			fmt.Printf("demo error: %s\n", output.Error)
		}
		return exitCode
	}
	fmt.Printf("store=%s\n", output.Store)
	fmt.Println(strings.Join(output.Steps, "\n"))
	fmt.Printf("payload=%s\n", output.Payload)
	fmt.Printf("synced=%d outbox=%s\n", output.Synced, output.Outbox)
	fmt.Println("verify=ok")
	return exitCode
}

func printDemoUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo demo [--dir <path>] [--json]")
}
