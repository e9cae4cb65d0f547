package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/synccodec"
	"github.com/davidahmann/tempo/core/tasks"
	"github.com/davidahmann/tempo/core/tracking"
)

type tasksOutput struct {
	OK        bool         `json:"ok"`
	Operation string       `json:"operation,omitempty"`
	Tasks     []tasks.Task `json:"tasks,omitempty"`
	Count     int          `json:"count"`
	Seeded    bool         `json:"seeded,omitempty"`
	Deleted   int          `json:"deleted,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func runTasks(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Manage the task list: list it, replace it from a synced document or plain lines, seed the default tasks, or clear it.")
	}
	if len(arguments) == 0 {
		printTasksUsage()
		return exitInvalidInput
	}
	switch arguments[0] {
	case "list":
		return runTasksList(arguments[1:])
	case "replace":
		return runTasksReplace(arguments[1:])
	case "seed":
		return runTasksSeed(arguments[1:])
	case "clear":
		return runTasksClear(arguments[1:])
	default:
		printTasksUsage()
		return exitInvalidInput
	}
}

func runTasksList(arguments []string) int {
	flagSet := newFlagSet("tasks list")
	var common storeFlags
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	if err := parseInterspersed(flagSet, arguments, storeValueFlags); err != nil {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printTasksUsage()
		return exitOK
	}

	return withMachine(common, func(machine *tracking.Machine) int {
		outcome, err := machine.Perform(context.Background(), tracking.ShowTasks{})
		warnJournal(outcome)
		if err != nil {
			return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Operation: "list", Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
		}
		return writeTasksOutput(jsonOutput, tasksOutput{OK: true, Operation: "list", Tasks: outcome.Tasks, Count: len(outcome.Tasks)}, exitOK, nil)
	}, func(err error) int {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Operation: "list", Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	})
}

func runTasksReplace(arguments []string) int {
	flagSet := newFlagSet("tasks replace")
	var common storeFlags
	var documentPath string
	var linesPath string
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.StringVar(&documentPath, "file", "", "path to a tempo.sync.tasks JSON document")
	flagSet.StringVar(&linesPath, "lines", "", "path to a file with one title per line, or - for stdin")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	valueFlags := mergeValueFlags(storeValueFlags, map[string]bool{"file": true, "lines": true})
	if err := parseInterspersed(flagSet, arguments, valueFlags); err != nil {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printTasksUsage()
		return exitOK
	}
	sources := 0
	for _, present := range []bool{documentPath != "", linesPath != "", flagSet.NArg() > 0} {
		if present {
			sources++
		}
	}
	if sources != 1 {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Operation: "replace", Error: "provide exactly one of --file, --lines or title arguments"}, exitInvalidInput, nil)
	}

	fail := func(err error) int {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Operation: "replace", Error: err.Error()}, exitCodeForError(err, exitInvalidInput), err)
	}
	return withMachine(common, func(machine *tracking.Machine) int {
		capacity := machine.Layout().TaskCapacity()
		var titles []string
		var err error
		switch {
		case documentPath != "":
			var content []byte
			content, err = readInput(documentPath)
			if err == nil {
				titles, err = synccodec.ParseInboundJSON(content, capacity)
			}
		case linesPath != "":
			var content []byte
			content, err = readInput(linesPath)
			if err == nil {
				titles, err = synccodec.ParseLines(string(content), capacity)
			}
		default:
			titles, err = synccodec.DecodeTasks(flagSet.Args(), capacity)
		}
		if err != nil {
			return fail(err)
		}
		if err := machine.Registry().ReplaceAll(titles); err != nil {
			return fail(err)
		}
		listed, err := machine.Registry().List()
		if err != nil {
			return fail(err)
		}
		return writeTasksOutput(jsonOutput, tasksOutput{OK: true, Operation: "replace", Tasks: listed, Count: len(listed)}, exitOK, nil)
	}, fail)
}

func runTasksSeed(arguments []string) int {
	flagSet := newFlagSet("tasks seed")
	var common storeFlags
	var jsonOutput bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	if err := parseInterspersed(flagSet, arguments, storeValueFlags); err != nil {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}

	fail := func(err error) int {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Operation: "seed", Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	return withMachine(common, func(machine *tracking.Machine) int {
		seeded, err := machine.Registry().SeedDefaults()
		if err != nil {
			return fail(err)
		}
		listed, err := machine.Registry().List()
		if err != nil {
			return fail(err)
		}
		return writeTasksOutput(jsonOutput, tasksOutput{OK: true, Operation: "seed", Tasks: listed, Count: len(listed), Seeded: seeded}, exitOK, nil)
	}, fail)
}

func runTasksClear(arguments []string) int {
	flagSet := newFlagSet("tasks clear")
	var common storeFlags
	var jsonOutput bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	if err := parseInterspersed(flagSet, arguments, storeValueFlags); err != nil {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}

	fail := func(err error) int {
		return writeTasksOutput(jsonOutput, tasksOutput{OK: false, Operation: "clear", Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	return withMachine(common, func(machine *tracking.Machine) int {
		deleted, err := machine.Registry().DeleteAll()
		if err != nil {
			return fail(err)
		}
		return writeTasksOutput(jsonOutput, tasksOutput{OK: true, Operation: "clear", Deleted: deleted}, exitOK, nil)
	}, fail)
}

func writeTasksOutput(jsonOutput bool, output tasksOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if !output.OK {
		if cause != nil {
			printTextError("tasks", cause)
		} else {
			fmt.Printf("tasks error: %s\n", output.Error)
		}
		return exitCode
	}
	switch output.Operation {
	case "clear":
		fmt.Printf("tasks cleared: %d\n", output.Deleted)
	case "seed":
		if !output.Seeded {
			fmt.Println("tasks already present; nothing seeded")
		}
		printTaskLines(output.Tasks)
	default:
		if len(output.Tasks) == 0 {
			fmt.Println("no tasks")
		}
		printTaskLines(output.Tasks)
	}
	return exitCode
}

func printTaskLines(list []tasks.Task) {
	for _, task := range list {
		fmt.Printf("%d\t%s\n", task.ID, task.Title)
	}
}

func printTasksUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo tasks list [--json]")
	fmt.Println("  tempo tasks replace <title>... [--json]")
	fmt.Println("  tempo tasks replace --file <tasks.json> [--json]")
	fmt.Println("  tempo tasks replace --lines <path|-> [--json]")
	fmt.Println("  tempo tasks seed [--json]")
	fmt.Println("  tempo tasks clear [--json]")
}

func newFlagSet(name string) *flag.FlagSet {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	return flagSet
}

// withMachine opens a locked session, recovers the machine and hands it to fn.
// Setup failures go to fail.
func withMachine(common storeFlags, fn func(*tracking.Machine) int, fail func(error) int) int {
	current, err := openSession(common)
	if err != nil {
		return fail(err)
	}
	defer current.Close()
	machine, _, err := current.machine()
	if err != nil {
		return fail(err)
	}
	return fn(machine)
}

func readInput(path string) ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if strings.TrimSpace(path) == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		// #nosec G304 -- input path is explicit local user input.
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("read %s: %w", path, err), coreerrors.CategoryInvalidInput, "input_unreadable", "", false)
	}
	return content, nil
}
