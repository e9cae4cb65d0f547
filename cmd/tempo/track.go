package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/tasks"
	"github.com/davidahmann/tempo/core/tracking"
)

type trackOutput struct {
	OK      bool   `json:"ok"`
	Action  string `json:"action,omitempty"`
	State   string `json:"state,omitempty"`
	TaskID  int    `json:"task_id,omitempty"`
	Title   string `json:"title,omitempty"`
	Since   int64  `json:"since,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
	Slot    int    `json:"slot,omitempty"`
	Closed  bool   `json:"closed,omitempty"`
	Cleared int    `json:"cleared,omitempty"`
	Notice  string `json:"notice,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runTrack(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Drive the tracking state machine: start a task, interrupt and resume it, end it, or clear recorded measurements.")
	}
	if len(arguments) == 0 {
		printTrackUsage()
		return exitInvalidInput
	}
	subcommand := arguments[0]
	switch subcommand {
	case "start", "interrupt", "end", "clear":
	default:
		printTrackUsage()
		return exitInvalidInput
	}

	flagSet := newFlagSet("track " + subcommand)
	var common storeFlags
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	if err := parseInterspersed(flagSet, arguments[1:], storeValueFlags); err != nil {
		return writeTrackOutput(jsonOutput, trackOutput{OK: false, Action: subcommand, Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printTrackUsage()
		return exitOK
	}
	positionals := flagSet.Args()
	if subcommand == "start" && len(positionals) != 1 {
		return writeTrackOutput(jsonOutput, trackOutput{OK: false, Action: subcommand, Error: "expected exactly one <task-id|title>"}, exitInvalidInput, nil)
	}
	if subcommand != "start" && len(positionals) != 0 {
		return writeTrackOutput(jsonOutput, trackOutput{OK: false, Action: subcommand, Error: "unexpected positional arguments"}, exitInvalidInput, nil)
	}

	fail := func(err error) int {
		return writeTrackOutput(jsonOutput, trackOutput{OK: false, Action: subcommand, Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	return withMachine(common, func(machine *tracking.Machine) int {
		var action tracking.Action
		switch subcommand {
		case "start":
			task, err := resolveTask(machine.Registry(), positionals[0])
			if err != nil {
				return fail(err)
			}
			action = tracking.StartTracking{Task: task}
		case "interrupt":
			action = tracking.Interruption{}
		case "end":
			action = tracking.EndTracking{}
		default:
			action = tracking.Clear{}
		}

		before := machine.State()
		outcome, err := machine.Perform(context.Background(), action)
		warnJournal(outcome)
		output := trackOutputFor(outcome, machine)
		if subcommand == "end" && outcome.Closed {
			output.TaskID = before.Task.ID
			output.Title = before.Task.Title
		}
		if err != nil {
			output.OK = false
			output.Error = err.Error()
			return writeTrackOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure), err)
		}
		output.OK = true
		return writeTrackOutput(jsonOutput, output, exitOK, nil)
	}, fail)
}

func trackOutputFor(outcome tracking.Outcome, machine *tracking.Machine) trackOutput {
	output := trackOutput{
		Action:  outcome.Action,
		State:   outcome.State.Name(),
		Slot:    int(outcome.Slot),
		Closed:  outcome.Closed,
		Cleared: outcome.Cleared,
		Notice:  outcome.Notice,
		Message: outcome.Message,
	}
	if outcome.State.Tracking {
		output.TaskID = outcome.State.Task.ID
		output.Title = outcome.State.Task.Title
		output.Since = outcome.State.Since
		output.Elapsed = machine.ElapsedText(clock())
	}
	return output
}

// resolveTask accepts a task ID or an exact title.
func resolveTask(registry *tasks.Registry, reference string) (tasks.Task, error) {
	trimmed := strings.TrimSpace(reference)
	if id, err := strconv.Atoi(trimmed); err == nil {
		return registry.Lookup(id)
	}
	listed, err := registry.List()
	if err != nil {
		return tasks.Task{}, err
	}
	for _, task := range listed {
		if task.Title == reference {
			return task, nil
		}
	}
	return tasks.Task{}, coreerrors.Wrap(
		fmt.Errorf("no task titled %q", reference),
		coreerrors.CategoryNotFound,
		"task_not_found",
		"run tempo tasks list to see task ids",
		false,
	)
}

func writeTrackOutput(jsonOutput bool, output trackOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if output.Message != "" {
		fmt.Println(output.Message)
	}
	if !output.OK {
		if cause != nil {
			printTextError("track", cause)
		} else {
			fmt.Printf("track error: %s\n", output.Error)
		}
		return exitCode
	}
	switch output.Action {
	case "start", "interrupt":
		fmt.Printf("tracking %s (task %d) slot=%d\n", output.Title, output.TaskID, output.Slot)
	case "end":
		if output.Closed {
			fmt.Printf("ended %s (task %d)\n", output.Title, output.TaskID)
		} else {
			fmt.Println("nothing to end")
		}
	case "clear":
		fmt.Printf("cleared %d measurement(s)\n", output.Cleared)
	}
	return exitCode
}

func printTrackUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo track start <task-id|title> [--json]")
	fmt.Println("  tempo track interrupt [--json]")
	fmt.Println("  tempo track end [--json]")
	fmt.Println("  tempo track clear [--json]")
}
