package main

import (
	"context"
	"fmt"
	"time"

	"github.com/davidahmann/tempo/core/synccodec"
	"github.com/davidahmann/tempo/core/tracking"
)

type measurementView struct {
	Slot     int    `json:"slot"`
	TaskID   int    `json:"task_id"`
	Title    string `json:"title"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Open     bool   `json:"open"`
	Duration string `json:"duration"`
}

type measurementsOutput struct {
	OK           bool              `json:"ok"`
	Measurements []measurementView `json:"measurements,omitempty"`
	Count        int               `json:"count"`
	Error        string            `json:"error,omitempty"`
}

func runMeasurements(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("List recorded measurements in slot order with task titles resolved at read time.")
	}
	if len(arguments) == 0 || arguments[0] != "list" {
		printMeasurementsUsage()
		return exitInvalidInput
	}
	flagSet := newFlagSet("measurements list")
	var common storeFlags
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	if err := parseInterspersed(flagSet, arguments[1:], storeValueFlags); err != nil {
		return writeMeasurementsOutput(jsonOutput, measurementsOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printMeasurementsUsage()
		return exitOK
	}

	fail := func(err error) int {
		return writeMeasurementsOutput(jsonOutput, measurementsOutput{OK: false, Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	return withMachine(common, func(machine *tracking.Machine) int {
		outcome, err := machine.Perform(context.Background(), tracking.ShowMeasurements{})
		warnJournal(outcome)
		if err != nil {
			return fail(err)
		}
		resolve, err := synccodec.RegistryResolver(machine.Registry())
		if err != nil {
			return fail(err)
		}
		now := clock().Unix()
		views := make([]measurementView, 0, len(outcome.Measurements))
		for _, entry := range outcome.Measurements {
			title, ok := resolve(entry.TaskID)
			if !ok {
				title = synccodec.MissingTitle
			}
			seconds := entry.Seconds()
			if entry.Open() {
				seconds = now - entry.Start
			}
			views = append(views, measurementView{
				Slot:     int(entry.Slot),
				TaskID:   entry.TaskID,
				Title:    title,
				Start:    entry.Start,
				End:      entry.End,
				Open:     entry.Open(),
				Duration: tracking.FormatElapsed(seconds),
			})
		}
		return writeMeasurementsOutput(jsonOutput, measurementsOutput{OK: true, Measurements: views, Count: len(views)}, exitOK, nil)
	}, fail)
}

func writeMeasurementsOutput(jsonOutput bool, output measurementsOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if !output.OK {
		if cause != nil {
			printTextError("measurements", cause)
		} else {
			fmt.Printf("measurements error: %s\n", output.Error)
		}
		return exitCode
	}
	if len(output.Measurements) == 0 {
		fmt.Println("no measurements")
		return exitCode
	}
	for _, view := range output.Measurements {
		end := "open"
		if !view.Open {
			end = formatEpoch(view.End)
		}
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", view.Slot, view.Title, formatEpoch(view.Start), end, view.Duration)
	}
	return exitCode
}

func formatEpoch(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}

func printMeasurementsUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo measurements list [--json]")
}
