package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidahmann/tempo/core/tracking"
)

const defaultStatusInterval = time.Minute

func runStatus(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Show the tracked task and its elapsed HH:MM time. --watch refreshes on an interval until interrupted.")
	}
	flagSet := newFlagSet("status")
	var common storeFlags
	var watch bool
	var interval time.Duration
	var count int
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&watch, "watch", false, "refresh until interrupted")
	flagSet.DurationVar(&interval, "interval", defaultStatusInterval, "refresh interval for --watch")
	flagSet.IntVar(&count, "count", 0, "stop --watch after this many refreshes (0 = until interrupted)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	valueFlags := mergeValueFlags(storeValueFlags, map[string]bool{"interval": true, "count": true})
	if err := parseInterspersed(flagSet, arguments, valueFlags); err != nil {
		return writeStatusOutput(jsonOutput, trackOutput{OK: false, Action: "status", Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printStatusUsage()
		return exitOK
	}
	if flagSet.NArg() != 0 {
		return writeStatusOutput(jsonOutput, trackOutput{OK: false, Action: "status", Error: "unexpected positional arguments"}, exitInvalidInput, nil)
	}
	if interval <= 0 || count < 0 {
		return writeStatusOutput(jsonOutput, trackOutput{OK: false, Action: "status", Error: "--interval must be positive and --count must not be negative"}, exitInvalidInput, nil)
	}
	if !watch {
		return printStatus(common, jsonOutput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchStatus(ctx, common, jsonOutput, interval, count)
}

// watchStatus reopens the store on every refresh so other commands are never
// locked out between ticks.
func watchStatus(ctx context.Context, common storeFlags, jsonOutput bool, interval time.Duration, count int) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	refreshes := 0
	for {
		if exitCode := printStatus(common, jsonOutput); exitCode != exitOK {
			return exitCode
		}
		refreshes++
		if count > 0 && refreshes >= count {
			return exitOK
		}
		select {
		case <-ctx.Done():
			return exitOK
		case <-ticker.C:
		}
	}
}

func printStatus(common storeFlags, jsonOutput bool) int {
	fail := func(err error) int {
		return writeStatusOutput(jsonOutput, trackOutput{OK: false, Action: "status", Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	return withMachine(common, func(machine *tracking.Machine) int {
		state := machine.State()
		output := trackOutput{OK: true, Action: "status", State: state.Name()}
		if state.Tracking {
			output.TaskID = state.Task.ID
			output.Title = machine.DisplayText()
			output.Since = state.Since
			output.Elapsed = machine.ElapsedText(clock())
		}
		return writeStatusOutput(jsonOutput, output, exitOK, nil)
	}, fail)
}

func writeStatusOutput(jsonOutput bool, output trackOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if !output.OK {
		if cause != nil {
			printTextError("status", cause)
		} else {
			fmt.Printf("status error: %s\n", output.Error)
		}
		return exitCode
	}
	if output.State != "tracking" {
		fmt.Println("idle")
		return exitCode
	}
	fmt.Printf("%s %s\n", output.Title, output.Elapsed)
	return exitCode
}

func printStatusUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo status [--json]")
	fmt.Println("  tempo status --watch [--interval <duration>] [--count <n>] [--json]")
}
