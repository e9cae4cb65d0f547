package main

import (
	"context"
	"fmt"

	"github.com/davidahmann/tempo/core/tracking"
)

type syncOutput struct {
	OK            bool   `json:"ok"`
	Payload       string `json:"payload,omitempty"`
	Synced        int    `json:"synced"`
	Cleared       int    `json:"cleared"`
	EndedTracking bool   `json:"ended_tracking,omitempty"`
	Outbox        string `json:"outbox,omitempty"`
	State         string `json:"state,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

func runSync(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Encode every measurement as a Sync; payload, deliver it to the outbox, and clear the log once delivery is acknowledged. A running interval is sent with end 0 and cleared too, so tracking stops.")
	}
	flagSet := newFlagSet("sync")
	var common storeFlags
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	if err := parseInterspersed(flagSet, arguments, storeValueFlags); err != nil {
		return writeSyncOutput(jsonOutput, syncOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printSyncUsage()
		return exitOK
	}
	if flagSet.NArg() != 0 {
		return writeSyncOutput(jsonOutput, syncOutput{OK: false, Error: "unexpected positional arguments"}, exitInvalidInput, nil)
	}

	current, err := openSession(common)
	if err != nil {
		return writeSyncOutput(jsonOutput, syncOutput{OK: false, Message: tracking.MessageSyncFailed, Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	defer current.Close()
	machine, _, err := current.machine()
	if err != nil {
		return writeSyncOutput(jsonOutput, syncOutput{OK: false, Message: tracking.MessageSyncFailed, Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}

	outcome, err := machine.Perform(context.Background(), tracking.SyncMeasurements{})
	warnJournal(outcome)
	output := syncOutput{
		Payload:       outcome.Payload,
		Synced:        outcome.Synced,
		Cleared:       outcome.Cleared,
		EndedTracking: outcome.EndedTracking,
		Outbox:        current.config.Sync.Outbox,
		State:         outcome.State.Name(),
		Message:       outcome.Message,
	}
	if err != nil {
		output.Error = err.Error()
		return writeSyncOutput(jsonOutput, output, exitCodeForError(err, exitDeliveryFailed), err)
	}
	output.OK = true
	return writeSyncOutput(jsonOutput, output, exitOK, nil)
}

func writeSyncOutput(jsonOutput bool, output syncOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if output.Message != "" {
		fmt.Println(output.Message)
	}
	if !output.OK {
		if cause != nil {
			printTextError("sync", cause)
		} else {
			fmt.Printf("sync error: %s\n", output.Error)
		}
		return exitCode
	}
	fmt.Println(output.Payload)
	fmt.Printf("synced=%d outbox=%s\n", output.Synced, output.Outbox)
	if output.EndedTracking {
		fmt.Println("the running interval was synced with end 0 and tracking stopped")
	}
	return exitCode
}

func printSyncUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo sync [--outbox <path>] [--json]")
}
