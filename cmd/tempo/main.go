package main

import (
	"fmt"
	"os"
	"time"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

// clock is the time source for every transition; tests pin it.
var clock = time.Now

const (
	exitOK                = 0
	exitInternalFailure   = 1
	exitNoActiveTask      = 3
	exitCapacityExhausted = 4
	exitDeliveryFailed    = 5
	exitInvalidInput      = 6
	exitMissingDependency = 7
	exitCorruptState      = 8
)

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	if len(arguments) < 2 {
		printUsage()
		return exitInvalidInput
	}
	if arguments[1] == "--explain" {
		return writeExplain("Tempo tracks time against a fixed list of tasks in a 256-slot store and syncs finished measurements to a paired device.")
	}

	switch arguments[1] {
	case "tasks":
		return runTasks(arguments[2:])
	case "track":
		return runTrack(arguments[2:])
	case "status":
		return runStatus(arguments[2:])
	case "measurements":
		return runMeasurements(arguments[2:])
	case "sync":
		return runSync(arguments[2:])
	case "export":
		return runExport(arguments[2:])
	case "doctor":
		return runDoctor(arguments[2:])
	case "demo":
		return runDemo(arguments[2:])
	case "version", "--version", "-v":
		if hasExplainFlag(arguments[2:]) {
			return writeExplain("Print the CLI version.")
		}
		fmt.Println("tempo", version)
		return exitOK
	case "help", "--help", "-h":
		printUsage()
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo tasks list|replace|seed|clear [flags]")
	fmt.Println("  tempo track start <task-id|title>|interrupt|end|clear [flags]")
	fmt.Println("  tempo status [--watch] [--interval <duration>] [--json]")
	fmt.Println("  tempo measurements list [--json]")
	fmt.Println("  tempo sync [--outbox <path>] [--json]")
	fmt.Println("  tempo export [--out <path>] [--json]")
	fmt.Println("  tempo doctor [--repair] [--json]")
	fmt.Println("  tempo demo [--dir <path>]")
	fmt.Println("  tempo version")
	fmt.Println("Common flags: --config <path> --store <dir> --outbox <path> --journal <path|off>")
}
