package main

import (
	"fmt"

	"github.com/davidahmann/tempo/core/doctor"
)

type doctorOutput struct {
	OK              bool                 `json:"ok"`
	SchemaID        string               `json:"schema_id,omitempty"`
	SchemaVersion   string               `json:"schema_version,omitempty"`
	CreatedAt       string               `json:"created_at,omitempty"`
	ProducerVersion string               `json:"producer_version,omitempty"`
	Status          string               `json:"status,omitempty"`
	NonFixable      bool                 `json:"non_fixable,omitempty"`
	Summary         string               `json:"summary,omitempty"`
	FixCommands     []string             `json:"fix_commands,omitempty"`
	Checks          []doctor.Check       `json:"checks,omitempty"`
	Repair          *doctor.RepairResult `json:"repair,omitempty"`
	Error           string               `json:"error,omitempty"`
}

func runDoctor(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Inspect the slot store, outbox and journal for crash leftovers and corruption. --repair fixes what can be fixed in place.")
	}
	flagSet := newFlagSet("doctor")
	var common storeFlags
	var repair bool
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.BoolVar(&repair, "repair", false, "repair crash leftovers before checking")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	if err := parseInterspersed(flagSet, arguments, storeValueFlags); err != nil {
		return writeDoctorOutput(jsonOutput, doctorOutput{OK: false, Error: err.Error()}, exitCodeForError(err, exitInvalidInput), nil)
	}
	if helpFlag {
		printDoctorUsage()
		return exitOK
	}
	if flagSet.NArg() != 0 {
		return writeDoctorOutput(jsonOutput, doctorOutput{OK: false, Error: "unexpected positional arguments"}, exitInvalidInput, nil)
	}

	current, err := openSession(common)
	if err != nil {
		return writeDoctorOutput(jsonOutput, doctorOutput{OK: false, Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	defer current.Close()

	var repaired *doctor.RepairResult
	if repair {
		result, err := doctor.Repair(current.store, current.layout)
		if err != nil {
			return writeDoctorOutput(jsonOutput, doctorOutput{OK: false, Error: err.Error()}, exitCodeForError(err, exitCorruptState), err)
		}
		repaired = &result
	}

	journalPath := ""
	if current.config.JournalEnabled() {
		journalPath = current.config.Journal.Path
	}
	result := doctor.Run(doctor.Options{
		StoreDir:        current.store.Dir(),
		Store:           current.store,
		Layout:          current.layout,
		OutboxPath:      current.config.Sync.Outbox,
		JournalPath:     journalPath,
		ProducerVersion: version,
		Now:             clock(),
	})
	exitCode := exitOK
	if result.Status == "fail" {
		exitCode = exitCorruptState
	}
	return writeDoctorOutput(jsonOutput, doctorOutput{
		OK:              result.Status != "fail",
		SchemaID:        result.SchemaID,
		SchemaVersion:   result.SchemaVersion,
		CreatedAt:       result.CreatedAt,
		ProducerVersion: result.ProducerVersion,
		Status:          result.Status,
		NonFixable:      result.NonFixable,
		Summary:         result.Summary,
		FixCommands:     result.FixCommands,
		Checks:          result.Checks,
		Repair:          repaired,
	}, exitCode, nil)
}

func writeDoctorOutput(jsonOutput bool, output doctorOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if output.Error != "" {
		if cause != nil {
			printTextError("doctor", cause)
		} else {
			fmt.Printf("doctor error: %s\n", output.Error)
		}
		return exitCode
	}
	if output.Repair != nil {
		if output.Repair.Changed() {
			fmt.Printf("repaired: %s\n", describeDoctorRepair(*output.Repair))
		} else {
			fmt.Println("repaired: nothing to do")
		}
	}
	fmt.Println(output.Summary)
	for _, check := range output.Checks {
		fmt.Printf("- %s: %s (%s)\n", check.Name, check.Status, check.Message)
		if check.FixCommand != "" {
			fmt.Printf("  fix: %s\n", check.FixCommand)
		}
	}
	return exitCode
}

func describeDoctorRepair(result doctor.RepairResult) string {
	description := describeRepair(result.Measurements)
	if !result.DroppedReplaceMarker {
		return description
	}
	if !result.Measurements.Changed() {
		return "dropped interrupted task replace marker"
	}
	return "dropped interrupted task replace marker, " + description
}

func printDoctorUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo doctor [--repair] [--json]")
}
