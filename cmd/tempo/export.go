package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/fsx"
	"github.com/davidahmann/tempo/core/snapshot"
)

type exportOutput struct {
	OK           bool   `json:"ok"`
	Path         string `json:"path,omitempty"`
	Digest       string `json:"digest,omitempty"`
	Tasks        int    `json:"tasks"`
	Measurements int    `json:"measurements"`
	Verified     bool   `json:"verified,omitempty"`
	Error        string `json:"error,omitempty"`
}

func runExport(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Write a digest-stamped JSON snapshot of every occupied slot, or verify a snapshot written earlier.")
	}
	flagSet := newFlagSet("export")
	var common storeFlags
	var outPath string
	var verifyPath string
	var jsonOutput bool
	var helpFlag bool
	bindStoreFlags(flagSet, &common)
	flagSet.StringVar(&outPath, "out", "", "write the snapshot to this path instead of stdout")
	flagSet.StringVar(&verifyPath, "verify", "", "verify the digest of a snapshot file")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")
	valueFlags := mergeValueFlags(storeValueFlags, map[string]bool{"out": true, "verify": true})
	if err := parseInterspersed(flagSet, arguments, valueFlags); err != nil {
		return writeExportOutput(jsonOutput, exportOutput{OK: false, Error: err.Error()}, exitInvalidInput, nil)
	}
	if helpFlag {
		printExportUsage()
		return exitOK
	}
	if flagSet.NArg() != 0 || (outPath != "" && verifyPath != "") {
		return writeExportOutput(jsonOutput, exportOutput{OK: false, Error: "use either --out or --verify without positional arguments"}, exitInvalidInput, nil)
	}
	fail := func(err error) int {
		return writeExportOutput(jsonOutput, exportOutput{OK: false, Error: err.Error()}, exitCodeForError(err, exitInternalFailure), err)
	}
	if verifyPath != "" {
		verified, err := verifySnapshotFile(verifyPath)
		if err != nil {
			return fail(err)
		}
		return writeExportOutput(jsonOutput, exportOutput{
			OK:           true,
			Path:         verifyPath,
			Digest:       verified.Digest,
			Tasks:        len(verified.Tasks),
			Measurements: len(verified.Measurements),
			Verified:     true,
		}, exitOK, nil)
	}

	current, err := openSession(common)
	if err != nil {
		return fail(err)
	}
	defer current.Close()
	built, err := snapshot.Build(current.store, current.layout, snapshot.Options{Now: clock()})
	if err != nil {
		return fail(err)
	}
	encoded, err := json.MarshalIndent(built, "", "  ")
	if err != nil {
		return fail(err)
	}
	encoded = append(encoded, '\n')
	if strings.TrimSpace(outPath) == "" {
		_, _ = os.Stdout.Write(encoded)
		return exitOK
	}
	if err := fsx.WriteFileAtomic(outPath, encoded, 0o600); err != nil {
		return fail(coreerrors.Wrap(fmt.Errorf("write snapshot: %w", err), coreerrors.CategoryIOFailure, "snapshot_write_failed", "", true))
	}
	return writeExportOutput(jsonOutput, exportOutput{
		OK:           true,
		Path:         outPath,
		Digest:       built.Digest,
		Tasks:        len(built.Tasks),
		Measurements: len(built.Measurements),
	}, exitOK, nil)
}

func verifySnapshotFile(path string) (snapshot.Snapshot, error) {
	content, err := readInput(path)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	var loaded snapshot.Snapshot
	if err := json.Unmarshal(content, &loaded); err != nil {
		return snapshot.Snapshot{}, coreerrors.Wrap(fmt.Errorf("parse snapshot: %w", err), coreerrors.CategoryInvalidInput, "snapshot_invalid", "", false)
	}
	if err := snapshot.Verify(loaded); err != nil {
		return snapshot.Snapshot{}, coreerrors.Wrap(err, coreerrors.CategoryCorruptState, "snapshot_digest_mismatch", "re-export the snapshot from the store", false)
	}
	return loaded, nil
}

func writeExportOutput(jsonOutput bool, output exportOutput, exitCode int, cause error) int {
	if jsonOutput {
		return writeJSONOutputWithCause(output, exitCode, cause)
	}
	if !output.OK {
		if cause != nil {
			printTextError("export", cause)
		} else {
			fmt.Printf("export error: %s\n", output.Error)
		}
		return exitCode
	}
	if output.Verified {
		fmt.Printf("snapshot verified: %s digest=%s\n", output.Path, output.Digest)
		return exitCode
	}
	fmt.Printf("snapshot written: %s digest=%s tasks=%d measurements=%d\n", output.Path, output.Digest, output.Tasks, output.Measurements)
	return exitCode
}

func printExportUsage() {
	fmt.Println("Usage:")
	fmt.Println("  tempo export [--out <path>] [--json]")
	fmt.Println("  tempo export --verify <path> [--json]")
}
