package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/davidahmann/tempo/core/journal"
	"github.com/davidahmann/tempo/core/measurements"
	"github.com/davidahmann/tempo/core/outbox"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tasks"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

const repairCommand = "tempo doctor --repair"

type Options struct {
	StoreDir        string
	Store           slotstore.Store
	Layout          slotstore.Layout
	OutboxPath      string
	JournalPath     string
	ProducerVersion string
	Now             time.Time
}

type Result struct {
	SchemaID        string   `json:"schema_id"`
	SchemaVersion   string   `json:"schema_version"`
	CreatedAt       string   `json:"created_at"`
	ProducerVersion string   `json:"producer_version"`
	Status          string   `json:"status"`
	NonFixable      bool     `json:"non_fixable"`
	Summary         string   `json:"summary"`
	FixCommands     []string `json:"fix_commands"`
	Checks          []Check  `json:"checks"`
}

type Check struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	FixCommand string `json:"fix_command,omitempty"`
	NonFixable bool   `json:"non_fixable,omitempty"`
}

func Run(opts Options) Result {
	producerVersion := strings.TrimSpace(opts.ProducerVersion)
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}

	checks := make([]Check, 0, 8)
	if strings.TrimSpace(opts.StoreDir) != "" {
		checks = append(checks, checkStoreDirWritable(opts.StoreDir))
	}
	if err := opts.Layout.Validate(); err != nil {
		checks = append(checks, Check{
			Name:       "layout",
			Status:     statusFail,
			Message:    fmt.Sprintf("invalid slot layout: %v", err),
			FixCommand: "fix store.measurements_start/end in .tempo/config.yaml",
		})
	} else if opts.Store != nil {
		checks = append(checks,
			checkSlots(opts.Store, opts.Layout),
			checkPendingIntent(opts.Store, opts.Layout),
			checkMeasurements(opts.Store, opts.Layout),
			checkTaskGaps(opts.Store, opts.Layout),
		)
	}
	if strings.TrimSpace(opts.OutboxPath) != "" {
		checks = append(checks, checkOutbox(opts.OutboxPath))
	}
	if strings.TrimSpace(opts.JournalPath) != "" {
		checks = append(checks, checkJournal(opts.JournalPath))
	}

	failed := 0
	warned := 0
	nonFixable := false
	fixCommands := make([]string, 0, len(checks))
	seenFixes := map[string]struct{}{}
	for _, check := range checks {
		switch check.Status {
		case statusFail:
			failed++
		case statusWarn:
			warned++
		}
		if check.NonFixable {
			nonFixable = true
		}
		if check.FixCommand != "" {
			if _, ok := seenFixes[check.FixCommand]; !ok {
				seenFixes[check.FixCommand] = struct{}{}
				fixCommands = append(fixCommands, check.FixCommand)
			}
		}
	}

	status := statusPass
	if failed > 0 {
		status = statusFail
	} else if warned > 0 {
		status = statusWarn
	}

	sort.Strings(fixCommands)
	summary := fmt.Sprintf("doctor: status=%s failed=%d warned=%d non_fixable=%t", status, failed, warned, nonFixable)

	return Result{
		SchemaID:        "tempo.doctor.result",
		SchemaVersion:   "1.0.0",
		CreatedAt:       normalizeNow(opts.Now).Format(time.RFC3339Nano),
		ProducerVersion: producerVersion,
		Status:          status,
		NonFixable:      nonFixable,
		Summary:         summary,
		FixCommands:     fixCommands,
		Checks:          checks,
	}
}

type RepairResult struct {
	DroppedReplaceMarker bool                      `json:"dropped_replace_marker,omitempty"`
	Measurements         measurements.RepairReport `json:"measurements"`
}

func (r RepairResult) Changed() bool {
	return r.DroppedReplaceMarker || r.Measurements.Changed()
}

// Repair drops an interrupted replace marker and repairs the measurement log.
// A replace cannot be finished without its titles; the partial list stays as
// written until the next inbound sync.
func Repair(store slotstore.Store, layout slotstore.Layout) (RepairResult, error) {
	result := RepairResult{}
	intent, err := slotstore.PendingIntent(store, layout)
	if err != nil {
		return result, err
	}
	if intent == slotstore.IntentReplaceTasks {
		if err := slotstore.EndIntent(store, layout); err != nil {
			return result, err
		}
		result.DroppedReplaceMarker = true
	}
	registry := tasks.NewRegistry(store, layout)
	report, err := measurements.NewLog(store, layout, registry).Repair()
	result.Measurements = report
	if err != nil {
		return result, err
	}
	return result, nil
}

func checkStoreDirWritable(storeDir string) Check {
	info, err := os.Stat(storeDir)
	if err != nil {
		return Check{
			Name:       "store_dir",
			Status:     statusFail,
			Message:    fmt.Sprintf("store directory not accessible: %v", err),
			FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(storeDir)),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:       "store_dir",
			Status:     statusFail,
			Message:    "store path is not a directory",
			NonFixable: true,
		}
	}
	testPath := filepath.Join(storeDir, ".tempo-doctor-writecheck")
	if err := os.WriteFile(testPath, []byte("ok"), 0o600); err != nil {
		return Check{
			Name:       "store_dir",
			Status:     statusFail,
			Message:    fmt.Sprintf("store directory not writable: %v", err),
			FixCommand: fmt.Sprintf("chmod u+w %s", shellQuote(storeDir)),
		}
	}
	_ = os.Remove(testPath)
	return Check{
		Name:    "store_dir",
		Status:  statusPass,
		Message: "store directory is writable",
	}
}

// checkSlots reads every occupied slot with the kind its range expects.
func checkSlots(store slotstore.Store, layout slotstore.Layout) Check {
	bad := make([]string, 0)
	for slot := slotstore.Slot(0); slot < slotstore.Capacity; slot++ {
		exists, err := store.Exists(slot)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s (%v)", slot, err))
			continue
		}
		if !exists {
			continue
		}
		if err := readExpected(store, layout, slot); err != nil {
			bad = append(bad, fmt.Sprintf("%s (%v)", slot, err))
		}
	}
	if len(bad) > 0 {
		return Check{
			Name:       "slots",
			Status:     statusFail,
			Message:    fmt.Sprintf("unreadable slots: %s", strings.Join(bad, "; ")),
			NonFixable: true,
		}
	}
	return Check{
		Name:    "slots",
		Status:  statusPass,
		Message: "every occupied slot is readable",
	}
}

func readExpected(store slotstore.Store, layout slotstore.Layout, slot slotstore.Slot) error {
	switch {
	case layout.InTasks(slot):
		_, err := store.ReadString(slot, tasks.MaxTitleBytes)
		return err
	case layout.InMeasurements(slot):
		var record measurements.Measurement
		return store.ReadRecord(slot, &record)
	case slot == layout.LastMeasurement || slot == layout.Marker:
		_, err := store.ReadInt(slot)
		return err
	default:
		return fmt.Errorf("slot is outside every range")
	}
}

func checkPendingIntent(store slotstore.Store, layout slotstore.Layout) Check {
	intent, err := slotstore.PendingIntent(store, layout)
	if err != nil {
		return Check{
			Name:    "pending_intent",
			Status:  statusFail,
			Message: fmt.Sprintf("read intent marker: %v", err),
		}
	}
	if intent != slotstore.IntentNone {
		return Check{
			Name:       "pending_intent",
			Status:     statusWarn,
			Message:    fmt.Sprintf("interrupted %s operation", intent),
			FixCommand: repairCommand,
		}
	}
	return Check{
		Name:    "pending_intent",
		Status:  statusPass,
		Message: "no interrupted operation",
	}
}

// checkMeasurements reports a dangling pointer and open records the pointer
// does not name.
func checkMeasurements(store slotstore.Store, layout slotstore.Layout) Check {
	log := measurements.NewLog(store, layout, tasks.NewRegistry(store, layout))
	last, hasLast, err := log.Last()
	if err != nil {
		return Check{
			Name:    "measurements",
			Status:  statusFail,
			Message: fmt.Sprintf("read last measurement: %v", err),
		}
	}
	pointerSet, err := store.Exists(layout.LastMeasurement)
	if err != nil {
		return Check{
			Name:    "measurements",
			Status:  statusFail,
			Message: fmt.Sprintf("read pointer slot: %v", err),
		}
	}
	problems := make([]string, 0)
	if pointerSet && !hasLast {
		problems = append(problems, "last-measurement pointer names no measurement")
	}
	occupied, err := slotstore.Occupied(store, layout.MeasurementsStart, layout.MeasurementsEnd)
	if err != nil {
		return Check{
			Name:    "measurements",
			Status:  statusFail,
			Message: fmt.Sprintf("scan measurements: %v", err),
		}
	}
	orphans := 0
	for _, slot := range occupied {
		if hasLast && slot == last.Slot {
			continue
		}
		var record measurements.Measurement
		if err := store.ReadRecord(slot, &record); err != nil {
			continue
		}
		if record.Open() {
			orphans++
		}
	}
	if orphans > 0 {
		problems = append(problems, fmt.Sprintf("%d open measurement(s) not named by the pointer", orphans))
	}
	if len(problems) > 0 {
		return Check{
			Name:       "measurements",
			Status:     statusWarn,
			Message:    strings.Join(problems, "; "),
			FixCommand: repairCommand,
		}
	}
	return Check{
		Name:    "measurements",
		Status:  statusPass,
		Message: fmt.Sprintf("%d measurement(s), at most one open", len(occupied)),
	}
}

// checkTaskGaps warns when a hole hides records from listing and sync.
func checkTaskGaps(store slotstore.Store, layout slotstore.Layout) Check {
	hidden := make([]string, 0)
	for _, span := range []struct {
		name     string
		from, to slotstore.Slot
	}{
		{name: "task", from: layout.TaskStart, to: layout.TaskEnd},
		{name: "measurement", from: layout.MeasurementsStart, to: layout.MeasurementsEnd},
	} {
		occupied, err := slotstore.Occupied(store, span.from, span.to)
		if err != nil {
			return Check{
				Name:    "gaps",
				Status:  statusFail,
				Message: fmt.Sprintf("scan %s range: %v", span.name, err),
			}
		}
		for index, slot := range occupied {
			if slot != span.from+slotstore.Slot(index) {
				hidden = append(hidden, fmt.Sprintf("%d %s slot(s) from %s on", len(occupied)-index, span.name, slot))
				break
			}
		}
	}
	if len(hidden) > 0 {
		return Check{
			Name:       "gaps",
			Status:     statusWarn,
			Message:    fmt.Sprintf("hidden past a gap: %s", strings.Join(hidden, "; ")),
			FixCommand: "tempo export --json",
		}
	}
	return Check{
		Name:    "gaps",
		Status:  statusPass,
		Message: "ranges are contiguous",
	}
}

func checkOutbox(path string) Check {
	records, err := outbox.Read(path)
	if err != nil {
		return Check{
			Name:       "outbox",
			Status:     statusFail,
			Message:    err.Error(),
			NonFixable: true,
		}
	}
	return Check{
		Name:    "outbox",
		Status:  statusPass,
		Message: fmt.Sprintf("%d verified record(s)", len(records)),
	}
}

func checkJournal(path string) Check {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Check{
			Name:    "journal",
			Status:  statusPass,
			Message: "journal not written yet",
		}
	}
	events, err := journal.Load(path)
	if err != nil {
		return Check{
			Name:       "journal",
			Status:     statusWarn,
			Message:    err.Error(),
			FixCommand: fmt.Sprintf("mv %s %s.bak", shellQuote(path), shellQuote(path)),
		}
	}
	return Check{
		Name:    "journal",
		Status:  statusPass,
		Message: fmt.Sprintf("%d event(s)", len(events)),
	}
}

func normalizeNow(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
