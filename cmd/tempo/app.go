package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/journal"
	"github.com/davidahmann/tempo/core/measurements"
	"github.com/davidahmann/tempo/core/outbox"
	"github.com/davidahmann/tempo/core/projectconfig"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tracking"
)

const storeLockTimeout = 2 * time.Second

// storeFlags are accepted by every command that touches the store.
type storeFlags struct {
	configPath  string
	storeDir    string
	outboxPath  string
	journalPath string
}

var storeValueFlags = map[string]bool{
	"config":  true,
	"store":   true,
	"outbox":  true,
	"journal": true,
}

func bindStoreFlags(flagSet *flag.FlagSet, flags *storeFlags) {
	flagSet.StringVar(&flags.configPath, "config", "", "path to project config (default "+projectconfig.DefaultPath+")")
	flagSet.StringVar(&flags.storeDir, "store", "", "slot store directory override")
	flagSet.StringVar(&flags.outboxPath, "outbox", "", "sync outbox path override")
	flagSet.StringVar(&flags.journalPath, "journal", "", "journal path override, or off")
}

func (flags storeFlags) load() (projectconfig.Config, error) {
	path := strings.TrimSpace(flags.configPath)
	allowMissing := path == ""
	if allowMissing {
		path = projectconfig.DefaultPath
	}
	configuration, err := projectconfig.Load(path, allowMissing)
	if err != nil {
		return projectconfig.Config{}, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "config_invalid", "fix "+path+" and retry", false)
	}
	if value := strings.TrimSpace(flags.storeDir); value != "" {
		configuration.Store.Dir = value
	}
	if value := strings.TrimSpace(flags.outboxPath); value != "" {
		configuration.Sync.Outbox = value
	}
	if value := strings.TrimSpace(flags.journalPath); value != "" {
		configuration.Journal.Path = value
	}
	return configuration, nil
}

// session is one locked use of the store by a single command.
type session struct {
	config  projectconfig.Config
	store   *slotstore.FileStore
	layout  slotstore.Layout
	release func()
}

func openSession(flags storeFlags) (*session, error) {
	configuration, err := flags.load()
	if err != nil {
		return nil, err
	}
	layout, err := configuration.Layout()
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, "config_layout_invalid", "", false)
	}
	store, err := slotstore.NewFileStore(configuration.Store.Dir)
	if err != nil {
		return nil, err
	}
	release, err := store.Lock(storeLockTimeout)
	if err != nil {
		return nil, err
	}
	return &session{config: configuration, store: store, layout: layout, release: release}, nil
}

func (s *session) Close() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// machine wires the tracking machine to the outbox and journal, recovers crash
// leftovers, and then seeds default tasks when configured. Seeding writes the
// intent marker, so it must not run before a pending clear is finished.
func (s *session) machine() (*tracking.Machine, measurements.RepairReport, error) {
	opts := tracking.Options{
		Store:     s.store,
		Layout:    s.layout,
		Transport: &outbox.File{Path: s.config.Sync.Outbox, Now: clock},
		Notify:    s.config.Sync.Notify,
		Now:       clock,
	}
	if s.config.JournalEnabled() {
		eventJournal, err := journal.New(s.config.Journal.Path)
		if err != nil {
			return nil, measurements.RepairReport{}, err
		}
		opts.Journal = eventJournal
	}
	machine, err := tracking.New(opts)
	if err != nil {
		return nil, measurements.RepairReport{}, err
	}
	report, err := machine.Recover()
	if err != nil {
		return nil, report, err
	}
	if s.config.Tasks.SeedDefaults {
		seeded, err := machine.Registry().SeedDefaults()
		if err != nil {
			return nil, report, err
		}
		if seeded {
			// Re-derive the state so a tracked task picks up its seeded title.
			if _, err := machine.Recover(); err != nil {
				return nil, report, err
			}
		}
	}
	if report.Changed() {
		printWarning("recovered measurement log: %s", describeRepair(report))
	}
	return machine, report, nil
}

func describeRepair(report measurements.RepairReport) string {
	parts := make([]string, 0, 4)
	if len(report.ClosedSlots) > 0 {
		parts = append(parts, fmt.Sprintf("closed %d open record(s)", len(report.ClosedSlots)))
	}
	if report.Adopted {
		parts = append(parts, fmt.Sprintf("adopted orphaned record at slot %d", report.AdoptedSlot))
	}
	if report.DroppedPointer {
		parts = append(parts, "dropped dangling pointer")
	}
	if report.FinishedClear {
		parts = append(parts, "finished interrupted clear")
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

func printWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tempo warning: "+format+"\n", args...)
}

func warnJournal(outcome tracking.Outcome) {
	if outcome.JournalErr != nil {
		printWarning("journal write failed: %v", outcome.JournalErr)
	}
}

func printTextError(prefix string, err error) {
	fmt.Printf("%s error: %v\n", prefix, err)
	if hint := coreerrors.HintOf(err); hint != "" {
		fmt.Printf("hint: %s\n", hint)
	}
}
