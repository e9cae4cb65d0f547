package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/journal"
	"github.com/davidahmann/tempo/core/measurements"
	schemajournal "github.com/davidahmann/tempo/core/schema/v1/journal"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/synccodec"
	"github.com/davidahmann/tempo/core/tasks"
)

const (
	MessageSyncFailed   = "Sync failed."
	MessageNoActiveTask = "No active found."
	MessageStorageFull  = "Storage full."
	MessageNotifyFailed = "Notify failed."
)

// Transport delivers an outbound payload. A nil error is the acknowledgement.
type Transport interface {
	Send(ctx context.Context, payload string) error
}

type Journal interface {
	Append(event schemajournal.Event) error
}

type Options struct {
	Store     slotstore.Store
	Layout    slotstore.Layout
	Transport Transport
	Journal   Journal
	// Notify sends a Start; or End; notice through Transport whenever tracking
	// starts or ends.
	Notify bool
	// Now defaults to time.Now.
	Now func() time.Time
}

type State struct {
	Tracking bool       `json:"tracking"`
	Task     tasks.Task `json:"task,omitempty"`
	Since    int64      `json:"since,omitempty"`
}

func (s State) Name() string {
	if s.Tracking {
		return "tracking"
	}
	return "idle"
}

// Outcome is what a transition hands back to the caller to render. Message is
// set whenever the action failed in a way the user should see.
type Outcome struct {
	Action       string               `json:"action"`
	State        State                `json:"state"`
	Message      string               `json:"message,omitempty"`
	Slot         slotstore.Slot       `json:"slot,omitempty"`
	Closed       bool                 `json:"closed,omitempty"`
	Tasks        []tasks.Task         `json:"tasks,omitempty"`
	Measurements []measurements.Entry `json:"measurements,omitempty"`
	Payload      string               `json:"payload,omitempty"`
	Synced       int                  `json:"synced,omitempty"`
	Cleared      int                  `json:"cleared,omitempty"`
	// EndedTracking marks a sync that shipped the open measurement with end 0
	// and then cleared it, so the running interval is gone.
	EndedTracking bool   `json:"ended_tracking,omitempty"`
	Notice        string `json:"notice,omitempty"`
	// JournalErr is set when the transition succeeded or failed on its own
	// but its journal event could not be written.
	JournalErr error `json:"-"`
}

// Machine keeps no state the store does not: after every action it re-derives
// Idle or Tracking from the last-measurement pointer.
type Machine struct {
	store     slotstore.Store
	layout    slotstore.Layout
	registry  *tasks.Registry
	log       *measurements.Log
	transport Transport
	journal   Journal
	notify    bool
	now       func() time.Time
	state     State
}

func New(opts Options) (*Machine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("slot store is required")
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	registry := tasks.NewRegistry(opts.Store, opts.Layout)
	return &Machine{
		store:     opts.Store,
		layout:    opts.Layout,
		registry:  registry,
		log:       measurements.NewLog(opts.Store, opts.Layout, registry),
		transport: opts.Transport,
		journal:   opts.Journal,
		notify:    opts.Notify,
		now:       now,
	}, nil
}

func (m *Machine) Registry() *tasks.Registry {
	return m.registry
}

func (m *Machine) Log() *measurements.Log {
	return m.log
}

func (m *Machine) Layout() slotstore.Layout {
	return m.layout
}

// Recover repairs crash leftovers in the measurement log and then derives the
// initial state from the pointer.
func (m *Machine) Recover() (measurements.RepairReport, error) {
	report, err := m.log.Repair()
	if err != nil {
		return report, fmt.Errorf("recover measurement log: %w", err)
	}
	if err := m.refresh(); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Machine) State() State {
	return m.state
}

// DisplayText is the active task title, or "" when idle.
func (m *Machine) DisplayText() string {
	if !m.state.Tracking {
		return ""
	}
	return m.state.Task.Title
}

// ElapsedText renders the time since the open measurement started, or "" when
// idle.
func (m *Machine) ElapsedText(now time.Time) string {
	if !m.state.Tracking {
		return ""
	}
	return FormatElapsed(now.Unix() - m.state.Since)
}

// FormatElapsed renders seconds as HH:MM, minutes truncated. Hours keep
// growing past 99.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/3600, (seconds/60)%60)
}

// Perform runs one action. The returned error carries the classified cause;
// Outcome.Message carries the short text a display would show for it.
func (m *Machine) Perform(ctx context.Context, action Action) (Outcome, error) {
	if action == nil {
		return Outcome{}, coreerrors.Wrap(
			fmt.Errorf("action is required"),
			coreerrors.CategoryInvalidInput,
			"action_missing",
			"",
			false,
		)
	}
	before := m.state
	at := m.now().Unix()
	outcome := Outcome{Action: action.Name()}

	var err error
	switch typed := action.(type) {
	case StartTracking:
		err = m.start(typed.Task, at, &outcome)
	case Interruption:
		err = m.interrupt(at, &outcome)
	case EndTracking:
		outcome.Closed, err = m.log.CloseOpen(at)
	case ShowTasks:
		outcome.Tasks, err = m.registry.List()
	case ShowMeasurements:
		outcome.Measurements, err = m.log.Collect()
	case SyncMeasurements:
		err = m.sync(ctx, &outcome)
	case Clear:
		outcome.Cleared, err = m.log.Clear()
	default:
		err = fmt.Errorf("unsupported action %T", action)
	}
	if err != nil && outcome.Message == "" {
		outcome.Message = messageFor(err)
	}
	if refreshErr := m.refresh(); refreshErr != nil && err == nil {
		err = refreshErr
	}
	outcome.State = m.state
	if err == nil {
		m.announce(ctx, action, before, &outcome)
		if _, synced := action.(SyncMeasurements); synced && before.Tracking {
			outcome.EndedTracking = true
		}
	}
	outcome.JournalErr = m.record(before, outcome, err)
	return outcome, err
}

func (m *Machine) start(task tasks.Task, at int64, outcome *Outcome) error {
	if task.ID <= 0 {
		return coreerrors.Wrap(
			fmt.Errorf("task id %d is not valid", task.ID),
			coreerrors.CategoryInvalidInput,
			"task_id_invalid",
			"select a task from the task list",
			false,
		)
	}
	slot, err := m.log.Open(task.ID, at)
	if err != nil {
		return err
	}
	outcome.Slot = slot
	return nil
}

// interrupt closes the open measurement and reopens one against the same task.
// It reads the pointer's record even when closed, so an interruption after End
// resumes the last task.
func (m *Machine) interrupt(at int64, outcome *Outcome) error {
	active, err := m.log.Active()
	if err != nil {
		return err
	}
	slot, err := m.log.Open(active.TaskID, at)
	if err != nil {
		return err
	}
	outcome.Slot = slot
	return nil
}

// sync clears the log only after the transport acknowledged the payload.
func (m *Machine) sync(ctx context.Context, outcome *Outcome) error {
	if m.transport == nil {
		outcome.Message = MessageSyncFailed
		return coreerrors.Wrap(
			fmt.Errorf("no sync transport configured"),
			coreerrors.CategoryDependencyMissing,
			"sync_transport_missing",
			"set sync.outbox in .tempo/config.yaml",
			false,
		)
	}
	payload, count, err := synccodec.EncodeLog(m.log, m.registry)
	if err != nil {
		outcome.Message = MessageSyncFailed
		return err
	}
	outcome.Payload = payload
	if err := m.transport.Send(ctx, payload); err != nil {
		outcome.Message = MessageSyncFailed
		return err
	}
	outcome.Synced = count
	cleared, err := m.log.Clear()
	if err != nil {
		return fmt.Errorf("clear synced measurements: %w", err)
	}
	outcome.Cleared = cleared
	return nil
}

// announce hands a Start; or End; notice to the transport. A failed notice
// never undoes the transition; it only sets the outcome message.
func (m *Machine) announce(ctx context.Context, action Action, before State, outcome *Outcome) {
	if !m.notify || m.transport == nil {
		return
	}
	var payload string
	switch action.(type) {
	case StartTracking:
		payload = synccodec.EncodeNotice(synccodec.StartTag, m.state.Task.Title)
	case EndTracking:
		if !outcome.Closed {
			return
		}
		payload = synccodec.EncodeNotice(synccodec.EndTag, before.Task.Title)
	default:
		return
	}
	if err := m.transport.Send(ctx, payload); err != nil {
		outcome.Message = MessageNotifyFailed
		return
	}
	outcome.Notice = payload
}

func (m *Machine) refresh() error {
	entry, ok, err := m.log.Last()
	if err != nil {
		return fmt.Errorf("read tracking state: %w", err)
	}
	if !ok || !entry.Open() {
		m.state = State{}
		return nil
	}
	task, err := m.registry.Lookup(entry.TaskID)
	if err != nil {
		if !errors.Is(err, slotstore.ErrNotFound) {
			return fmt.Errorf("read tracked task: %w", err)
		}
		task = tasks.Task{ID: entry.TaskID, Title: synccodec.MissingTitle}
	}
	m.state = State{Tracking: true, Task: task, Since: entry.Start}
	return nil
}

func (m *Machine) record(before State, outcome Outcome, err error) error {
	if m.journal == nil {
		return nil
	}
	event := journal.NewEvent(outcome.Action, before.Name(), outcome.State.Name(), err, m.now())
	event.Slot = int(outcome.Slot)
	event.Message = outcome.Message
	if outcome.State.Tracking {
		event.TaskID = outcome.State.Task.ID
	}
	return m.journal.Append(event)
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, measurements.ErrNoActiveTask):
		return MessageNoActiveTask
	case errors.Is(err, slotstore.ErrRangeExhausted):
		return MessageStorageFull
	default:
		return ""
	}
}
