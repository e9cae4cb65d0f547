package tasks

import (
	"errors"
	"fmt"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/slotstore"
)

// MaxTitleBytes bounds a title so it fits the 32-byte display buffer of the watch.
const MaxTitleBytes = 31

var ErrIndexOutOfRange = errors.New("task index out of range")

// DefaultTitles are written by SeedDefaults into an empty registry.
var DefaultTitles = []string{"Task 1", "Task 2", "Task 3"}

type Task struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type Registry struct {
	store  slotstore.Store
	layout slotstore.Layout
}

func NewRegistry(store slotstore.Store, layout slotstore.Layout) *Registry {
	return &Registry{store: store, layout: layout}
}

// Count returns the number of contiguous occupied slots from the start of the
// task range. A hole ends the list: tasks past it are not counted.
func (r *Registry) Count() (int, error) {
	count := 0
	for slot := r.layout.TaskStart; slot < r.layout.TaskEnd; slot++ {
		exists, err := r.store.Exists(slot)
		if err != nil {
			return 0, fmt.Errorf("count tasks: %w", err)
		}
		if !exists {
			break
		}
		count++
	}
	return count, nil
}

// Get reads the task at position index of the task range.
func (r *Registry) Get(index int) (Task, error) {
	if index < 0 || index >= r.layout.TaskCapacity() {
		return Task{}, coreerrors.Wrap(
			fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, r.layout.TaskCapacity()),
			coreerrors.CategoryInvalidInput,
			"task_index_out_of_range",
			"list tasks to see valid indexes",
			false,
		)
	}
	return r.read(r.layout.TaskStart + slotstore.Slot(index))
}

// Lookup reads a task by ID. IDs outside the task range are reported as not found.
func (r *Registry) Lookup(id int) (Task, error) {
	slot := slotstore.Slot(id)
	if !r.layout.InTasks(slot) {
		return Task{}, coreerrors.Wrap(
			fmt.Errorf("task %d: %w", id, slotstore.ErrNotFound),
			coreerrors.CategoryNotFound,
			"task_not_found",
			"",
			false,
		)
	}
	return r.read(slot)
}

// List returns the tasks Count would count, in slot order.
func (r *Registry) List() ([]Task, error) {
	count, err := r.Count()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, count)
	for index := 0; index < count; index++ {
		task, err := r.Get(index)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// ReplaceAll deletes every occupied task slot and writes titles in order from the
// start of the range. Titles are validated before anything is deleted. The
// delete and write loops are not transactional; the intent marker records that a
// replace was in flight if the process dies between them.
func (r *Registry) ReplaceAll(titles []string) error {
	if err := ValidateTitles(titles, r.layout.TaskCapacity()); err != nil {
		return err
	}
	if err := slotstore.BeginIntent(r.store, r.layout, slotstore.IntentReplaceTasks); err != nil {
		return err
	}
	if _, err := slotstore.DeleteRange(r.store, r.layout.TaskStart, r.layout.TaskEnd); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	for index, title := range titles {
		slot := r.layout.TaskStart + slotstore.Slot(index)
		if err := r.store.WriteString(slot, title); err != nil {
			return fmt.Errorf("write task %d: %w", index, err)
		}
	}
	return slotstore.EndIntent(r.store, r.layout)
}

// DeleteAll removes every task, including any stranded past a gap.
func (r *Registry) DeleteAll() (int, error) {
	if err := slotstore.BeginIntent(r.store, r.layout, slotstore.IntentReplaceTasks); err != nil {
		return 0, err
	}
	deleted, err := slotstore.DeleteRange(r.store, r.layout.TaskStart, r.layout.TaskEnd)
	if err != nil {
		return deleted, fmt.Errorf("delete tasks: %w", err)
	}
	return deleted, slotstore.EndIntent(r.store, r.layout)
}

// SeedDefaults writes DefaultTitles when the first task slot is empty. It reports
// whether anything was written.
func (r *Registry) SeedDefaults() (bool, error) {
	exists, err := r.store.Exists(r.layout.TaskStart)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.ReplaceAll(DefaultTitles); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateTitles checks titles against MaxTitleBytes and the range capacity.
func ValidateTitles(titles []string, capacity int) error {
	if len(titles) > capacity {
		return coreerrors.Wrap(
			fmt.Errorf("%w: %d tasks for %d slots", slotstore.ErrRangeExhausted, len(titles), capacity),
			coreerrors.CategoryCapacityExhausted,
			"task_range_exhausted",
			fmt.Sprintf("send at most %d tasks", capacity),
			false,
		)
	}
	for index, title := range titles {
		if len(title) > MaxTitleBytes {
			return coreerrors.Wrap(
				fmt.Errorf("task %d %q: %w: %d bytes exceeds %d", index, title, slotstore.ErrValueTooLarge, len(title), MaxTitleBytes),
				coreerrors.CategoryInvalidInput,
				"task_title_too_large",
				fmt.Sprintf("shorten task titles to at most %d bytes", MaxTitleBytes),
				false,
			)
		}
	}
	return nil
}

func (r *Registry) read(slot slotstore.Slot) (Task, error) {
	title, err := r.store.ReadString(slot, MaxTitleBytes)
	if err != nil {
		return Task{}, fmt.Errorf("read task %d: %w", int(slot), err)
	}
	return Task{ID: int(slot), Title: title}, nil
}
