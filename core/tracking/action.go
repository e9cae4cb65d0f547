package tracking

import "github.com/davidahmann/tempo/core/tasks"

// Action is one of the variants below; the set is closed.
type Action interface {
	Name() string
	isAction()
}

type StartTracking struct {
	Task tasks.Task
}

type Interruption struct{}

type EndTracking struct{}

type ShowTasks struct{}

type ShowMeasurements struct{}

type SyncMeasurements struct{}

type Clear struct{}

func (StartTracking) Name() string    { return "start" }
func (Interruption) Name() string     { return "interrupt" }
func (EndTracking) Name() string      { return "end" }
func (ShowTasks) Name() string        { return "show_tasks" }
func (ShowMeasurements) Name() string { return "show_measurements" }
func (SyncMeasurements) Name() string { return "sync" }
func (Clear) Name() string            { return "clear" }

func (StartTracking) isAction()    {}
func (Interruption) isAction()     {}
func (EndTracking) isAction()      {}
func (ShowTasks) isAction()        {}
func (ShowMeasurements) isAction() {}
func (SyncMeasurements) isAction() {}
func (Clear) isAction()            {}
