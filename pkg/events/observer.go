package events

import (
	"fmt"

	"github.com/cuemby/keeper/pkg/types"
)

// StateObserver publishes a supervisor's state transitions onto a Broker.
// It satisfies supervisor.StateObserver structurally, without either
// package importing the other.
type StateObserver struct {
	broker *Broker
}

// NewStateObserver wraps broker as a supervisor.StateObserver.
func NewStateObserver(broker *Broker) *StateObserver {
	return &StateObserver{broker: broker}
}

var eventByState = map[types.AppState]EventType{
	types.AppStateBootstrapping: EventAppBootstrapping,
	types.AppStateServing:       EventAppServing,
	types.AppStateReloading:     EventAppReloading,
	types.AppStateDead:          EventAppDead,
}

// OnStateChange publishes an Event reflecting the app's new state.
func (o *StateObserver) OnStateChange(app types.AppName, state types.AppState) {
	et, ok := eventByState[state]
	if !ok {
		return
	}
	o.broker.Publish(&Event{
		Type:    et,
		App:     string(app),
		Message: fmt.Sprintf("%s transitioned to %s", app, state),
	})
}
