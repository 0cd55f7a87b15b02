package transponder

import (
	"time"

	"github.com/google/uuid"
)

// Notification event names, matching the YANG notification groupings.
const (
	EventModuleNotify      = "module-notify-event"
	EventHostIfNotify      = "host-interface-notify-event"
	EventHostIfAlarmNotify = "host-interface-alarm-notification-event"
	EventNetIfNotify       = "network-interface-notify-event"
	EventNetIfAlarmNotify  = "network-interface-alarm-notification-event"
)

// Notification is an immutable record of one detected state transition.
// Keys lists the changed leaf names; State is a snapshot of the relevant
// config and state leaves at emission time. Notifications never mutate
// entity state and are delivered at most once per detected transition.
type Notification struct {
	ID        string            `json:"id"`
	Event     string            `json:"event"`
	Ref       Ref               `json:"ref"`
	Keys      []string          `json:"keys"`
	State     map[string]string `json:"state"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewNotification builds a Notification for the given entity and changed
// keys, copying the state map.
func NewNotification(event string, ref Ref, keys []string, state map[string]string) Notification {
	cp := make(map[string]string, len(state))
	for k, v := range state {
		cp[k] = v
	}
	return Notification{
		ID:        uuid.NewString(),
		Event:     event,
		Ref:       ref,
		Keys:      append([]string(nil), keys...),
		State:     cp,
		Timestamp: time.Now().UTC(),
	}
}

// EventName returns the notification event name for an entity family.
// Modules have no separate alarm grouping; alarm falls back to the notify
// event.
func EventName(kind EntityKind, alarm bool) string {
	switch kind {
	case KindHostInterface:
		if alarm {
			return EventHostIfAlarmNotify
		}
		return EventHostIfNotify
	case KindNetworkInterface:
		if alarm {
			return EventNetIfAlarmNotify
		}
		return EventNetIfNotify
	default:
		return EventModuleNotify
	}
}
