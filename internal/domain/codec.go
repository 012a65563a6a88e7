package domain

import (
	"encoding/json"
	"fmt"
)

// EncodeEvent serializes an event payload for storage.
func EncodeEvent(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	return data, nil
}

// DecodeEvent rebuilds an event from its stored type name and payload.
func DecodeEvent(eventType EventType, data []byte) (Event, error) {
	switch eventType {
	case EventTypeTaskCreated:
		return decode[TaskCreated](eventType, data)
	case EventTypeTaskAssigned:
		return decode[TaskAssigned](eventType, data)
	case EventTypeTaskCompleted:
		return decode[TaskCompleted](eventType, data)
	case EventTypeTaskDeleted:
		return decode[TaskDeleted](eventType, data)
	case EventTypeTaskDueDateUpdated:
		return decode[TaskDueDateUpdated](eventType, data)
	case EventTypeTaskWorkqueueUpdated:
		return decode[TaskWorkqueueUpdated](eventType, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

func decode[E Event](eventType EventType, data []byte) (Event, error) {
	var event E
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", eventType, err)
	}
	return event, nil
}
