package room

import "encoding/json"

// Message types sent to downstream clients.
const (
	MessageTypeTikTokEvent    = "tiktok_event"
	MessageTypeRoomEvent      = "room_event"
	MessageTypeOperationEvent = "operation_event"
)

// Control event names.
const (
	ControlJoin  = "join"
	ControlLeave = "leave"
	ControlEnd   = "end"
)

// Operation event names.
const (
	OperationRoomInfo = "room_info"
	OperationSubInfo  = "sub_info"
)

var emptyObject = json.RawMessage(`{}`)

// Message is the envelope every downstream frame is wrapped in.
type Message struct {
	Type     string          `json:"type"`
	UniqueID string          `json:"unique_id"`
	Name     string          `json:"name,omitempty"`
	Data     json.RawMessage `json:"data"`
}

func newTikTokEvent(uniqueID string, name string, data json.RawMessage) Message {
	if data == nil {
		data = emptyObject
	}

	return Message{
		Type:     MessageTypeTikTokEvent,
		UniqueID: uniqueID,
		Name:     name,
		Data:     data,
	}
}

func newControlEvent(uniqueID string, name string) Message {
	return Message{
		Type:     MessageTypeRoomEvent,
		UniqueID: uniqueID,
		Name:     name,
		Data:     emptyObject,
	}
}

func newOperationEvent(uniqueID string, name string, data json.RawMessage) Message {
	if data == nil {
		data = emptyObject
	}

	return Message{
		Type:     MessageTypeOperationEvent,
		UniqueID: uniqueID,
		Name:     name,
		Data:     data,
	}
}
