package webcast

import "encoding/json"

// UserRoom is the live state of a creator resolved by unique id.
type UserRoom struct {
	RoomID string
	Status int
}

const (
	// StatusLive means the creator is currently streaming.
	StatusLive = 2
	// StatusOffline means the creator has no active stream.
	StatusOffline = 4
)

// IsLive reports whether the creator has an active stream.
func (u UserRoom) IsLive() bool {
	return u.Status == StatusLive
}

type userRoomResponse struct {
	Data struct {
		User struct {
			RoomID string `json:"roomId"`
			Status int    `json:"status"`
		} `json:"user"`
	} `json:"data"`
}

// RoomInfo is the raw room metadata document returned by the webcast API.
// Only the owner identity is decoded, the rest is forwarded verbatim.
type RoomInfo struct {
	Raw json.RawMessage

	OwnerSecUID string
}

type roomInfoResponse struct {
	Data json.RawMessage `json:"data"`
}

type roomInfoOwner struct {
	Owner struct {
		SecUID string `json:"sec_uid"`
	} `json:"owner"`
}

type subInfoResponse struct {
	Data json.RawMessage `json:"data"`
}

type signFetchResponse struct {
	WebSocketURL string `json:"ws_url"`
}

// Event is a single decoded webcast event.
type Event struct {
	Name string
	Data json.RawMessage
}

// Terminal event names delivered by the connection itself.
const (
	EventLiveEnd = "live_end"
)

// wireFrame is the envelope the signed event socket emits.
type wireFrame struct {
	Type string          `json:"type"`
	Name string          `json:"name,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	frameTypeEvent     = "event"
	frameTypeHeartbeat = "hb"
	frameTypeClose     = "close"
)
