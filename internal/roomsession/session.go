package roomsession

import (
	"time"

	"github.com/google/uuid"
)

// Session is the stored record of a single room's lifetime.
type Session struct {
	ID string `dynamodbav:"Id"`

	UniqueID string `dynamodbav:"UniqueId"`

	StartedAt time.Time  `dynamodbav:"StartedAt"`
	EndedAt   *time.Time `dynamodbav:"EndedAt,omitempty"`

	PeakClients     int    `dynamodbav:"PeakClients"`
	EventsForwarded uint64 `dynamodbav:"EventsForwarded"`
}

func New(uniqueID string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UniqueID:  uniqueID,
		StartedAt: time.Now().UTC(),
	}
}
