package roomsession

import (
	"time"

	"github.com/rs/zerolog"
)

// Recorder persists room lifetimes through a Repository. Storage failures
// are logged and swallowed: session history must never break relaying.
type Recorder struct {
	logger zerolog.Logger
	repo   Repository
}

func NewRecorder(logger zerolog.Logger, repo Repository) *Recorder {
	return &Recorder{
		logger: logger.With().Str("component", "session_recorder").Logger(),
		repo:   repo,
	}
}

func (r *Recorder) RoomStarted(uniqueID string) string {
	session := New(uniqueID)

	err := r.repo.Create(session)
	if err != nil {
		r.logger.Error().Err(err).Str("unique_id", uniqueID).Msg("session cannot be saved")
	}

	return session.ID
}

func (r *Recorder) RoomFinished(sessionID string, uniqueID string, peakClients int, eventsForwarded uint64) {
	err := r.repo.Finish(sessionID, time.Now().UTC(), peakClients, eventsForwarded)
	if err != nil {
		r.logger.Error().Err(err).Str("unique_id", uniqueID).Str("session_id", sessionID).Msg("session cannot be finalized")
		return
	}

	r.logger.Info().
		Str("unique_id", uniqueID).
		Str("session_id", sessionID).
		Int("peak_clients", peakClients).
		Uint64("events_forwarded", eventsForwarded).
		Msg("room session recorded")
}
