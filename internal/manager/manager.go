// Package manager glues the room pool and the per-account client index
// together behind the API surface.
package manager

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/isaackogan/TikTokLive-Server/internal/clientstore"
	"github.com/isaackogan/TikTokLive-Server/internal/room"
)

type Manager struct {
	logger zerolog.Logger

	store *clientstore.Store
	pool  *room.Pool
}

func New(logger zerolog.Logger, pool *room.Pool) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "manager").Logger(),
		store:  clientstore.New(),
		pool:   pool,
	}
}

// Start launches the pool's background tasks.
func (m *Manager) Start() {
	m.pool.Start()
}

// Stop shuts the pool down, killing every room.
func (m *Manager) Stop(shutdownCtx context.Context) error {
	return errors.Wrap(m.pool.Stop(shutdownCtx), "pool cannot be stopped")
}

// Join attaches a new client of the given account to the creator's room.
func (m *Manager) Join(ctx context.Context, accountName string, uniqueID string) (*room.Client, error) {
	client, err := m.pool.Join(ctx, uniqueID)
	if err != nil {
		m.logger.Warn().Err(err).Str("unique_id", uniqueID).Msg("failed to join room")
		return nil, err
	}

	m.store.Add(accountName, client)

	return client, nil
}

// Leave detaches the client from its room and drops it from the account
// index.
func (m *Manager) Leave(client *room.Client, accountName string) {
	m.store.Remove(accountName, client)
	m.pool.Leave(client)
}

// Stats is the serializable state of all connections.
type Stats struct {
	ClientData map[string][]room.Info   `json:"client_data"`
	PoolData   map[string]room.Snapshot `json:"pool_data"`
}

func (m *Manager) Stats() Stats {
	return Stats{
		ClientData: m.store.Snapshot(),
		PoolData:   m.pool.Snapshot(),
	}
}
