package clientstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaackogan/TikTokLive-Server/internal/room"
	"github.com/isaackogan/TikTokLive-Server/pkg/webcast"
)

type stubUpstream struct {
	events chan webcast.Event
}

func (s *stubUpstream) Events() <-chan webcast.Event {
	return s.events
}

func (s *stubUpstream) RoomInfo() json.RawMessage {
	return nil
}

func (s *stubUpstream) FetchSubInfo(_ context.Context) (json.RawMessage, error) {
	return nil, nil
}

func (s *stubUpstream) Connected() bool {
	return true
}

func (s *stubUpstream) Close() error {
	close(s.events)
	return nil
}

func newTestClients(t *testing.T, n int) []*room.Client {
	t.Helper()

	r := room.New("creator", &stubUpstream{events: make(chan webcast.Event)}, zerolog.Nop())
	t.Cleanup(func() { _ = r.Kill() })

	clients := make([]*room.Client, 0, n)
	for i := 0; i < n; i++ {
		c, err := r.Join()
		require.NoError(t, err)

		clients = append(clients, c)
	}

	return clients
}

func TestStoreAddAndCount(t *testing.T) {
	clients := newTestClients(t, 2)

	s := New()
	s.Add("account", clients[0])
	s.Add("account", clients[1])

	assert.Equal(t, 2, s.Count("account"))
	assert.Equal(t, 0, s.Count("other"))
}

func TestStoreGet(t *testing.T) {
	clients := newTestClients(t, 2)

	s := New()
	s.Add("account", clients[0])
	s.Add("account", clients[1])

	assert.Equal(t, clients[1], s.Get("account", clients[1].ID()))
	assert.Nil(t, s.Get("account", "missing"))
	assert.Nil(t, s.Get("other", clients[0].ID()))
}

func TestStoreRemove(t *testing.T) {
	clients := newTestClients(t, 2)

	s := New()
	s.Add("account", clients[0])
	s.Add("account", clients[1])

	s.Remove("account", clients[0])
	assert.Equal(t, 1, s.Count("account"))
	assert.Nil(t, s.Get("account", clients[0].ID()))

	// Removing the last client drops the account key entirely.
	s.Remove("account", clients[1])
	assert.NotContains(t, s.Snapshot(), "account")

	// Removing from an unknown account is a no-op.
	s.Remove("other", clients[0])
}

func TestStoreSnapshot(t *testing.T) {
	clients := newTestClients(t, 2)

	s := New()
	s.Add("first", clients[0])
	s.Add("second", clients[1])

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.Len(t, snap["first"], 1)
	assert.Equal(t, clients[0].ID(), snap["first"][0].ID)
	assert.Equal(t, "creator", snap["first"][0].UniqueID)
}
