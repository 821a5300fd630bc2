// Package clientstore indexes connected room clients by the account that
// opened them.
package clientstore

import (
	"sync"

	"github.com/isaackogan/TikTokLive-Server/internal/room"
)

type Store struct {
	mu      sync.RWMutex
	clients map[string][]*room.Client
}

func New() *Store {
	return &Store{
		clients: make(map[string][]*room.Client),
	}
}

func (s *Store) Add(accountName string, client *room.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[accountName] = append(s.clients[accountName], client)
}

func (s *Store) Remove(accountName string, client *room.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients, ok := s.clients[accountName]
	if !ok {
		return
	}

	for i, c := range clients {
		if c.ID() != client.ID() {
			continue
		}

		s.clients[accountName] = append(clients[:i], clients[i+1:]...)
		break
	}

	if len(s.clients[accountName]) == 0 {
		delete(s.clients, accountName)
	}
}

// GetAccount returns a copy of the account's clients.
func (s *Store) GetAccount(accountName string) []*room.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := s.clients[accountName]

	out := make([]*room.Client, len(clients))
	copy(out, clients)

	return out
}

func (s *Store) Get(accountName string, clientID string) *room.Client {
	for _, c := range s.GetAccount(accountName) {
		if c.ID() == clientID {
			return c
		}
	}

	return nil
}

func (s *Store) Count(accountName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.clients[accountName])
}

// Snapshot returns a serializable preview of all accounts and their clients.
func (s *Store) Snapshot() map[string][]room.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string][]room.Info, len(s.clients))
	for accountName, clients := range s.clients {
		infos := make([]room.Info, 0, len(clients))
		for _, c := range clients {
			infos = append(infos, c.Info())
		}

		snapshot[accountName] = infos
	}

	return snapshot
}
