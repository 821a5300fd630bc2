package room

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/isaackogan/TikTokLive-Server/internal/metrics"
	"github.com/isaackogan/TikTokLive-Server/pkg/webcast"
)

var ErrRoomClosed = errors.New("room is closed")

// Upstream is the live event source a room recycles for all its clients.
// Implemented by webcast.Conn.
type Upstream interface {
	Events() <-chan webcast.Event
	RoomInfo() json.RawMessage
	FetchSubInfo(ctx context.Context) (json.RawMessage, error)
	Connected() bool
	Close() error
}

// Room is a creator's room. All clients watching the same creator share
// a single upstream connection.
type Room struct {
	uniqueID string
	upstream Upstream
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	killed  bool

	peakClients     int
	eventsForwarded uint64

	// done is closed when the forward loop exits.
	done chan struct{}
}

func New(uniqueID string, upstream Upstream, logger zerolog.Logger) *Room {
	r := &Room{
		uniqueID: uniqueID,
		upstream: upstream,
		logger:   logger.With().Str("unique_id", uniqueID).Logger(),
		clients:  make(map[string]*Client),
		done:     make(chan struct{}),
	}

	metrics.Rooms.RoomOpened()

	go r.forwardLoop()

	return r
}

func (r *Room) UniqueID() string {
	return r.uniqueID
}

// Join attaches a new client to the room and queues the join message.
func (r *Room) Join() (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.killed || !r.upstream.Connected() {
		return nil, ErrRoomClosed
	}

	client := newClient(r)
	r.clients[client.id] = client

	if len(r.clients) > r.peakClients {
		r.peakClients = len(r.clients)
	}

	metrics.Rooms.ClientJoined()

	client.enqueue(newControlEvent(r.uniqueID, ControlJoin))

	return client, nil
}

// Leave detaches a client. When end is true the client is told the
// stream is over rather than that it merely left.
func (r *Room) Leave(client *Client, end bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(client, end)
}

func (r *Room) removeLocked(client *Client, end bool) {
	_, ok := r.clients[client.id]
	if !ok {
		return
	}

	name := ControlLeave
	if end {
		name = ControlEnd
	}

	client.enqueue(newControlEvent(r.uniqueID, name))
	client.close()

	delete(r.clients, client.id)

	metrics.Rooms.ClientLeft()
}

// evictAll removes every client from the room.
func (r *Room) evictAll(end bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.clients {
		r.removeLocked(client, end)
	}
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// Killed reports whether the room has been shut down or lost upstream.
func (r *Room) Killed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.killed
}

// Kill evicts all clients and closes the upstream connection.
func (r *Room) Kill() error {
	r.mu.Lock()
	if r.killed {
		r.mu.Unlock()
		return nil
	}

	r.killed = true
	r.mu.Unlock()

	r.evictAll(true)

	metrics.Upstream.DisconnectedKilled()

	err := r.upstream.Close()

	// The forward loop drains the closed events channel and exits.
	<-r.done

	return err
}

// FetchRoomInfo replies to a single client with the room metadata.
func (r *Room) FetchRoomInfo(client *Client) {
	client.enqueue(newOperationEvent(r.uniqueID, OperationRoomInfo, r.upstream.RoomInfo()))
}

// FetchSubInfo replies to a single client with subscriber info.
func (r *Room) FetchSubInfo(ctx context.Context, client *Client) error {
	data, err := r.upstream.FetchSubInfo(ctx)
	if err != nil {
		return err
	}

	client.enqueue(newOperationEvent(r.uniqueID, OperationSubInfo, data))

	return nil
}

// EventsForwarded is the number of upstream events fanned out so far.
func (r *Room) EventsForwarded() uint64 {
	return atomic.LoadUint64(&r.eventsForwarded)
}

func (r *Room) PeakClients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.peakClients
}

// Snapshot is a serializable preview of a room.
type Snapshot struct {
	UniqueID    string `json:"unique_id"`
	ClientNum   int    `json:"client_num"`
	Clients     []Info `json:"clients"`
	IsConnected bool   `json:"is_connected"`
}

func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]Info, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c.Info())
	}

	return Snapshot{
		UniqueID:    r.uniqueID,
		ClientNum:   len(r.clients),
		Clients:     clients,
		IsConnected: r.upstream.Connected(),
	}
}

func (r *Room) forwardLoop() {
	for ev := range r.upstream.Events() {
		if ev.Name == webcast.EventLiveEnd {
			r.logger.Info().Msg("stream has ended, evicting clients")

			metrics.Upstream.DisconnectedLiveEnd()
			r.evictAll(true)

			continue
		}

		atomic.AddUint64(&r.eventsForwarded, 1)
		metrics.Rooms.EventForwarded()

		msg := newTikTokEvent(r.uniqueID, ev.Name, ev.Data)
		for _, client := range r.snapshotClients() {
			client.enqueue(msg)
		}
	}

	r.mu.Lock()
	wasKilled := r.killed
	r.killed = true
	r.mu.Unlock()

	if !wasKilled {
		r.logger.Info().Msg("upstream connection lost, evicting clients")

		metrics.Upstream.DisconnectedLost()
		r.evictAll(false)
	}

	close(r.done)
}

// snapshotClients returns a copy safe to iterate without the lock.
func (r *Room) snapshotClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}

	return clients
}
