package room

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/isaackogan/TikTokLive-Server/internal/metrics"
)

const sendQueueSize = 256

// Client is a downstream consumer attached to a room.
//
// Messages are enqueued on a buffered channel that the transport layer
// drains. A saturated or closed client silently drops messages so a slow
// consumer can never stall the room's fan-out.
type Client struct {
	id       string
	uniqueID string
	room     *Room

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(r *Room) *Client {
	return &Client{
		id:       uuid.New().String(),
		uniqueID: r.uniqueID,
		room:     r,
		send:     make(chan []byte, sendQueueSize),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UniqueID() string {
	return c.uniqueID
}

func (c *Client) Room() *Room {
	return c.room
}

// Outbox is the stream of encoded messages to deliver to the consumer.
// It is closed when the client is removed from its room.
func (c *Client) Outbox() <-chan []byte {
	return c.send
}

// Info is the serializable preview of a client.
type Info struct {
	ID       string `json:"id"`
	UniqueID string `json:"unique_id"`
}

func (c *Client) Info() Info {
	return Info{
		ID:       c.id,
		UniqueID: c.uniqueID,
	}
}

func (c *Client) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		zlog.Error().Err(err).Interface("message", msg).Msg("message encoding failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		metrics.Rooms.MessageDropped()
	}
}

// close marks the client dead and closes its outbox exactly once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}
