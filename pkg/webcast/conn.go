package webcast

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/isaackogan/TikTokLive-Server/internal/metrics"
)

// Conn is a live event socket of a single room.
//
// The read loop delivers decoded events on Events until the stream ends
// or the socket dies, then the channel is closed.
type Conn struct {
	client *Client
	logger zerolog.Logger

	uniqueID string
	roomID   string
	info     RoomInfo

	ws     *websocket.Conn
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc

	connected int32
}

// Connect resolves the creator's room, obtains a signed socket URL from
// the sign service and dials it.
//
// The given context bounds the lifetime of the whole connection, not only
// the dial.
func (c *Client) Connect(ctx context.Context, uniqueID string) (*Conn, error) {
	user, err := c.FetchUserRoom(ctx, uniqueID)
	if err != nil {
		return nil, errors.Wrap(err, "room resolution failed")
	}

	if !user.IsLive() {
		return nil, ErrUserOffline
	}

	info, err := c.FetchRoomInfo(ctx, user.RoomID)
	if err != nil {
		return nil, errors.Wrap(err, "room info fetch failed")
	}

	wsURL, err := c.fetchSignedURL(ctx, user.RoomID, uniqueID)
	if err != nil {
		return nil, err
	}

	//nolint:bodyclose // closed by websocket.Conn
	ws, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: c.cli,
	})
	if err != nil {
		return nil, errors.Wrap(err, "event socket dial failed")
	}

	ctx, cancel := context.WithCancel(ctx)

	conn := &Conn{
		client:    c,
		logger:    c.logger.With().Str("unique_id", uniqueID).Str("room_id", user.RoomID).Logger(),
		uniqueID:  uniqueID,
		roomID:    user.RoomID,
		info:      info,
		ws:        ws,
		events:    make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
		connected: 1,
	}

	go conn.readLoop()

	c.logger.Info().Str("unique_id", uniqueID).Str("room_id", user.RoomID).Msg("event socket connected")

	return conn, nil
}

// Events returns the stream of decoded events.
// The channel is closed when the connection dies.
func (c *Conn) Events() <-chan Event {
	return c.events
}

func (c *Conn) UniqueID() string {
	return c.uniqueID
}

func (c *Conn) RoomID() string {
	return c.roomID
}

// RoomInfo returns the metadata document fetched at connect time.
func (c *Conn) RoomInfo() json.RawMessage {
	return c.info.Raw
}

// FetchSubInfo fetches subscriber info for the connected room.
func (c *Conn) FetchSubInfo(ctx context.Context) (json.RawMessage, error) {
	return c.client.FetchSubInfo(ctx, c.roomID, c.info.OwnerSecUID)
}

func (c *Conn) Connected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Close tears the socket down. The events channel is closed by the read
// loop shortly after.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		return nil
	}

	c.cancel()

	return c.ws.Close(websocket.StatusNormalClosure, "")
}

func (c *Conn) readLoop() {
	defer func() {
		atomic.StoreInt32(&c.connected, 0)
		close(c.events)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")

		c.logger.Info().Msg("event socket closed")
	}()

	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && c.ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("event socket read failed")
			}

			return
		}

		var frame wireFrame
		err = json.Unmarshal(data, &frame)
		if err != nil {
			c.logger.Debug().Err(err).Msg("malformed frame skipped")
			continue
		}

		switch frame.Type {
		case frameTypeEvent:
			select {
			case c.events <- Event{Name: frame.Name, Data: frame.Data}:
			case <-c.ctx.Done():
				return
			}

		case frameTypeHeartbeat:
			ack, _ := json.Marshal(wireFrame{Type: frameTypeHeartbeat})
			err = c.ws.Write(c.ctx, websocket.MessageText, ack)
			if err != nil {
				return
			}

			metrics.Upstream.HeartbeatAnswered()

		case frameTypeClose:
			return

		default:
			c.logger.Debug().Str("type", frame.Type).Msg("unknown frame type skipped")
		}
	}
}
