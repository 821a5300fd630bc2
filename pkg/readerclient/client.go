// Package readerclient is a Go client for the live reader server.
package readerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

type Config struct {
	BaseURL string

	// APIKey identifies the account. The server uses it as the account
	// name for connection bookkeeping.
	APIKey string
}

// Message is the envelope every server frame is wrapped in.
type Message struct {
	Type     string          `json:"type"`
	UniqueID string          `json:"unique_id"`
	Name     string          `json:"name,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// ClientInfo identifies a single connection on the server side.
type ClientInfo struct {
	ID       string `json:"id"`
	UniqueID string `json:"unique_id"`
}

// RoomSnapshot is the state of one open room.
type RoomSnapshot struct {
	UniqueID    string       `json:"unique_id"`
	ClientNum   int          `json:"client_num"`
	Clients     []ClientInfo `json:"clients"`
	IsConnected bool         `json:"is_connected"`
}

// Stats is the server-wide connection report.
type Stats struct {
	ClientData map[string][]ClientInfo `json:"client_data"`
	PoolData   map[string]RoomSnapshot `json:"pool_data"`
}

type Client struct {
	baseURL string
	apiKey  string
	cli     *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		cli:     &http.Client{},
	}
}

// Connect opens an event stream for the given creator.
func (c *Client) Connect(ctx context.Context, uniqueID string) (*Stream, error) {
	wsBase := strings.Replace(c.baseURL, "http", "ws", 1)
	wsURL := fmt.Sprintf("%s/ws?unique_id=%s&api_key=%s", wsBase, url.QueryEscape(uniqueID), url.QueryEscape(c.apiKey))

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: c.cli,
	})
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	return &Stream{
		conn: conn,
		ctx:  ctx,
	}, nil
}

// Stats fetches the server-wide connection stats.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ws/stats", nil)
	if err != nil {
		return Stats{}, fmt.Errorf("invalid request: %w", err)
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		return Stats{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Stats{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var stats Stats
	err = json.NewDecoder(resp.Body).Decode(&stats)
	if err != nil {
		return Stats{}, fmt.Errorf("invalid body response: %w", err)
	}

	return stats, nil
}

// Stream is an open event stream of a single room.
type Stream struct {
	conn *websocket.Conn
	ctx  context.Context
}

// Read blocks until the next message arrives.
func (s *Stream) Read() (Message, error) {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return Message{}, err
	}

	var msg Message
	err = json.Unmarshal(data, &msg)
	if err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}

	return msg, nil
}

// RequestRoomInfo asks the server to reply with the room metadata.
func (s *Stream) RequestRoomInfo() error {
	return s.conn.Write(s.ctx, websocket.MessageText, []byte("operation.room_info"))
}

// RequestSubInfo asks the server to reply with subscriber info.
func (s *Stream) RequestSubInfo() error {
	return s.conn.Write(s.ctx, websocket.MessageText, []byte("operation.sub_info"))
}

func (s *Stream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
