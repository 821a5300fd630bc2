package webcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"
)

const WebcastURL = "https://webcast.tiktok.com/webcast"
const UserRoomURL = "https://www.tiktok.com/api-live/user/room/"

const DefaultMaxRPS = 5

// appID is sent with every webcast API request.
const appID = "1988"

type Config struct {
	// WebcastURL overrides the webcast API base (tests, regional mirrors).
	WebcastURL string

	// UserRoomURL overrides the creator room resolution endpoint.
	UserRoomURL string

	// SignAPIURL is the base URL of the sign service that produces
	// authenticated event socket URLs.
	SignAPIURL string
	SignAPIKey string

	// SessionID is an optional TikTok session cookie. Some routes
	// (sub info) refuse to answer without it.
	SessionID string

	// Proxies are rotated round-robin over outgoing requests.
	Proxies []string

	MaxRPS int
}

// Client talks to the TikTok webcast platform: plain HTTP API routes and
// the creation of signed event socket connections.
type Client struct {
	cfg    Config
	logger zerolog.Logger
	rl     ratelimit.Limiter

	cli *http.Client

	proxies  []*url.URL
	proxyIdx uint64
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.WebcastURL == "" {
		cfg.WebcastURL = WebcastURL
	}
	if cfg.UserRoomURL == "" {
		cfg.UserRoomURL = UserRoomURL
	}
	if cfg.MaxRPS == 0 {
		cfg.MaxRPS = DefaultMaxRPS
	}

	c := &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "webcast").Logger(),
		rl:     ratelimit.New(cfg.MaxRPS),
	}

	for _, p := range cfg.Proxies {
		u, err := url.Parse(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid proxy %q", p)
		}

		c.proxies = append(c.proxies, u)
	}

	c.cli = &http.Client{
		Transport: &http.Transport{
			Proxy: func(*http.Request) (*url.URL, error) {
				return c.nextProxy(), nil
			},
		},
	}

	return c, nil
}

// nextProxy returns the next proxy of the configured ring, or nil when
// no proxies are configured (direct connection).
func (c *Client) nextProxy() *url.URL {
	if len(c.proxies) == 0 {
		return nil
	}

	idx := atomic.AddUint64(&c.proxyIdx, 1)

	return c.proxies[(idx-1)%uint64(len(c.proxies))]
}

// FetchUserRoom resolves a creator's current room and live status.
func (c *Client) FetchUserRoom(ctx context.Context, uniqueID string) (UserRoom, error) {
	reqURL := fmt.Sprintf("%s?aid=%s&uniqueId=%s", c.cfg.UserRoomURL, appID, url.QueryEscape(uniqueID))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return UserRoom{}, err
	}

	resp := new(userRoomResponse)
	err = json.Unmarshal(body, resp)
	if err != nil {
		return UserRoom{}, errors.Wrap(err, "unmarshal failed")
	}

	return UserRoom{
		RoomID: resp.Data.User.RoomID,
		Status: resp.Data.User.Status,
	}, nil
}

// FetchRoomInfo fetches the room metadata document.
func (c *Client) FetchRoomInfo(ctx context.Context, roomID string) (RoomInfo, error) {
	reqURL := fmt.Sprintf("%s/room/info/?aid=%s&room_id=%s", c.cfg.WebcastURL, appID, url.QueryEscape(roomID))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return RoomInfo{}, err
	}

	resp := new(roomInfoResponse)
	err = json.Unmarshal(body, resp)
	if err != nil {
		return RoomInfo{}, errors.Wrap(err, "unmarshal failed")
	}

	owner := new(roomInfoOwner)
	_ = json.Unmarshal(resp.Data, owner)

	return RoomInfo{
		Raw:         resp.Data,
		OwnerSecUID: owner.Owner.SecUID,
	}, nil
}

// FetchSubInfo fetches the subscriber privilege detail of a room.
// The route answers only for authenticated sessions.
func (c *Client) FetchSubInfo(ctx context.Context, roomID string, secUID string) (json.RawMessage, error) {
	if c.cfg.SessionID == "" {
		return nil, ErrMissingSessionID
	}

	reqURL := fmt.Sprintf("%s/sub/privilege/get_sub_privilege_detail?aid=%s&room_id=%s&sec_anchor_id=%s",
		c.cfg.WebcastURL, appID, url.QueryEscape(roomID), url.QueryEscape(secUID))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, errors.Wrap(ErrSubInfoFetch, err.Error())
	}

	resp := new(subInfoResponse)
	err = json.Unmarshal(body, resp)
	if err != nil || resp.Data == nil {
		return nil, ErrSubInfoFetch
	}

	return resp.Data, nil
}

// fetchSignedURL asks the sign service for an authenticated event socket URL.
func (c *Client) fetchSignedURL(ctx context.Context, roomID string, uniqueID string) (string, error) {
	reqURL := fmt.Sprintf("%s/webcast/fetch/?room_id=%s&unique_id=%s&client=ttlive-go",
		c.cfg.SignAPIURL, url.QueryEscape(roomID), url.QueryEscape(uniqueID))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return "", errors.Wrap(err, "sign request failed")
	}

	resp := new(signFetchResponse)
	err = json.Unmarshal(body, resp)
	if err != nil {
		return "", errors.Wrap(err, "sign response unmarshal failed")
	}

	if resp.WebSocketURL == "" {
		return "", errors.New("sign service returned no socket url")
	}

	return resp.WebSocketURL, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	c.rl.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid request")
	}

	c.decorate(req)

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body read failed")
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("url", reqURL).Msg("webcast request rejected")
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

// decorate attaches authentication to an outgoing request.
func (c *Client) decorate(req *http.Request) {
	if c.cfg.SessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.cfg.SessionID})
	}
	if c.cfg.SignAPIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.SignAPIKey)
	}
}
