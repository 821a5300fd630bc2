package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaackogan/TikTokLive-Server/pkg/webcast"
)

type fakeUpstream struct {
	events chan webcast.Event
	info   json.RawMessage

	subInfo json.RawMessage
	subErr  error

	mu     sync.Mutex
	closed bool
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		events:  make(chan webcast.Event, 16),
		info:    json.RawMessage(`{"title":"stream"}`),
		subInfo: json.RawMessage(`{"sub_count":1}`),
	}
}

func (f *fakeUpstream) Events() <-chan webcast.Event {
	return f.events
}

func (f *fakeUpstream) RoomInfo() json.RawMessage {
	return f.info
}

func (f *fakeUpstream) FetchSubInfo(_ context.Context) (json.RawMessage, error) {
	return f.subInfo, f.subErr
}

func (f *fakeUpstream) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return !f.closed
}

func (f *fakeUpstream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	close(f.events)

	return nil
}

func readMessage(t *testing.T, c *Client) Message {
	t.Helper()

	select {
	case data, ok := <-c.Outbox():
		require.True(t, ok, "outbox closed unexpectedly")

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))

		return msg

	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return Message{}
	}
}

func assertOutboxClosed(t *testing.T, c *Client) {
	t.Helper()

	select {
	case _, ok := <-c.Outbox():
		assert.False(t, ok)

	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the outbox to close")
	}
}

func TestRoomJoinSendsControlMessage(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	client, err := r.Join()
	require.NoError(t, err)

	msg := readMessage(t, client)
	assert.Equal(t, MessageTypeRoomEvent, msg.Type)
	assert.Equal(t, ControlJoin, msg.Name)
	assert.Equal(t, "creator", msg.UniqueID)
}

func TestRoomFanOut(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	first, err := r.Join()
	require.NoError(t, err)
	second, err := r.Join()
	require.NoError(t, err)

	readMessage(t, first)
	readMessage(t, second)

	up.events <- webcast.Event{Name: "chat", Data: json.RawMessage(`{"comment":"hi"}`)}

	for _, client := range []*Client{first, second} {
		msg := readMessage(t, client)
		assert.Equal(t, MessageTypeTikTokEvent, msg.Type)
		assert.Equal(t, "chat", msg.Name)
		assert.Equal(t, "creator", msg.UniqueID)
		assert.JSONEq(t, `{"comment":"hi"}`, string(msg.Data))
	}

	assert.Equal(t, uint64(1), r.EventsForwarded())
}

func TestRoomLeave(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	client, err := r.Join()
	require.NoError(t, err)
	readMessage(t, client)

	r.Leave(client, false)

	msg := readMessage(t, client)
	assert.Equal(t, MessageTypeRoomEvent, msg.Type)
	assert.Equal(t, ControlLeave, msg.Name)

	assertOutboxClosed(t, client)
	assert.Equal(t, 0, r.ClientCount())
}

func TestRoomLiveEndEvictsClients(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	client, err := r.Join()
	require.NoError(t, err)
	readMessage(t, client)

	up.events <- webcast.Event{Name: webcast.EventLiveEnd}

	msg := readMessage(t, client)
	assert.Equal(t, ControlEnd, msg.Name)

	assertOutboxClosed(t, client)

	assert.Eventually(t, func() bool {
		return r.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRoomUpstreamLostEvictsClients(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())

	client, err := r.Join()
	require.NoError(t, err)
	readMessage(t, client)

	require.NoError(t, up.Close())

	msg := readMessage(t, client)
	assert.Equal(t, ControlLeave, msg.Name)

	assertOutboxClosed(t, client)

	assert.Eventually(t, r.Killed, time.Second, 10*time.Millisecond)

	_, err = r.Join()
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestRoomKill(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())

	client, err := r.Join()
	require.NoError(t, err)
	readMessage(t, client)

	require.NoError(t, r.Kill())

	msg := readMessage(t, client)
	assert.Equal(t, ControlEnd, msg.Name)
	assertOutboxClosed(t, client)

	assert.False(t, up.Connected())

	_, err = r.Join()
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestRoomFetchRoomInfo(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	client, err := r.Join()
	require.NoError(t, err)
	readMessage(t, client)

	r.FetchRoomInfo(client)

	msg := readMessage(t, client)
	assert.Equal(t, MessageTypeOperationEvent, msg.Type)
	assert.Equal(t, OperationRoomInfo, msg.Name)
	assert.JSONEq(t, `{"title":"stream"}`, string(msg.Data))
}

func TestRoomFetchSubInfo(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	client, err := r.Join()
	require.NoError(t, err)
	readMessage(t, client)

	require.NoError(t, r.FetchSubInfo(context.Background(), client))

	msg := readMessage(t, client)
	assert.Equal(t, MessageTypeOperationEvent, msg.Type)
	assert.Equal(t, OperationSubInfo, msg.Name)
	assert.JSONEq(t, `{"sub_count":1}`, string(msg.Data))
}

func TestRoomFetchSubInfoError(t *testing.T) {
	up := newFakeUpstream()
	up.subErr = errors.New("no session")

	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	client, err := r.Join()
	require.NoError(t, err)
	readMessage(t, client)

	assert.Error(t, r.FetchSubInfo(context.Background(), client))
}

func TestRoomSnapshot(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	client, err := r.Join()
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, "creator", snap.UniqueID)
	assert.Equal(t, 1, snap.ClientNum)
	assert.True(t, snap.IsConnected)
	require.Len(t, snap.Clients, 1)
	assert.Equal(t, client.ID(), snap.Clients[0].ID)
}

func TestRoomPeakClients(t *testing.T) {
	up := newFakeUpstream()
	r := New("creator", up, zerolog.Nop())
	defer func() { _ = r.Kill() }()

	first, err := r.Join()
	require.NoError(t, err)
	second, err := r.Join()
	require.NoError(t, err)

	r.Leave(first, false)
	r.Leave(second, false)

	assert.Equal(t, 2, r.PeakClients())
	assert.Equal(t, 0, r.ClientCount())
}
