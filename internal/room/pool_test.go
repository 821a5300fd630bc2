package room

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaackogan/TikTokLive-Server/pkg/webcast"
)

type fakeDialer struct {
	mu        sync.Mutex
	dials     int
	dialDelay time.Duration
	err       error
	upstreams []*fakeUpstream
}

func (d *fakeDialer) dial(_ context.Context, _ string) (Upstream, error) {
	if d.dialDelay > 0 {
		time.Sleep(d.dialDelay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.err != nil {
		return nil, d.err
	}

	up := newFakeUpstream()
	d.upstreams = append(d.upstreams, up)

	return up, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dials
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  []string
	finished []string
}

func (r *fakeRecorder) RoomStarted(uniqueID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = append(r.started, uniqueID)

	return "session-" + uniqueID
}

func (r *fakeRecorder) RoomFinished(sessionID string, _ string, _ int, _ uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished = append(r.finished, sessionID)
}

func newTestPool(t *testing.T, dialer *fakeDialer, recorder SessionRecorder) *Pool {
	t.Helper()

	p := NewPool(context.Background(), zerolog.Nop(), dialer.dial, PoolConfig{
		CleanupInterval: time.Hour, // sweeps are triggered manually in tests
	}, recorder)

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = p.Stop(shutdownCtx)
	})

	return p
}

func TestPoolSharesUpstreamConnection(t *testing.T) {
	dialer := &fakeDialer{}
	p := newTestPool(t, dialer, nil)

	first, err := p.Join(context.Background(), "creator")
	require.NoError(t, err)
	second, err := p.Join(context.Background(), "creator")
	require.NoError(t, err)

	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, first.Room(), second.Room())

	snap := p.Snapshot()
	require.Contains(t, snap, "creator")
	assert.Equal(t, 2, snap["creator"].ClientNum)
}

func TestPoolSeparateRoomsPerCreator(t *testing.T) {
	dialer := &fakeDialer{}
	p := newTestPool(t, dialer, nil)

	_, err := p.Join(context.Background(), "first")
	require.NoError(t, err)
	_, err = p.Join(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, 2, dialer.dialCount())
	assert.Len(t, p.Snapshot(), 2)
}

func TestPoolConcurrentJoinsDialOnce(t *testing.T) {
	dialer := &fakeDialer{dialDelay: 50 * time.Millisecond}
	p := newTestPool(t, dialer, nil)

	const joiners = 8

	var wg sync.WaitGroup
	var errCount int32
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := p.Join(context.Background(), "creator")
			if err != nil {
				atomic.AddInt32(&errCount, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&errCount))
	assert.Equal(t, 1, dialer.dialCount())
}

func TestPoolDialFailure(t *testing.T) {
	dialer := &fakeDialer{err: webcast.ErrUserOffline}
	p := newTestPool(t, dialer, nil)

	_, err := p.Join(context.Background(), "creator")
	assert.ErrorIs(t, err, webcast.ErrUserOffline)

	// The failed entry must not stick around: the next join dials again.
	dialer.mu.Lock()
	dialer.err = nil
	dialer.mu.Unlock()

	_, err = p.Join(context.Background(), "creator")
	assert.NoError(t, err)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestPoolLastLeaveKillsRoom(t *testing.T) {
	dialer := &fakeDialer{}
	recorder := &fakeRecorder{}
	p := newTestPool(t, dialer, recorder)

	client, err := p.Join(context.Background(), "creator")
	require.NoError(t, err)

	p.Leave(client)

	assert.Empty(t, p.Snapshot())
	assert.False(t, dialer.upstreams[0].Connected())

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []string{"creator"}, recorder.started)
	assert.Equal(t, []string{"session-creator"}, recorder.finished)
}

func TestPoolLeaveKeepsPopulatedRoom(t *testing.T) {
	dialer := &fakeDialer{}
	p := newTestPool(t, dialer, nil)

	first, err := p.Join(context.Background(), "creator")
	require.NoError(t, err)
	_, err = p.Join(context.Background(), "creator")
	require.NoError(t, err)

	p.Leave(first)

	snap := p.Snapshot()
	require.Contains(t, snap, "creator")
	assert.Equal(t, 1, snap["creator"].ClientNum)
	assert.True(t, dialer.upstreams[0].Connected())
}

func TestPoolSweepRemovesEmptiedRooms(t *testing.T) {
	dialer := &fakeDialer{}
	p := newTestPool(t, dialer, nil)

	client, err := p.Join(context.Background(), "creator")
	require.NoError(t, err)

	// Emptied by an upstream event, not by a leave: only the sweep
	// notices such rooms.
	up := dialer.upstreams[0]
	up.events <- webcast.Event{Name: webcast.EventLiveEnd}

	require.Eventually(t, func() bool {
		return client.Room().ClientCount() == 0
	}, time.Second, 10*time.Millisecond)

	p.sweep()

	assert.Empty(t, p.Snapshot())
	assert.False(t, up.Connected())
}

func TestPoolRejoinAfterUpstreamLost(t *testing.T) {
	dialer := &fakeDialer{}
	p := newTestPool(t, dialer, nil)

	_, err := p.Join(context.Background(), "creator")
	require.NoError(t, err)

	require.NoError(t, dialer.upstreams[0].Close())

	// The stale room is replaced transparently on the next join.
	client, err := p.Join(context.Background(), "creator")
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dialCount())
	assert.Equal(t, 1, client.Room().ClientCount())
}

func TestPoolStopKillsAllRooms(t *testing.T) {
	dialer := &fakeDialer{}
	recorder := &fakeRecorder{}

	p := NewPool(context.Background(), zerolog.Nop(), dialer.dial, PoolConfig{CleanupInterval: time.Hour}, recorder)
	p.Start()

	_, err := p.Join(context.Background(), "first")
	require.NoError(t, err)
	_, err = p.Join(context.Background(), "second")
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Stop(shutdownCtx))

	for _, up := range dialer.upstreams {
		assert.False(t, up.Connected())
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.finished, 2)
}

func TestPoolJoinCancelledContext(t *testing.T) {
	dialer := &fakeDialer{dialDelay: 200 * time.Millisecond}
	p := newTestPool(t, dialer, nil)

	go func() {
		_, _ = p.Join(context.Background(), "creator")
	}()

	// Make sure the first joiner owns the dialing entry.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Join(ctx, "creator")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
