package room

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/isaackogan/TikTokLive-Server/internal/metrics"
)

const DefaultCleanupInterval = time.Minute

// DialFunc opens an upstream connection to a creator's room.
type DialFunc func(ctx context.Context, uniqueID string) (Upstream, error)

// SessionRecorder is notified about room lifetimes. Implementations must
// never block for long: recording happens on the serving path.
type SessionRecorder interface {
	RoomStarted(uniqueID string) (sessionID string)
	RoomFinished(sessionID string, uniqueID string, peakClients int, eventsForwarded uint64)
}

type PoolConfig struct {
	// CleanupInterval is the period of the empty-room sweep.
	CleanupInterval time.Duration
}

// Pool manages all open rooms, keyed by creator unique id.
//
// Rooms are created on first join and removed as soon as they are empty:
// immediately when the last client leaves, and by a periodic sweep as a
// backstop for rooms emptied by upstream events.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger   zerolog.Logger
	dial     DialFunc
	cfg      PoolConfig
	recorder SessionRecorder

	mu    sync.Mutex
	rooms map[string]*entry

	workers sync.WaitGroup
}

// entry guards a room under creation: concurrent joins for the same
// creator wait on ready instead of dialing twice.
type entry struct {
	ready chan struct{}

	room      *Room
	err       error
	sessionID string
}

func NewPool(ctx context.Context, logger zerolog.Logger, dial DialFunc, cfg PoolConfig, recorder SessionRecorder) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	return &Pool{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With().Str("component", "room_pool").Logger(),
		dial:     dial,
		cfg:      cfg,
		recorder: recorder,
		rooms:    make(map[string]*entry),
	}
}

// Start runs the empty-room sweep in the background.
func (p *Pool) Start() {
	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		p.sweepLoop()
	}()

	p.logger.Info().Dur("cleanup_interval", p.cfg.CleanupInterval).Msg("room pool has been started")
}

// Stop stops background tasks and kills every remaining room.
func (p *Pool) Stop(shutdownCtx context.Context) error {
	p.cancel()
	p.workers.Wait()

	p.mu.Lock()
	entries := make([]*entry, 0, len(p.rooms))
	for _, e := range p.rooms {
		entries = append(entries, e)
	}
	p.rooms = make(map[string]*entry)
	p.mu.Unlock()

	g, _ := errgroup.WithContext(shutdownCtx)
	for _, e := range entries {
		e := e

		select {
		case <-e.ready:
		default:
			continue
		}
		if e.room == nil {
			continue
		}

		g.Go(func() error {
			return errors.Wrapf(p.finishRoom(e), "room @%s cannot be killed", e.room.UniqueID())
		})
	}

	err := g.Wait()

	p.logger.Info().Msg("room pool has been stopped")

	return err
}

// Join attaches a client to the creator's room, creating the room and
// its upstream connection when absent.
func (p *Pool) Join(ctx context.Context, uniqueID string) (*Client, error) {
	for {
		p.mu.Lock()
		e, ok := p.rooms[uniqueID]
		if !ok {
			e = &entry{ready: make(chan struct{})}
			p.rooms[uniqueID] = e
			p.mu.Unlock()

			p.createRoom(uniqueID, e)
		} else {
			p.mu.Unlock()
		}

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if e.err != nil {
			return nil, e.err
		}

		client, err := e.room.Join()
		if err == nil {
			p.logger.Info().
				Str("unique_id", uniqueID).
				Str("client_id", client.ID()).
				Int("clients", e.room.ClientCount()).
				Msg("client joined room")

			return client, nil
		}

		// The room died between lookup and join. Drop the stale entry
		// and retry with a fresh one.
		p.dropEntry(uniqueID, e)
	}
}

func (p *Pool) createRoom(uniqueID string, e *entry) {
	defer close(e.ready)

	p.logger.Info().Str("unique_id", uniqueID).Msg("creating new room")

	upstream, err := p.dial(p.ctx, uniqueID)
	if err != nil {
		metrics.Upstream.ConnectFailed()

		e.err = err
		p.dropEntry(uniqueID, e)

		return
	}

	metrics.Upstream.ConnectSucceeded()

	e.room = New(uniqueID, upstream, p.logger)
	if p.recorder != nil {
		e.sessionID = p.recorder.RoomStarted(uniqueID)
	}
}

func (p *Pool) dropEntry(uniqueID string, e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rooms[uniqueID] == e {
		delete(p.rooms, uniqueID)
	}
}

// Leave detaches the client and cleans its room up when it became empty.
func (p *Pool) Leave(client *Client) {
	r := client.Room()

	r.Leave(client, false)

	p.logger.Info().
		Str("unique_id", r.UniqueID()).
		Str("client_id", client.ID()).
		Int("clients", r.ClientCount()).
		Msg("client left room")

	p.cleanUpRoom(r.UniqueID())
}

// cleanUpRoom kills and deletes the room when it has no clients.
func (p *Pool) cleanUpRoom(uniqueID string) {
	p.mu.Lock()
	e, ok := p.rooms[uniqueID]
	if !ok || e.room == nil {
		p.mu.Unlock()
		return
	}

	if e.room.ClientCount() > 0 {
		p.mu.Unlock()
		return
	}

	delete(p.rooms, uniqueID)
	p.mu.Unlock()

	p.logger.Info().Str("unique_id", uniqueID).Msg("deleting empty room")

	err := p.finishRoom(e)
	if err != nil {
		p.logger.Error().Err(err).Str("unique_id", uniqueID).Msg("failed to kill empty room")
	}
}

func (p *Pool) finishRoom(e *entry) error {
	err := e.room.Kill()

	metrics.Rooms.RoomClosed()

	if p.recorder != nil {
		p.recorder.RoomFinished(e.sessionID, e.room.UniqueID(), e.room.PeakClients(), e.room.EventsForwarded())
	}

	return err
}

func (p *Pool) sweepLoop() {
	p.sweep()

	t := time.NewTicker(p.cfg.CleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-t.C:
		}

		p.sweep()
	}
}

func (p *Pool) sweep() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.rooms))
	for id := range p.rooms {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.cleanUpRoom(id)
	}
}

// Snapshot returns a serializable preview of all open rooms.
func (p *Pool) Snapshot() map[string]Snapshot {
	p.mu.Lock()
	entries := make(map[string]*entry, len(p.rooms))
	for id, e := range p.rooms {
		entries[id] = e
	}
	p.mu.Unlock()

	snapshot := make(map[string]Snapshot, len(entries))
	for id, e := range entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.room == nil {
			continue
		}

		snapshot[id] = e.room.Snapshot()
	}

	return snapshot
}
