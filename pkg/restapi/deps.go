package restapi

import (
	"context"

	"github.com/isaackogan/TikTokLive-Server/internal/manager"
	"github.com/isaackogan/TikTokLive-Server/internal/room"
	"github.com/isaackogan/TikTokLive-Server/internal/roomsession"
)

type Manager interface {
	Join(ctx context.Context, accountName string, uniqueID string) (*room.Client, error)
	Leave(client *room.Client, accountName string)
	Stats() manager.Stats
}

type SessionGetter interface {
	Get(id string) (*roomsession.Session, error)
}
