package app

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog/log"
)

// NotifyPresence tells every connected friend of id that id went online or
// offline. Failed channels are handled by the send policy.
func (r *Registry) NotifyPresence(ctx context.Context, id domain.Identity, online bool) core.PublishResult {
	friends, err := r.friends.Friends(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("identity", string(id)).
			Msg("failed to load friends")
		return core.PublishResult{}
	}

	frame := protocol.FriendOffline(id)
	if online {
		frame = protocol.FriendOnline(id)
	}
	return r.Publish(ctx, friends, frame, id)
}
