// Package orch turns parsed control commands into registry, signaling and
// store operations for one client at a time.
package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog/log"
)

const DefaultHistoryLimit = 200

const (
	reasonNotLoggedIn = "Not logged in."
	reasonMismatch    = "Identity mismatch."
	reasonInternal    = "Internal error."
)

type Orchestrator struct {
	Registry *app.Registry
	Accounts core.Accounts
	Friends  core.Friendships
	Groups   core.Groups
	History  core.History
	Limiter  *LoginLimiter

	HistoryLimit int
}

// OnFrame handles one control line from c. It returns false when the client
// asked to log out and the connection should be closed.
func (o *Orchestrator) OnFrame(ctx context.Context, c *core.Client, line string) bool {
	cmd, err := protocol.Parse(line)
	if err != nil {
		o.onParseError(ctx, c, err)
		return true
	}

	switch cmd.(type) {
	case protocol.Register, protocol.Login, protocol.Ping, protocol.Logout:
	default:
		if !c.LoggedIn() {
			o.reply(ctx, c, protocol.Error(reasonNotLoggedIn))
			return true
		}
	}
	if claimed, ok := claimedIdentity(cmd); ok && claimed != c.Identity {
		log.Warn().Str("module", "orch").Str("identity", string(c.Identity)).
			Str("claimed", string(claimed)).Str("cmd", cmd.Name()).Msg("identity mismatch")
		if req, ok := cmd.(protocol.CallRequest); ok {
			o.reply(ctx, c, protocol.CallResponse(protocol.RespError, req.To, reasonMismatch))
		} else {
			o.reply(ctx, c, protocol.Error(reasonMismatch))
		}
		return true
	}

	switch cmd := cmd.(type) {
	case protocol.Ping:
		o.reply(ctx, c, protocol.Pong())
	case protocol.Logout:
		return false
	case protocol.Register:
		o.register(ctx, c, cmd)
	case protocol.Login:
		o.login(ctx, c, cmd)
	case protocol.DeleteUser:
		o.deleteUser(ctx, c, cmd)
	case protocol.AddFriend:
		o.addFriend(ctx, c, cmd)
	case protocol.DelFriend:
		o.delFriend(ctx, c, cmd)
	case protocol.GetFriends:
		o.getFriends(ctx, c)
	case protocol.DirectMessage:
		o.directMessage(ctx, c, cmd.To, protocol.CmdMsg, cmd.Body, cmd.Body)
	case protocol.Emoji:
		o.directMessage(ctx, c, cmd.To, protocol.CmdEmoji, cmd.EmojiID, "[EMOJI]"+cmd.EmojiID)
	case protocol.PrivateHistory:
		o.privateHistory(ctx, c, cmd.To)
	case protocol.CreateGroup:
		o.createGroup(ctx, c, cmd)
	case protocol.JoinGroup:
		o.joinGroup(ctx, c, cmd)
	case protocol.GetGroups:
		o.getGroups(ctx, c)
	case protocol.GetGroupMembers:
		o.getGroupMembers(ctx, c, cmd.Group)
	case protocol.GroupMessage:
		o.groupMessage(ctx, c, cmd.Group, domain.Message{Kind: domain.MessageUser, Sender: string(c.Identity), Body: cmd.Body})
	case protocol.GroupMessageAnon:
		o.groupMessage(ctx, c, cmd.Group, domain.Message{Kind: domain.MessageAnon, Sender: cmd.Nick, Body: cmd.Body})
	case protocol.GroupHistory:
		o.groupHistory(ctx, c, cmd.Group)
	case protocol.CallRequest:
		o.Registry.CallRequest(ctx, c, cmd.To, cmd.Port)
	case protocol.CallAccept:
		o.Registry.CallAccept(ctx, c, cmd.To, cmd.Port)
	case protocol.CallReject:
		o.Registry.CallReject(ctx, c, cmd.To)
	case protocol.CallEnd:
		o.Registry.CallEnd(ctx, c, cmd.To)
	case protocol.PortUpdate:
		o.Registry.UpdateAddress(c.Identity, c.Conn.RemoteAddr(), cmd.Port)
	}
	return true
}

// OnDisconnect releases everything the client held.
func (o *Orchestrator) OnDisconnect(ctx context.Context, c *core.Client) {
	if !c.LoggedIn() {
		return
	}
	o.Registry.Disconnect(ctx, c.Identity, c.Conn)
}

func (o *Orchestrator) onParseError(ctx context.Context, c *core.Client, err error) {
	var pe *protocol.ParseError
	if !errors.As(err, &pe) {
		o.reply(ctx, c, protocol.Error(protocol.Reason(err)))
		return
	}
	logger := log.Warn().Err(err).Str("module", "orch").Str("conn", c.Conn.ID())
	switch {
	case errors.Is(err, protocol.ErrEmptyCommand):
		log.Debug().Str("module", "orch").Str("conn", c.Conn.ID()).Msg("skipped empty frame")
	case pe.Command == protocol.CmdCallRequest && len(pe.Fields) >= 2 && pe.Fields[1] != "":
		logger.Msg("malformed call request")
		if c.LoggedIn() {
			o.reply(ctx, c, protocol.CallResponse(protocol.RespError, domain.Identity(pe.Fields[1]), protocol.Reason(err)))
		} else {
			o.reply(ctx, c, protocol.Error(reasonNotLoggedIn))
		}
	default:
		logger.Msg("malformed frame")
		o.reply(ctx, c, protocol.Error(protocol.Reason(err)))
	}
}

func (o *Orchestrator) reply(ctx context.Context, c *core.Client, f core.Frame) {
	o.Registry.Reply(ctx, c, f)
}

func (o *Orchestrator) historyLimit() int {
	if o.HistoryLimit > 0 {
		return o.HistoryLimit
	}
	return DefaultHistoryLimit
}

// claimedIdentity returns the sender identity a command names on the wire.
func claimedIdentity(cmd protocol.Command) (domain.Identity, bool) {
	switch c := cmd.(type) {
	case protocol.DeleteUser:
		return c.Identity, true
	case protocol.AddFriend:
		return c.Identity, true
	case protocol.DelFriend:
		return c.Identity, true
	case protocol.GetFriends:
		return c.Identity, true
	case protocol.PrivateHistory:
		return c.From, true
	case protocol.CreateGroup:
		return c.Identity, true
	case protocol.JoinGroup:
		return c.Identity, true
	case protocol.GetGroups:
		return c.Identity, true
	case protocol.GroupMessage:
		return c.From, true
	case protocol.CallRequest:
		return c.From, true
	case protocol.CallAccept:
		return c.From, true
	case protocol.CallReject:
		return c.From, true
	case protocol.CallEnd:
		return c.From, true
	case protocol.PortUpdate:
		return c.Identity, true
	}
	return "", false
}
