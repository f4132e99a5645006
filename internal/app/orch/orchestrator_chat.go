package orch

import (
	"context"
	"errors"
	"slices"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) addFriend(ctx context.Context, c *core.Client, cmd protocol.AddFriend) {
	err := o.Friends.AddFriend(ctx, c.Identity, cmd.Friend)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrSelfFriend):
		o.reply(ctx, c, protocol.Result(protocol.CmdAddFriend, false, "Cannot add yourself as a friend."))
		return
	case errors.Is(err, core.ErrUnknownIdentity):
		o.reply(ctx, c, protocol.Result(protocol.CmdAddFriend, false, "User does not exist."))
		return
	case errors.Is(err, core.ErrAlreadyFriends):
		o.reply(ctx, c, protocol.Result(protocol.CmdAddFriend, false, "Already friends."))
		return
	default:
		log.Error().Err(err).Str("module", "orch.chat").Str("identity", string(c.Identity)).Msg("add friend failed")
		o.reply(ctx, c, protocol.Result(protocol.CmdAddFriend, false, reasonInternal))
		return
	}

	o.reply(ctx, c, protocol.Result(protocol.CmdAddFriend, true, "Friend added."))
	if err := o.Registry.Send(ctx, cmd.Friend, protocol.FriendOnline(c.Identity)); err == nil {
		o.reply(ctx, c, protocol.FriendOnline(cmd.Friend))
	}
}

func (o *Orchestrator) delFriend(ctx context.Context, c *core.Client, cmd protocol.DelFriend) {
	ok, err := o.Friends.RemoveFriend(ctx, c.Identity, cmd.Friend)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.chat").Str("identity", string(c.Identity)).Msg("remove friend failed")
		o.reply(ctx, c, protocol.Result(protocol.CmdDelFriend, false, reasonInternal))
		return
	}
	if !ok {
		o.reply(ctx, c, protocol.Result(protocol.CmdDelFriend, false, "Not friends."))
		return
	}
	o.reply(ctx, c, protocol.Result(protocol.CmdDelFriend, true, "Friend deleted."))
}

func (o *Orchestrator) getFriends(ctx context.Context, c *core.Client) {
	friends, err := o.Friends.Friends(ctx, c.Identity)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.chat").Str("identity", string(c.Identity)).Msg("load friends failed")
		o.reply(ctx, c, protocol.Error(reasonInternal))
		return
	}
	o.reply(ctx, c, protocol.FriendList(friends, o.Registry.IsOnline))
}

// directMessage relays MSG and EMOJI. stored is what goes into history.
func (o *Orchestrator) directMessage(ctx context.Context, c *core.Client, to domain.Identity, name, payload, stored string) {
	ok, err := core.IsFriend(ctx, o.Friends, c.Identity, to)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.chat").Str("identity", string(c.Identity)).Msg("friend lookup failed")
		o.reply(ctx, c, protocol.Error(reasonInternal))
		return
	}
	if !ok {
		o.reply(ctx, c, protocol.Error("You are not friends with "+string(to)+"."))
		return
	}

	if err := o.History.SaveDirectMessage(ctx, c.Identity, to, stored); err != nil {
		log.Error().Err(err).Str("module", "orch.chat").Str("identity", string(c.Identity)).Msg("save message failed")
	}
	if err := o.Registry.Send(ctx, to, protocol.Encode(name, string(c.Identity), payload)); err != nil {
		o.reply(ctx, c, protocol.Error("User "+string(to)+" not online."))
	}
}

func (o *Orchestrator) privateHistory(ctx context.Context, c *core.Client, with domain.Identity) {
	ok, err := core.IsFriend(ctx, o.Friends, c.Identity, with)
	if err == nil && !ok {
		o.reply(ctx, c, protocol.PrivateHistoryError("Not friends."))
		return
	}
	var msgs []domain.Message
	if err == nil {
		msgs, err = o.History.DirectHistory(ctx, c.Identity, with, o.historyLimit())
	}
	if err != nil {
		log.Error().Err(err).Str("module", "orch.chat").Str("identity", string(c.Identity)).Msg("load history failed")
		o.reply(ctx, c, protocol.PrivateHistoryError("Failed to load history."))
		return
	}
	o.reply(ctx, c, protocol.PrivateHistoryFrame(msgs))
}

func (o *Orchestrator) createGroup(ctx context.Context, c *core.Client, cmd protocol.CreateGroup) {
	gid, err := o.Groups.CreateGroup(ctx, cmd.Title)
	switch {
	case errors.Is(err, core.ErrGroupExists):
		o.reply(ctx, c, protocol.Result(protocol.CmdCreateGroup, false, "Group name exists.", string(gid)))
		return
	case err != nil:
		log.Error().Err(err).Str("module", "orch.group").Str("identity", string(c.Identity)).Msg("create group failed")
		o.reply(ctx, c, protocol.Result(protocol.CmdCreateGroup, false, reasonInternal, ""))
		return
	}
	if err := o.Groups.JoinGroup(ctx, gid, c.Identity); err != nil {
		log.Error().Err(err).Str("module", "orch.group").Str("group", string(gid)).Msg("creator join failed")
	}
	log.Info().Str("module", "orch.group").Str("identity", string(c.Identity)).Str("group", string(gid)).Msg("group created")
	o.reply(ctx, c, protocol.Result(protocol.CmdCreateGroup, true, "Group created.", string(gid)))
}

func (o *Orchestrator) joinGroup(ctx context.Context, c *core.Client, cmd protocol.JoinGroup) {
	err := o.Groups.JoinGroup(ctx, cmd.Group, c.Identity)
	switch {
	case err == nil:
		o.reply(ctx, c, protocol.Result(protocol.CmdJoinGroup, true, "Joined group.", string(cmd.Group)))
	case errors.Is(err, core.ErrUnknownGroup):
		o.reply(ctx, c, protocol.Result(protocol.CmdJoinGroup, false, "Unknown group.", string(cmd.Group)))
	default:
		log.Error().Err(err).Str("module", "orch.group").Str("group", string(cmd.Group)).Msg("join failed")
		o.reply(ctx, c, protocol.Result(protocol.CmdJoinGroup, false, reasonInternal, string(cmd.Group)))
	}
}

func (o *Orchestrator) getGroups(ctx context.Context, c *core.Client) {
	groups, err := o.Groups.GroupsOf(ctx, c.Identity)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.group").Str("identity", string(c.Identity)).Msg("load groups failed")
		o.reply(ctx, c, protocol.Error(reasonInternal))
		return
	}
	o.reply(ctx, c, protocol.GroupList(groups))
}

func (o *Orchestrator) getGroupMembers(ctx context.Context, c *core.Client, gid domain.GroupID) {
	members, err := o.Groups.Members(ctx, gid)
	if err != nil && !errors.Is(err, core.ErrUnknownGroup) {
		log.Error().Err(err).Str("module", "orch.group").Str("group", string(gid)).Msg("load members failed")
		o.reply(ctx, c, protocol.Error(reasonInternal))
		return
	}
	o.reply(ctx, c, protocol.GroupMembers(members))
}

// membership loads the members of gid and replies with an error unless c is
// one of them.
func (o *Orchestrator) membership(ctx context.Context, c *core.Client, gid domain.GroupID) ([]domain.Identity, bool) {
	members, err := o.Groups.Members(ctx, gid)
	switch {
	case errors.Is(err, core.ErrUnknownGroup):
		o.reply(ctx, c, protocol.Error("Unknown group."))
		return nil, false
	case err != nil:
		log.Error().Err(err).Str("module", "orch.group").Str("group", string(gid)).Msg("load members failed")
		o.reply(ctx, c, protocol.Error(reasonInternal))
		return nil, false
	case !slices.Contains(members, c.Identity):
		o.reply(ctx, c, protocol.Error("Not a member of group "+string(gid)+"."))
		return nil, false
	}
	return members, true
}

// groupMessage stores msg and fans it out to every online member, the
// sender included.
func (o *Orchestrator) groupMessage(ctx context.Context, c *core.Client, gid domain.GroupID, msg domain.Message) {
	members, ok := o.membership(ctx, c, gid)
	if !ok {
		return
	}
	if err := o.History.SaveGroupMessage(ctx, gid, msg); err != nil {
		log.Error().Err(err).Str("module", "orch.group").Str("group", string(gid)).Msg("save group message failed")
	}

	name := protocol.CmdGroupMsg
	if msg.Kind == domain.MessageAnon {
		name = protocol.CmdGroupMsgAnon
	}
	res := o.Registry.Publish(ctx, members, protocol.Encode(name, string(gid), msg.Sender, msg.Body), "")
	log.Debug().Str("module", "orch.group").Str("group", string(gid)).Int("sent", res.SendTo).
		Int("dropped", len(res.Dropped)).Msg("group message fan-out")
}

func (o *Orchestrator) groupHistory(ctx context.Context, c *core.Client, gid domain.GroupID) {
	if _, ok := o.membership(ctx, c, gid); !ok {
		return
	}
	msgs, err := o.History.GroupHistory(ctx, gid, o.historyLimit())
	if err != nil {
		log.Error().Err(err).Str("module", "orch.group").Str("group", string(gid)).Msg("load group history failed")
		o.reply(ctx, c, protocol.Error(reasonInternal))
		return
	}
	o.reply(ctx, c, protocol.GroupHistoryFrame(msgs))
}
