package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) register(ctx context.Context, c *core.Client, cmd protocol.Register) {
	err := o.Accounts.Register(ctx, cmd.Identity, cmd.Secret)
	switch {
	case err == nil:
		log.Info().Str("module", "orch.account").Str("identity", string(cmd.Identity)).Msg("registered")
		o.reply(ctx, c, protocol.Result(protocol.CmdRegister, true, "Registration successful."))
	case errors.Is(err, core.ErrIdentityTaken):
		o.reply(ctx, c, protocol.Result(protocol.CmdRegister, false, "Username already exists."))
	default:
		log.Error().Err(err).Str("module", "orch.account").Str("identity", string(cmd.Identity)).Msg("register failed")
		o.reply(ctx, c, protocol.Result(protocol.CmdRegister, false, reasonInternal))
	}
}

func (o *Orchestrator) login(ctx context.Context, c *core.Client, cmd protocol.Login) {
	key := c.Conn.RemoteAddr().String()
	if !o.Limiter.Allow(key) {
		log.Warn().Str("module", "orch.account").Str("addr", key).Msg("login rate limited")
		o.reply(ctx, c, protocol.Result(protocol.CmdLogin, false, "Too many attempts."))
		return
	}

	ok, err := o.Accounts.Authenticate(ctx, cmd.Identity, cmd.Secret)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.account").Str("identity", string(cmd.Identity)).Msg("authenticate failed")
		o.reply(ctx, c, protocol.Result(protocol.CmdLogin, false, reasonInternal))
		return
	}
	if !ok {
		o.reply(ctx, c, protocol.Result(protocol.CmdLogin, false, "Invalid username or password."))
		return
	}
	o.Limiter.Reset(key)

	if c.LoggedIn() && c.Identity != cmd.Identity {
		o.Registry.Disconnect(ctx, c.Identity, c.Conn)
	}
	// Attached first: a failed reply then evicts the channel through the
	// send policy.
	c.Identity = cmd.Identity
	o.Registry.Attach(ctx, c)
	o.reply(ctx, c, protocol.Result(protocol.CmdLogin, true, "Login successful."))
}

func (o *Orchestrator) deleteUser(ctx context.Context, c *core.Client, cmd protocol.DeleteUser) {
	// The store drops friendships with the account; load them first for the
	// offline notice.
	friends, err := o.Friends.Friends(ctx, c.Identity)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.account").Str("identity", string(cmd.Identity)).Msg("load friends failed")
		o.reply(ctx, c, protocol.Result(protocol.CmdDeleteUser, false))
		return
	}
	ok, err := o.Accounts.Delete(ctx, cmd.Identity, cmd.Secret)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.account").Str("identity", string(cmd.Identity)).Msg("delete failed")
	}
	o.reply(ctx, c, protocol.Result(protocol.CmdDeleteUser, ok && err == nil))
	if !ok || err != nil {
		return
	}
	log.Info().Str("module", "orch.account").Str("identity", string(cmd.Identity)).Msg("deleted")
	id := c.Identity
	c.Identity = ""
	if o.Registry.Release(ctx, id, c.Conn) {
		o.Registry.Publish(ctx, friends, protocol.FriendOffline(id), id)
	}
}
