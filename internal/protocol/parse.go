package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Rendezvous/internal/domain"
)

const Sep = "|"

var (
	ErrEmptyCommand    = errors.New("empty command")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrArity           = errors.New("wrong number of fields")
	ErrInvalidPort     = domain.ErrInvalidPort
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidGroup    = errors.New("invalid group id")
)

// ParseError reports a frame that could not be turned into a Command.
// Fields holds the raw fields after the command name so callers can still
// address a reply (e.g. the callee of a malformed CALL_REQUEST).
type ParseError struct {
	Command string
	Fields  []string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Command == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reason is the human-readable text sent back in ERROR frames.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return "Unknown command."
	case errors.Is(err, ErrInvalidPort):
		return "Invalid port."
	case errors.Is(err, ErrInvalidIdentity):
		return "Invalid identity."
	case errors.Is(err, ErrInvalidGroup):
		return "Invalid group."
	default:
		return "Malformed command."
	}
}

type parseFunc func(f []string) (Command, error)

type grammar struct {
	// fields counts the command name too; it is also the SplitN bound.
	fields int
	parse  parseFunc
}

var grammars = map[string]grammar{
	CmdRegister: {3, func(f []string) (Command, error) {
		id, err := identity(f[0])
		return Register{Identity: id, Secret: f[1]}, err
	}},
	CmdLogin: {3, func(f []string) (Command, error) {
		id, err := identity(f[0])
		return Login{Identity: id, Secret: f[1]}, err
	}},
	CmdLogout: {1, func([]string) (Command, error) { return Logout{}, nil }},
	CmdPing:   {1, func([]string) (Command, error) { return Ping{}, nil }},
	CmdDeleteUser: {3, func(f []string) (Command, error) {
		id, err := identity(f[0])
		return DeleteUser{Identity: id, Secret: f[1]}, err
	}},
	CmdAddFriend: {3, func(f []string) (Command, error) {
		ids, err := identities(f[0], f[1])
		return AddFriend{Identity: ids[0], Friend: ids[1]}, err
	}},
	CmdDelFriend: {3, func(f []string) (Command, error) {
		ids, err := identities(f[0], f[1])
		return DelFriend{Identity: ids[0], Friend: ids[1]}, err
	}},
	CmdGetFriends: {2, func(f []string) (Command, error) {
		id, err := identity(f[0])
		return GetFriends{Identity: id}, err
	}},
	CmdMsg: {3, func(f []string) (Command, error) {
		to, err := identity(f[0])
		return DirectMessage{To: to, Body: f[1]}, err
	}},
	CmdEmoji: {3, func(f []string) (Command, error) {
		to, err := identity(f[0])
		return Emoji{To: to, EmojiID: f[1]}, err
	}},
	CmdPrivateHistory: {3, func(f []string) (Command, error) {
		ids, err := identities(f[0], f[1])
		return PrivateHistory{From: ids[0], To: ids[1]}, err
	}},
	CmdCreateGroup: {3, func(f []string) (Command, error) {
		id, err := identity(f[0])
		if err == nil && strings.TrimSpace(f[1]) == "" {
			err = ErrArity
		}
		return CreateGroup{Identity: id, Title: f[1]}, err
	}},
	CmdJoinGroup: {3, func(f []string) (Command, error) {
		id, err := identity(f[0])
		if err != nil {
			return nil, err
		}
		gid, err := group(f[1])
		return JoinGroup{Identity: id, Group: gid}, err
	}},
	CmdGetGroups: {2, func(f []string) (Command, error) {
		id, err := identity(f[0])
		return GetGroups{Identity: id}, err
	}},
	CmdGetGroupMembers: {2, func(f []string) (Command, error) {
		gid, err := group(f[0])
		return GetGroupMembers{Group: gid}, err
	}},
	CmdGroupMsg: {4, func(f []string) (Command, error) {
		gid, err := group(f[0])
		if err != nil {
			return nil, err
		}
		from, err := identity(f[1])
		return GroupMessage{Group: gid, From: from, Body: f[2]}, err
	}},
	CmdGroupMsgAnon: {4, func(f []string) (Command, error) {
		gid, err := group(f[0])
		if err == nil && (f[1] == "" || strings.ContainsAny(f[1], "\r\n")) {
			err = ErrArity
		}
		return GroupMessageAnon{Group: gid, Nick: f[1], Body: f[2]}, err
	}},
	CmdGroupHistory: {2, func(f []string) (Command, error) {
		gid, err := group(f[0])
		return GroupHistory{Group: gid}, err
	}},
	CmdCallRequest: {4, func(f []string) (Command, error) {
		ids, err := identities(f[0], f[1])
		if err != nil {
			return nil, err
		}
		p, err := domain.ParsePort(f[2])
		return CallRequest{From: ids[0], To: ids[1], Port: p}, err
	}},
	CmdCallAccept: {4, func(f []string) (Command, error) {
		ids, err := identities(f[0], f[1])
		if err != nil {
			return nil, err
		}
		p, err := domain.ParsePort(f[2])
		return CallAccept{From: ids[0], To: ids[1], Port: p}, err
	}},
	CmdCallReject: {3, func(f []string) (Command, error) {
		ids, err := identities(f[0], f[1])
		return CallReject{From: ids[0], To: ids[1]}, err
	}},
	CmdCallEnd: {3, func(f []string) (Command, error) {
		ids, err := identities(f[0], f[1])
		return CallEnd{From: ids[0], To: ids[1]}, err
	}},
	CmdPortUpdate: {3, func(f []string) (Command, error) {
		id, err := identity(f[0])
		if err != nil {
			return nil, err
		}
		p, err := domain.ParsePort(f[1])
		return PortUpdate{Identity: id, Port: p}, err
	}},
}

// Parse turns one control line (without its '\n') into a Command. Errors are
// always *ParseError.
func Parse(line string) (Command, error) {
	name, _, _ := strings.Cut(line, Sep)
	if name == "" {
		return nil, &ParseError{Err: ErrEmptyCommand}
	}
	g, ok := grammars[name]
	if !ok {
		return nil, &ParseError{Command: name, Err: ErrUnknownCommand}
	}
	parts := strings.SplitN(line, Sep, g.fields)
	fields := parts[1:]
	if len(parts) != g.fields {
		return nil, &ParseError{Command: name, Fields: fields, Err: ErrArity}
	}
	cmd, err := g.parse(fields)
	if err != nil {
		return nil, &ParseError{Command: name, Fields: fields, Err: err}
	}
	return cmd, nil
}

func identity(s string) (domain.Identity, error) {
	id, err := domain.ParseIdentity(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	return id, nil
}

func identities(a, b string) ([2]domain.Identity, error) {
	var out [2]domain.Identity
	var err error
	if out[0], err = identity(a); err != nil {
		return out, err
	}
	out[1], err = identity(b)
	return out, err
}

func group(s string) (domain.GroupID, error) {
	if s == "" || strings.ContainsAny(s, "|:\r\n") {
		return "", ErrInvalidGroup
	}
	return domain.GroupID(s), nil
}
