package protocol

import (
	"strconv"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// Client to server command names.
const (
	CmdRegister        = "REGISTER"
	CmdLogin           = "LOGIN"
	CmdLogout          = "LOGOUT"
	CmdPing            = "PING"
	CmdDeleteUser      = "DELETE_USER"
	CmdAddFriend       = "ADD_FRIEND"
	CmdDelFriend       = "DEL_FRIEND"
	CmdGetFriends      = "GET_FRIENDS"
	CmdMsg             = "MSG"
	CmdEmoji           = "EMOJI"
	CmdPrivateHistory  = "GET_PRIVATE_HISTORY"
	CmdCreateGroup     = "CREATE_GROUP"
	CmdJoinGroup       = "JOIN_GROUP"
	CmdGetGroups       = "GET_GROUPS"
	CmdGetGroupMembers = "GET_GROUP_MEMBERS"
	CmdGroupMsg        = "GROUP_MSG"
	CmdGroupMsgAnon    = "GROUP_MSG_ANON"
	CmdGroupHistory    = "GET_GROUP_HISTORY"
	CmdCallRequest     = "CALL_REQUEST"
	CmdCallAccept      = "CALL_ACCEPT"
	CmdCallReject      = "CALL_REJECT"
	CmdCallEnd         = "CALL_END"
	CmdPortUpdate      = "UDP_PORT_UPDATE"
)

// Command is one parsed client frame. The concrete types below form a closed
// set; Parse is the only producer.
type Command interface {
	Name() string
	// Fields returns the wire fields after the command name.
	Fields() []string
}

type Register struct {
	Identity domain.Identity
	Secret   string
}

type Login struct {
	Identity domain.Identity
	Secret   string
}

type Logout struct{}

type Ping struct{}

type DeleteUser struct {
	Identity domain.Identity
	Secret   string
}

type AddFriend struct {
	Identity domain.Identity
	Friend   domain.Identity
}

type DelFriend struct {
	Identity domain.Identity
	Friend   domain.Identity
}

type GetFriends struct {
	Identity domain.Identity
}

// DirectMessage is MSG|to|body. The sender is the authenticated client.
type DirectMessage struct {
	To   domain.Identity
	Body string
}

type Emoji struct {
	To      domain.Identity
	EmojiID string
}

type PrivateHistory struct {
	From domain.Identity
	To   domain.Identity
}

type CreateGroup struct {
	Identity domain.Identity
	Title    string
}

type JoinGroup struct {
	Identity domain.Identity
	Group    domain.GroupID
}

type GetGroups struct {
	Identity domain.Identity
}

type GetGroupMembers struct {
	Group domain.GroupID
}

type GroupMessage struct {
	Group domain.GroupID
	From  domain.Identity
	Body  string
}

type GroupMessageAnon struct {
	Group domain.GroupID
	Nick  string
	Body  string
}

type GroupHistory struct {
	Group domain.GroupID
}

type CallRequest struct {
	From domain.Identity
	To   domain.Identity
	Port uint16
}

type CallAccept struct {
	From domain.Identity
	To   domain.Identity
	Port uint16
}

type CallReject struct {
	From domain.Identity
	To   domain.Identity
}

type CallEnd struct {
	From domain.Identity
	To   domain.Identity
}

type PortUpdate struct {
	Identity domain.Identity
	Port     uint16
}

func port(p uint16) string { return strconv.Itoa(int(p)) }

func (Register) Name() string { return CmdRegister }
func (c Register) Fields() []string { return []string{string(c.Identity), c.Secret} }
func (Login) Name() string { return CmdLogin }
func (c Login) Fields() []string { return []string{string(c.Identity), c.Secret} }
func (Logout) Name() string { return CmdLogout }
func (Logout) Fields() []string { return nil }
func (Ping) Name() string { return CmdPing }
func (Ping) Fields() []string { return nil }
func (DeleteUser) Name() string { return CmdDeleteUser }
func (c DeleteUser) Fields() []string { return []string{string(c.Identity), c.Secret} }
func (AddFriend) Name() string { return CmdAddFriend }
func (c AddFriend) Fields() []string { return []string{string(c.Identity), string(c.Friend)} }
func (DelFriend) Name() string { return CmdDelFriend }
func (c DelFriend) Fields() []string { return []string{string(c.Identity), string(c.Friend)} }
func (GetFriends) Name() string { return CmdGetFriends }
func (c GetFriends) Fields() []string { return []string{string(c.Identity)} }
func (DirectMessage) Name() string { return CmdMsg }
func (c DirectMessage) Fields() []string { return []string{string(c.To), c.Body} }
func (Emoji) Name() string { return CmdEmoji }
func (c Emoji) Fields() []string { return []string{string(c.To), c.EmojiID} }
func (PrivateHistory) Name() string { return CmdPrivateHistory }
func (c PrivateHistory) Fields() []string {
	return []string{string(c.From), string(c.To)}
}
func (CreateGroup) Name() string { return CmdCreateGroup }
func (c CreateGroup) Fields() []string { return []string{string(c.Identity), c.Title} }
func (JoinGroup) Name() string { return CmdJoinGroup }
func (c JoinGroup) Fields() []string { return []string{string(c.Identity), string(c.Group)} }
func (GetGroups) Name() string { return CmdGetGroups }
func (c GetGroups) Fields() []string { return []string{string(c.Identity)} }
func (GetGroupMembers) Name() string { return CmdGetGroupMembers }
func (c GetGroupMembers) Fields() []string {
	return []string{string(c.Group)}
}
func (GroupMessage) Name() string { return CmdGroupMsg }
func (c GroupMessage) Fields() []string {
	return []string{string(c.Group), string(c.From), c.Body}
}
func (GroupMessageAnon) Name() string { return CmdGroupMsgAnon }
func (c GroupMessageAnon) Fields() []string {
	return []string{string(c.Group), c.Nick, c.Body}
}
func (GroupHistory) Name() string { return CmdGroupHistory }
func (c GroupHistory) Fields() []string { return []string{string(c.Group)} }
func (CallRequest) Name() string { return CmdCallRequest }
func (c CallRequest) Fields() []string {
	return []string{string(c.From), string(c.To), port(c.Port)}
}
func (CallAccept) Name() string { return CmdCallAccept }
func (c CallAccept) Fields() []string {
	return []string{string(c.From), string(c.To), port(c.Port)}
}
func (CallReject) Name() string { return CmdCallReject }
func (c CallReject) Fields() []string { return []string{string(c.From), string(c.To)} }
func (CallEnd) Name() string { return CmdCallEnd }
func (c CallEnd) Fields() []string { return []string{string(c.From), string(c.To)} }
func (PortUpdate) Name() string { return CmdPortUpdate }
func (c PortUpdate) Fields() []string { return []string{string(c.Identity), port(c.Port)} }
