package protocol

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

// Server to client frame names.
const (
	FrameCallIncoming  = "CALL_INCOMING"
	FrameCallAccepted  = "CALL_ACCEPTED"
	FrameCallRejected  = "CALL_REJECTED"
	FrameCallEnded     = "CALL_ENDED"
	FrameCallResponse  = "CALL_RESPONSE"
	FrameForceLogout   = "FORCE_LOGOUT"
	FrameFriendOnline  = "FRIEND_ONLINE"
	FrameFriendOffline = "FRIEND_OFFLINE"
	FrameFriendList    = "FRIEND_LIST"
	FrameError         = "ERROR"
	FramePong          = "PONG"
	FramePrivateHist   = "PRIVATE_HISTORY"
	FrameGroupList     = "GROUP_LIST"
	FrameGroupMembers  = "GROUP_MEMBERS"
	FrameGroupHistory  = "GROUP_HISTORY"
)

// ResponseCode is the second field of CALL_RESPONSE.
type ResponseCode string

const (
	RespSending ResponseCode = "SENDING"
	RespBusy    ResponseCode = "BUSY"
	RespOffline ResponseCode = "OFFLINE"
	RespError   ResponseCode = "ERROR"
)

var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// Encode joins fields into one frame. Line breaks inside a field would split
// the frame on the receiving side, so they are replaced by spaces.
func Encode(fields ...string) core.Frame {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString(Sep)
		}
		b.WriteString(lineBreaks.Replace(f))
	}
	b.WriteByte('\n')
	return core.Frame(b.String())
}

// EncodeCommand renders a client command, mainly for clients and tests.
func EncodeCommand(c Command) core.Frame {
	return Encode(append([]string{c.Name()}, c.Fields()...)...)
}

func endpoint(ep netip.AddrPort) (string, string) {
	return ep.Addr().Unmap().String(), strconv.Itoa(int(ep.Port()))
}

func CallIncoming(from domain.Identity, ep netip.AddrPort) core.Frame {
	addr, p := endpoint(ep)
	return Encode(FrameCallIncoming, string(from), addr, p)
}

func CallAccepted(from domain.Identity, ep netip.AddrPort) core.Frame {
	addr, p := endpoint(ep)
	return Encode(FrameCallAccepted, string(from), addr, p)
}

func CallRejected(from domain.Identity) core.Frame {
	return Encode(FrameCallRejected, string(from))
}

func CallEnded(from domain.Identity) core.Frame {
	return Encode(FrameCallEnded, string(from))
}

// CallResponse is CALL_RESPONSE|code|to, with a reason for RespError.
func CallResponse(code ResponseCode, to domain.Identity, reason string) core.Frame {
	if reason == "" {
		return Encode(FrameCallResponse, string(code), string(to))
	}
	return Encode(FrameCallResponse, string(code), string(to), reason)
}

func ForceLogout(reason string) core.Frame {
	return Encode(FrameForceLogout, reason)
}

func FriendOnline(id domain.Identity) core.Frame {
	return Encode(FrameFriendOnline, string(id))
}

func FriendOffline(id domain.Identity) core.Frame {
	return Encode(FrameFriendOffline, string(id))
}

func Error(reason string) core.Frame {
	return Encode(FrameError, reason)
}

func Pong() core.Frame {
	return Encode(FramePong)
}

// Result renders the <CMD>_RESULT|OK|... / <CMD>_RESULT|FAIL|... replies.
func Result(cmd string, ok bool, extra ...string) core.Frame {
	status := "FAIL"
	if ok {
		status = "OK"
	}
	return Encode(append([]string{cmd + "_RESULT", status}, extra...)...)
}

// FriendList renders FRIEND_LIST|name:online|name:offline...
func FriendList(friends []domain.Identity, online func(domain.Identity) bool) core.Frame {
	fields := make([]string, 0, len(friends)+1)
	fields = append(fields, FrameFriendList)
	for _, f := range friends {
		status := "offline"
		if online(f) {
			status = "online"
		}
		fields = append(fields, string(f)+":"+status)
	}
	return Encode(fields...)
}

func PrivateHistoryFrame(msgs []domain.Message) core.Frame {
	fields := make([]string, 0, 2*len(msgs)+1)
	fields = append(fields, FramePrivateHist)
	for _, m := range msgs {
		fields = append(fields, m.Sender, m.Body)
	}
	return Encode(fields...)
}

func PrivateHistoryError(reason string) core.Frame {
	return Encode(FramePrivateHist, "error", reason)
}

func GroupList(groups []domain.Group) core.Frame {
	fields := make([]string, 0, len(groups)+1)
	fields = append(fields, FrameGroupList)
	for _, g := range groups {
		fields = append(fields, string(g.ID)+":"+g.Name)
	}
	return Encode(fields...)
}

func GroupMembers(members []domain.Identity) core.Frame {
	fields := make([]string, 0, len(members)+1)
	fields = append(fields, FrameGroupMembers)
	for _, m := range members {
		fields = append(fields, string(m))
	}
	return Encode(fields...)
}

func GroupHistoryFrame(msgs []domain.Message) core.Frame {
	fields := make([]string, 0, 3*len(msgs)+1)
	fields = append(fields, FrameGroupHistory)
	for _, m := range msgs {
		fields = append(fields, string(m.Kind), m.Sender, m.Body)
	}
	return Encode(fields...)
}
