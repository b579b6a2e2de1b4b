package relay

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/codecollab-io/codecollab/internal/types"
	"github.com/teris-io/shortid"
)

// maxChatRunes bounds the body of a single chat message.
const maxChatRunes = 500

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is an inbound event. Exactly one variant must be set;
// anything else is rejected at the boundary before it reaches a room.
type ClientMessage struct {
	BaseMessage
	Join   *Join   `json:"join,omitempty"`
	Sync   *Sync   `json:"sync,omitempty"`
	Edit   *Edit   `json:"edit,omitempty"`
	Chat   *Chat   `json:"chat,omitempty"`
	Typing *Typing `json:"typing,omitempty"`
	client *Client
}

type Join struct {
	RoomId string `json:"room_id"`
	// Username is advisory and ignored; attribution always uses the
	// identity verified at connect time.
	Username string `json:"username,omitempty"`
}

// Sync carries a document snapshot addressed to a single newcomer's
// connection. It is never broadcast.
type Sync struct {
	TargetId string `json:"target_id"`
	Code     string `json:"code"`
}

type Edit struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

type Chat struct {
	RoomId       string `json:"room_id"`
	Message      string `json:"message"`
	OptimisticId string `json:"optimistic_id,omitempty"`
}

type Typing struct {
	RoomId   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

func (m *ClientMessage) validate() error {
	var set int
	if m.Join != nil {
		set++
		if m.Join.RoomId == "" {
			return errors.New("join: room_id is required")
		}
	}
	if m.Sync != nil {
		set++
		if m.Sync.TargetId == "" {
			return errors.New("sync: target_id is required")
		}
	}
	if m.Edit != nil {
		set++
		if m.Edit.RoomId == "" {
			return errors.New("edit: room_id is required")
		}
	}
	if m.Chat != nil {
		set++
		if m.Chat.RoomId == "" {
			return errors.New("chat: room_id is required")
		}
		if m.Chat.Message == "" {
			return errors.New("chat: message is required")
		}
		if utf8.RuneCountInString(m.Chat.Message) > maxChatRunes {
			return fmt.Errorf("chat: message exceeds %d characters", maxChatRunes)
		}
	}
	if m.Typing != nil {
		set++
		if m.Typing.RoomId == "" {
			return errors.New("typing: room_id is required")
		}
	}

	if set != 1 {
		return errors.New("exactly one event must be set")
	}
	return nil
}

// roomId returns the room the message is addressed to, if any.
func (m *ClientMessage) roomId() string {
	switch {
	case m.Edit != nil:
		return m.Edit.RoomId
	case m.Chat != nil:
		return m.Chat.RoomId
	case m.Typing != nil:
		return m.Typing.RoomId
	case m.Join != nil:
		return m.Join.RoomId
	}
	return ""
}

type ServerMessage struct {
	BaseMessage
	Response   *Response          `json:"response,omitempty"`
	Joined     *Joined            `json:"joined,omitempty"`
	Chat       *types.ChatMessage `json:"chat,omitempty"`
	Edit       *EditEvent         `json:"edit,omitempty"`
	Typing     *TypingEvent       `json:"typing,omitempty"`
	MemberLeft *MemberLeft        `json:"member_left,omitempty"`
}

// Joined is pushed to every member after a join. Members is a snapshot
// consistent with the registry at the instant of the join; Username and
// ConnectionId identify the joiner so existing members can address a
// document sync to it.
type Joined struct {
	RoomId       string         `json:"room_id"`
	Members      []types.Member `json:"members"`
	Username     string         `json:"username"`
	ConnectionId string         `json:"connection_id"`
}

type EditEvent struct {
	RoomId  string `json:"room_id,omitempty"`
	Content string `json:"content"`
}

type TypingEvent struct {
	RoomId   string `json:"room_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// MemberLeft carries the departed connection so clients can prune their
// member lists, plus a refreshed snapshot of the remaining membership.
type MemberLeft struct {
	RoomId       string         `json:"room_id"`
	ConnectionId string         `json:"connection_id"`
	Username     string         `json:"username"`
	Members      []types.Member `json:"members"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

// helloMessage tells a freshly admitted session its connection id and the
// identity bound to it.
func helloMessage(connectionId, username string) *ServerMessage {
	return NoErrOK(0, map[string]any{
		"connection_id": connectionId,
		"username":      username,
	})
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrBadRequest(id int, reason string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        reason,
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

// newMessageId assigns ids to server-constructed messages. Client-supplied
// optimistic ids take precedence where present.
func newMessageId() string {
	return shortid.MustGenerate()
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
