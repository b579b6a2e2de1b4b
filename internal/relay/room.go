package relay

import (
	"fmt"
	"log"

	"github.com/codecollab-io/codecollab/internal/stats"
	"github.com/codecollab-io/codecollab/internal/types"
)

// Room serializes all membership, typing and broadcast work for one room
// id on a single goroutine, so interleaved joins and leaves can never
// produce a member-list snapshot that disagrees with the membership at
// the instant it was taken.
type Room struct {
	id        string
	rs        *RelayServer
	inbound   chan *ClientMessage
	leaveChan chan *leaveRequest
	members   map[*Client]struct{}
	typing    map[string]struct{}
	log       *log.Logger
	// exit is closed by the relay server to tear the room down
	exit chan struct{}
	done chan struct{}
	// pending collects joins that raced into inbound while the room was
	// exiting; the relay server replays them after done is closed
	pending []*ClientMessage
}

type leaveRequest struct {
	client *Client
}

func newRoom(id string, rs *RelayServer) *Room {
	return &Room{
		id:        id,
		rs:        rs,
		inbound:   make(chan *ClientMessage, 256),
		leaveChan: make(chan *leaveRequest, 256),
		members:   make(map[*Client]struct{}),
		typing:    make(map[string]struct{}),
		log:       rs.log,
		exit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (r *Room) run() {
	r.log.Printf("starting room %q", r.id)

	for {
		select {
		case msg := <-r.inbound:
			switch {
			case msg.Join != nil:
				r.handleJoin(msg)
			case msg.Edit != nil:
				r.handleEdit(msg)
			case msg.Chat != nil:
				r.handleChat(msg)
			case msg.Typing != nil:
				r.handleTyping(msg)
			}
		case req := <-r.leaveChan:
			r.handleLeave(req)
		case <-r.exit:
			r.handleExit()
			return
		}
	}
}

func (r *Room) handleJoin(msg *ClientMessage) {
	c := msg.client

	if _, ok := r.members[c]; ok {
		// rejoining is idempotent: re-send the member list to the
		// caller only, no notifications
		c.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Id: msg.Id, Timestamp: Now()},
			Joined: &Joined{
				RoomId:       r.id,
				Members:      r.memberList(),
				Username:     c.user.Username,
				ConnectionId: c.id,
			},
		})
		return
	}

	r.members[c] = struct{}{}
	c.addRoom(r)
	r.log.Printf("%q joined room %q (%d members)", c.user.Username, r.id, len(r.members))

	r.broadcast(&ServerMessage{
		Chat: r.notification(fmt.Sprintf("%s joined the room", c.user.Username)),
	}, nil)

	members := r.memberList()
	r.broadcast(&ServerMessage{
		Joined: &Joined{
			RoomId:       r.id,
			Members:      members,
			Username:     c.user.Username,
			ConnectionId: c.id,
		},
	}, nil)
}

func (r *Room) handleEdit(msg *ClientMessage) {
	c := msg.client
	if _, ok := r.members[c]; !ok {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	r.broadcast(&ServerMessage{
		Edit: &EditEvent{
			RoomId:  r.id,
			Content: msg.Edit.Content,
		},
	}, c)

	r.rs.stats.Incr(stats.EditsRelayed)
}

func (r *Room) handleChat(msg *ClientMessage) {
	c := msg.client
	if _, ok := r.members[c]; !ok {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	id := msg.Chat.OptimisticId
	if id == "" {
		id = newMessageId()
	}

	// identity comes from the session, never from the payload
	chat := &types.ChatMessage{
		Id:        id,
		RoomId:    r.id,
		Username:  c.user.Username,
		Message:   msg.Chat.Message,
		Kind:      types.MessageKind,
		Timestamp: Now(),
	}

	// the sender is included so its optimistic entry gets confirmed
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Id: msg.Id},
		Chat:        chat,
	}, nil)

	r.rs.stats.Incr(stats.MessagesRelayed)
}

func (r *Room) handleTyping(msg *ClientMessage) {
	c := msg.client
	if _, ok := r.members[c]; !ok {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	if msg.Typing.IsTyping {
		r.typing[c.user.Username] = struct{}{}
	} else {
		delete(r.typing, c.user.Username)
	}

	r.broadcast(&ServerMessage{
		Typing: &TypingEvent{
			RoomId:   r.id,
			Username: c.user.Username,
			IsTyping: msg.Typing.IsTyping,
		},
	}, c)
}

func (r *Room) handleLeave(req *leaveRequest) {
	c := req.client
	if _, ok := r.members[c]; !ok {
		return
	}

	delete(r.members, c)
	c.delRoom(r.id)
	r.log.Printf("%q left room %q (%d members)", c.user.Username, r.id, len(r.members))

	// purge the typing set once the identity has no session left in the
	// room, even though no stop event was ever sent
	if !r.identityPresent(c.user.Username) {
		if _, wasTyping := r.typing[c.user.Username]; wasTyping {
			delete(r.typing, c.user.Username)
			r.broadcast(&ServerMessage{
				Typing: &TypingEvent{
					RoomId:   r.id,
					Username: c.user.Username,
					IsTyping: false,
				},
			}, nil)
		}
	}

	r.broadcast(&ServerMessage{
		Chat: r.notification(fmt.Sprintf("%s left the room", c.user.Username)),
	}, nil)

	r.broadcast(&ServerMessage{
		MemberLeft: &MemberLeft{
			RoomId:       r.id,
			ConnectionId: c.id,
			Username:     c.user.Username,
			Members:      r.memberList(),
		},
	}, nil)

	if len(r.members) == 0 {
		r.requestUnload()
	}
}

func (r *Room) handleExit() {
	r.log.Printf("room %q is exiting", r.id)

	// a join processed after the last leave queued the unload request
	// leaves a member in a room about to die; resynthesize its join so
	// the relay server replays it into a fresh room
	for c := range r.members {
		c.delRoom(r.id)
		r.pending = append(r.pending, &ClientMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Join:        &Join{RoomId: r.id},
			client:      c,
		})
	}

	// hold back racing joins for the relay server to replay
	for {
		select {
		case msg := <-r.inbound:
			if msg.Join != nil {
				r.pending = append(r.pending, msg)
			}
		default:
			close(r.done)
			return
		}
	}
}

func (r *Room) requestUnload() {
	select {
	case r.rs.unloadRoomChan <- r.id:
	default:
		r.log.Printf("unload channel full, room %q stays loaded", r.id)
	}
}

func (r *Room) identityPresent(username string) bool {
	for c := range r.members {
		if c.user.Username == username {
			return true
		}
	}
	return false
}

// memberList snapshots the membership. Order is insignificant.
func (r *Room) memberList() []types.Member {
	members := make([]types.Member, 0, len(r.members))
	for c := range r.members {
		members = append(members, types.Member{
			ConnectionId: c.id,
			Username:     c.user.Username,
		})
	}
	return members
}

func (r *Room) notification(text string) *types.ChatMessage {
	return &types.ChatMessage{
		Id:        newMessageId(),
		RoomId:    r.id,
		Message:   text,
		Kind:      types.NotificationKind,
		Timestamp: Now(),
	}
}

func (r *Room) broadcast(msg *ServerMessage, skip *Client) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = Now()
	}

	for c := range r.members {
		if c == skip {
			continue
		}

		if !c.queueMessage(msg) {
			r.log.Printf("dropped broadcast to %s in room %q", c.id, r.id)
		}
	}
}
