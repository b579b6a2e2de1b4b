package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/codecollab-io/codecollab/internal/relay"
	"github.com/codecollab-io/codecollab/internal/types"
	"github.com/gorilla/websocket"
)

type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8000/ws.
	URL   string
	Token string
	Log   *log.Logger
	// QuietInterval overrides the typing debounce window.
	QuietInterval time.Duration
}

// Client is one participant's connection to the relay. Each successful
// dial is a brand-new session: the server assigns a fresh connection id
// and the caller must join its room again. There is no resumption and no
// replay of messages missed while disconnected.
type Client struct {
	conn     *websocket.Conn
	log      *log.Logger
	connId   string
	username string

	writeMu sync.Mutex

	mu          sync.Mutex
	roomId      string
	document    string
	members     []types.Member
	typingUsers map[string]struct{}

	Messages *MessageLog
	notifier *TypingNotifier

	// Callbacks are invoked from the Run loop; set them before calling Run.
	OnChat       func(msg types.ChatMessage, outcome ReconcileOutcome)
	OnEdit       func(content string)
	OnMembers    func(members []types.Member)
	OnTyping     func(username string, isTyping bool)
	OnMemberLeft func(connectionId, username string)
}

// Dial connects, presents the bearer token, and waits for the hello
// frame carrying the assigned connection id. A rejected token fails here;
// no room operation is possible on a rejected connection.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	header := http.Header{"Authorization": {"Bearer " + cfg.Token}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("connection rejected: %w", err)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}

	var hello relay.ServerMessage
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read hello: %w", err)
	}

	if hello.Response == nil {
		conn.Close()
		return nil, errors.New("unexpected first frame")
	}

	connId, _ := hello.Response.Data["connection_id"].(string)
	username, _ := hello.Response.Data["username"].(string)
	if connId == "" {
		conn.Close()
		return nil, errors.New("hello missing connection id")
	}

	c := &Client{
		conn:        conn,
		log:         logger,
		connId:      connId,
		username:    username,
		typingUsers: make(map[string]struct{}),
		Messages:    NewMessageLog(),
	}
	c.notifier = NewTypingNotifier(cfg.QuietInterval, c.sendTyping)

	return c, nil
}

func (c *Client) ConnectionId() string {
	return c.connId
}

func (c *Client) Username() string {
	return c.username
}

// Join enters a room, creating it implicitly if the id is unknown to the
// server. The member list arrives asynchronously via OnMembers.
func (c *Client) Join(roomId string) error {
	c.mu.Lock()
	c.roomId = roomId
	c.mu.Unlock()

	return c.send(&relay.ClientMessage{
		Join: &relay.Join{RoomId: roomId, Username: c.username},
	})
}

// SendEdit replaces the shared document. All other room members receive
// the full content; the sender does not get it echoed back.
func (c *Client) SendEdit(content string) error {
	c.mu.Lock()
	c.document = content
	roomId := c.roomId
	c.mu.Unlock()

	if roomId == "" {
		return errors.New("not in a room")
	}

	return c.send(&relay.ClientMessage{
		Edit: &relay.Edit{RoomId: roomId, Content: content},
	})
}

// SendChat appends an optimistic entry to the local log and transmits
// the message. The entry is confirmed in place when the server echo with
// the same id arrives.
func (c *Client) SendChat(text string) (Entry, error) {
	c.mu.Lock()
	roomId := c.roomId
	c.mu.Unlock()

	if roomId == "" {
		return Entry{}, errors.New("not in a room")
	}

	c.notifier.Stop()

	msg := types.ChatMessage{
		Id:        newOptimisticId(),
		RoomId:    roomId,
		Username:  c.username,
		Message:   text,
		Kind:      types.MessageKind,
		Timestamp: time.Now().UTC(),
	}
	c.Messages.AppendPending(msg)

	err := c.send(&relay.ClientMessage{
		Chat: &relay.Chat{RoomId: roomId, Message: text, OptimisticId: msg.Id},
	})

	return Entry{ChatMessage: msg, State: StatePending}, err
}

// Keystroke feeds the typing debouncer; the first one after an idle
// period emits a start indicator.
func (c *Client) Keystroke() {
	c.notifier.Keystroke()
}

// StopTyping emits an explicit stop, for blur or send.
func (c *Client) StopTyping() {
	c.notifier.Stop()
}

func (c *Client) sendTyping(isTyping bool) {
	c.mu.Lock()
	roomId := c.roomId
	c.mu.Unlock()

	if roomId == "" {
		return
	}

	if err := c.send(&relay.ClientMessage{
		Typing: &relay.Typing{RoomId: roomId, IsTyping: isTyping},
	}); err != nil {
		c.log.Println("send typing:", err)
	}
}

func (c *Client) Document() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.document
}

func (c *Client) Members() []types.Member {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := make([]types.Member, len(c.members))
	copy(members, c.members)
	return members
}

func (c *Client) TypingUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	users := make([]string, 0, len(c.typingUsers))
	for u := range c.typingUsers {
		users = append(users, u)
	}
	return users
}

// Run reads server events until the connection drops and returns the
// read error. Callbacks fire on this goroutine, one at a time.
func (c *Client) Run() error {
	for {
		var msg relay.ServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *relay.ServerMessage) {
	switch {
	case msg.Joined != nil:
		c.handleJoined(msg.Joined)
	case msg.Chat != nil:
		outcome := c.Messages.Reconcile(*msg.Chat)
		if outcome != OutcomeSuperseded && c.OnChat != nil {
			c.OnChat(*msg.Chat, outcome)
		}
	case msg.Edit != nil:
		c.mu.Lock()
		c.document = msg.Edit.Content
		c.mu.Unlock()

		if c.OnEdit != nil {
			c.OnEdit(msg.Edit.Content)
		}
	case msg.Typing != nil:
		c.mu.Lock()
		if msg.Typing.IsTyping {
			c.typingUsers[msg.Typing.Username] = struct{}{}
		} else {
			delete(c.typingUsers, msg.Typing.Username)
		}
		c.mu.Unlock()

		if c.OnTyping != nil {
			c.OnTyping(msg.Typing.Username, msg.Typing.IsTyping)
		}
	case msg.MemberLeft != nil:
		c.handleMemberLeft(msg.MemberLeft)
	case msg.Response != nil:
		if msg.Response.Error != "" {
			c.log.Printf("server error %d: %s", msg.Response.ResponseCode, msg.Response.Error)
		}
	}
}

// handleJoined refreshes the member list and, when the event announces
// another connection, pushes the current document to it. The newcomer
// receives its own Joined event too and must not sync to itself; a sole
// joiner therefore never receives a sync payload, which is expected.
func (c *Client) handleJoined(j *relay.Joined) {
	c.mu.Lock()
	c.members = j.Members
	doc := c.document
	c.mu.Unlock()

	if c.OnMembers != nil {
		c.OnMembers(j.Members)
	}

	if j.ConnectionId == c.connId {
		return
	}

	if err := c.send(&relay.ClientMessage{
		Sync: &relay.Sync{TargetId: j.ConnectionId, Code: doc},
	}); err != nil {
		c.log.Println("send sync:", err)
	}
}

func (c *Client) handleMemberLeft(ml *relay.MemberLeft) {
	c.mu.Lock()
	c.members = ml.Members

	remaining := make(map[string]struct{}, len(ml.Members))
	for _, m := range ml.Members {
		remaining[m.Username] = struct{}{}
	}
	for u := range c.typingUsers {
		if _, ok := remaining[u]; !ok {
			delete(c.typingUsers, u)
		}
	}
	c.mu.Unlock()

	if c.OnMemberLeft != nil {
		c.OnMemberLeft(ml.ConnectionId, ml.Username)
	}
	if c.OnMembers != nil {
		c.OnMembers(ml.Members)
	}
}

func (c *Client) send(msg *relay.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(msg)
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	return c.conn.Close()
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newOptimisticId builds a timestamp-plus-random-suffix id: unique enough
// within a room's lifetime, not cryptographically so.
func newOptimisticId() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}

	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}
