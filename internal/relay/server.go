package relay

import (
	"context"
	"log"
	"sync"

	"github.com/codecollab-io/codecollab/internal/stats"
)

// RelayServer owns the session table and the room registry. Rooms are
// created implicitly on join and dropped as soon as their membership
// reaches zero; the server itself holds no document or chat state.
type RelayServer struct {
	log            *log.Logger
	stats          stats.StatsProvider
	sessions       map[string]*Client
	sessionsLock   sync.Mutex
	joinChan       chan *ClientMessage
	rooms          map[string]*Room
	unloadRoomChan chan string
	stop           chan struct{}
	done           chan struct{}
}

func NewRelayServer(logger *log.Logger, sp stats.StatsProvider) (*RelayServer, error) {
	rs := &RelayServer{
		log:            logger,
		stats:          sp,
		sessions:       make(map[string]*Client),
		joinChan:       make(chan *ClientMessage, 256),
		rooms:          make(map[string]*Room),
		unloadRoomChan: make(chan string, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	sp.RegisterMetric(stats.ActiveConnections)
	sp.RegisterMetric(stats.ActiveRooms)
	sp.RegisterMetric(stats.MessagesRelayed)
	sp.RegisterMetric(stats.EditsRelayed)
	sp.RegisterMetric(stats.SyncsRelayed)

	return rs, nil
}

func (rs *RelayServer) Run() {
	for {
		select {
		case joinMsg := <-rs.joinChan:
			rs.handleJoin(joinMsg)
		case id := <-rs.unloadRoomChan:
			rs.unloadRoom(id)
		case <-rs.stop:
			rs.log.Println("shutting down rooms")
			for _, r := range rs.rooms {
				close(r.exit)
				<-r.done
			}
			rs.rooms = make(map[string]*Room)

			close(rs.done)
			return
		}
	}
}

// handleJoin routes a join to the room's goroutine, creating the room if
// this is the first mention of its id.
func (rs *RelayServer) handleJoin(joinMsg *ClientMessage) {
	room, ok := rs.rooms[joinMsg.Join.RoomId]
	if !ok {
		room = newRoom(joinMsg.Join.RoomId, rs)
		rs.rooms[room.id] = room
		go room.run()

		rs.stats.Incr(stats.ActiveRooms)
		rs.log.Printf("created room %q", room.id)
	}

	select {
	case room.inbound <- joinMsg:
	default:
		rs.log.Printf("inbound channel full on room %q", room.id)
		joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
	}
}

// unloadRoom tears down an empty room. Joins that raced into the room's
// inbound channel while it was exiting are replayed, which recreates the
// room, so an interleaved join is never lost.
func (rs *RelayServer) unloadRoom(id string) {
	r, ok := rs.rooms[id]
	if !ok {
		return
	}

	delete(rs.rooms, id)
	close(r.exit)
	<-r.done

	rs.stats.Decr(stats.ActiveRooms)
	rs.log.Printf("unloaded room %q", id)

	for _, pending := range r.pending {
		rs.handleJoin(pending)
	}
}

// RegisterClient admits an authenticated session and tells it its
// connection id.
func (rs *RelayServer) RegisterClient(c *Client) {
	rs.sessionsLock.Lock()
	rs.sessions[c.id] = c
	rs.sessionsLock.Unlock()

	rs.stats.Incr(stats.ActiveConnections)
	rs.log.Printf("session %s connected for %q", c.id, c.user.Username)

	c.queueMessage(helloMessage(c.id, c.user.Username))
}

func (rs *RelayServer) deregisterClient(c *Client) {
	rs.sessionsLock.Lock()
	defer rs.sessionsLock.Unlock()

	if _, ok := rs.sessions[c.id]; !ok {
		return
	}
	delete(rs.sessions, c.id)

	rs.stats.Decr(stats.ActiveConnections)
	rs.log.Printf("session %s disconnected for %q", c.id, c.user.Username)
}

func (rs *RelayServer) session(id string) (*Client, bool) {
	rs.sessionsLock.Lock()
	defer rs.sessionsLock.Unlock()

	c, ok := rs.sessions[id]
	return c, ok
}

// relaySync delivers a document snapshot exclusively to the target
// connection. A stale target is dropped silently: the newcomer simply
// keeps its local default document.
func (rs *RelayServer) relaySync(msg *ClientMessage) {
	target, ok := rs.session(msg.Sync.TargetId)
	if !ok {
		rs.log.Printf("sync target %s gone, dropping", msg.Sync.TargetId)
		return
	}

	target.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Edit: &EditEvent{Content: msg.Sync.Code},
	})

	rs.stats.Incr(stats.SyncsRelayed)
}

func (rs *RelayServer) Shutdown(ctx context.Context) error {
	rs.sessionsLock.Lock()
	for _, c := range rs.sessions {
		c.stopClient()
	}
	rs.sessionsLock.Unlock()

	close(rs.stop)

	select {
	case <-rs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
