package relay

import (
	"testing"

	"github.com/codecollab-io/codecollab/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{} // Pre-fill the send channel to simulate a full channel
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}

	// stopping twice must not panic
	c.stopClient()
}

func Test_addRoom_getRoom_delRoom(t *testing.T) {
	rs := newTestRelayServer(t)
	c := newTestClient(t, rs, "testuser")
	room := newRoom("r1", rs)

	c.addRoom(room)
	assert.Equal(t, room, c.getRoom("r1"), "expected to retrieve the added room")

	c.delRoom("r1")
	assert.Nil(t, c.getRoom("r1"), "expected room to be removed")

	// deleting an unknown room is a no-op
	c.delRoom("r1")
}

func Test_leaveAllRooms(t *testing.T) {
	rs := newTestRelayServer(t)
	c := newTestClient(t, rs, "testuser")

	r1 := newRoom("r1", rs)
	r2 := newRoom("r2", rs)
	c.addRoom(r1)
	c.addRoom(r2)

	c.leaveAllRooms()

	for _, r := range []*Room{r1, r2} {
		select {
		case req := <-r.leaveChan:
			assert.Equal(t, c, req.client, "expected a leave request for the client")
		default:
			t.Errorf("expected a leave request on room %q", r.id)
		}
	}
}

func Test_cleanup(t *testing.T) {
	rs := newTestRelayServer(t)
	c := newTestClient(t, rs, "testuser")
	rs.RegisterClient(c)

	room := newRoom("r1", rs)
	c.addRoom(room)

	c.cleanup()

	_, ok := rs.session(c.id)
	assert.False(t, ok, "expected session to be deregistered")

	select {
	case req := <-room.leaveChan:
		assert.Equal(t, c, req.client, "expected a leave request for every joined room")
	default:
		t.Error("expected a leave request on the joined room")
	}

	select {
	case <-c.stop:
	default:
		t.Error("expected client to be stopped")
	}
}

func Test_serializeMessage(t *testing.T) {
	msg := NoErrOK(1, map[string]any{"k": "v"})

	bytes, err := serializeMessage(msg)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Contains(t, string(bytes), `"response_code":200`)
	assert.Contains(t, string(bytes), `"k":"v"`)
}
