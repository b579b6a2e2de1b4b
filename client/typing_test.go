package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type typingRecorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *typingRecorder) emit(isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, isTyping)
}

func (r *typingRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]bool, len(r.events))
	copy(events, r.events)
	return events
}

func TestKeystroke_emitsStartOnce(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(time.Minute, rec.emit)

	n.Keystroke()
	n.Keystroke()
	n.Keystroke()

	assert.Equal(t, []bool{true}, rec.snapshot(), "repeated keystrokes must emit a single start")
	assert.True(t, n.Typing())
}

func TestStop_emitsStopOnce(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(time.Minute, rec.emit)

	n.Keystroke()
	n.Stop()
	n.Stop()

	assert.Equal(t, []bool{true, false}, rec.snapshot(), "explicit stop must emit exactly once")
	assert.False(t, n.Typing())
}

func TestStop_whileIdleIsSilent(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(time.Minute, rec.emit)

	n.Stop()

	assert.Empty(t, rec.snapshot(), "stop while idle must not emit")
}

func TestQuietIntervalExpires(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(20*time.Millisecond, rec.emit)

	n.Keystroke()

	assert.Eventually(t, func() bool {
		events := rec.snapshot()
		return len(events) == 2 && !events[1]
	}, time.Second, 5*time.Millisecond, "expected an auto-stop after the quiet interval")
	assert.False(t, n.Typing())
}

func TestKeystrokeRestartsTimer(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(50*time.Millisecond, rec.emit)

	n.Keystroke()
	time.Sleep(30 * time.Millisecond)
	n.Keystroke()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, []bool{true}, rec.snapshot(), "a keystroke inside the window must restart the timer")
	assert.True(t, n.Typing())

	assert.Eventually(t, func() bool {
		return !n.Typing()
	}, time.Second, 5*time.Millisecond, "expected the restarted timer to expire eventually")
}

func TestRestartAfterTimeout(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(10*time.Millisecond, rec.emit)

	n.Keystroke()
	assert.Eventually(t, func() bool {
		return !n.Typing()
	}, time.Second, 5*time.Millisecond)

	n.Keystroke()

	events := rec.snapshot()
	assert.True(t, events[len(events)-1], "a keystroke after idling must emit a fresh start")
}
