package client

import (
	"sync"
	"time"
)

// defaultQuietInterval is how long after the last keystroke a typing
// indicator auto-expires.
const defaultQuietInterval = 2500 * time.Millisecond

// TypingNotifier debounces typing presence: the first keystroke after an
// idle period emits a start, each keystroke restarts the quiet timer, and
// the timer expiring or an explicit Stop (send, blur) emits a stop. It
// never emits the same state twice in a row.
type TypingNotifier struct {
	mu     sync.Mutex
	quiet  time.Duration
	typing bool
	timer  *time.Timer
	emit   func(isTyping bool)
}

func NewTypingNotifier(quiet time.Duration, emit func(isTyping bool)) *TypingNotifier {
	if quiet <= 0 {
		quiet = defaultQuietInterval
	}

	return &TypingNotifier{
		quiet: quiet,
		emit:  emit,
	}
}

// Keystroke transitions Idle -> Typing if needed and restarts the quiet
// timer.
func (t *TypingNotifier) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.typing {
		t.typing = true
		t.emit(true)
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.quiet, t.timeout)
}

func (t *TypingNotifier) timeout() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.typing {
		return
	}

	t.typing = false
	t.emit(false)
}

// Stop transitions Typing -> Idle immediately and cancels the timer.
func (t *TypingNotifier) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	if !t.typing {
		return
	}

	t.typing = false
	t.emit(false)
}

// Typing reports the current state.
func (t *TypingNotifier) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.typing
}
