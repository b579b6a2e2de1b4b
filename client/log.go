package client

import (
	"sync"

	"github.com/codecollab-io/codecollab/internal/types"
)

type EntryState int

const (
	// StatePending marks an optimistic entry awaiting its server echo.
	StatePending EntryState = iota
	StateConfirmed
)

// Entry is one line of a client's chat log.
type Entry struct {
	types.ChatMessage
	State EntryState
}

type ReconcileOutcome int

const (
	// OutcomeAppended: first sighting of the id, appended to the log.
	OutcomeAppended ReconcileOutcome = iota
	// OutcomeConfirmed: a pending entry was replaced in place by the
	// canonical message.
	OutcomeConfirmed
	// OutcomeSuperseded: the id was already confirmed, incoming copy
	// discarded.
	OutcomeSuperseded
)

// MessageLog is the in-memory chat log with id-based reconciliation.
// After reconciliation it holds at most one entry per message id, and
// that entry is confirmed once the server broadcast has been processed.
type MessageLog struct {
	mu      sync.Mutex
	entries []Entry
	index   map[string]int
}

func NewMessageLog() *MessageLog {
	return &MessageLog{
		index: make(map[string]int),
	}
}

// AppendPending records a locally constructed message before the server
// has confirmed it.
func (l *MessageLog) AppendPending(msg types.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.index[msg.Id] = len(l.entries)
	l.entries = append(l.entries, Entry{ChatMessage: msg, State: StatePending})
}

// Reconcile merges a broadcast message into the log. A pending entry with
// the same id is confirmed in place, preserving its position; an already
// confirmed id is discarded; anything else is appended.
func (l *MessageLog) Reconcile(msg types.ChatMessage) ReconcileOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx, ok := l.index[msg.Id]; ok {
		if l.entries[idx].State == StatePending {
			l.entries[idx] = Entry{ChatMessage: msg, State: StateConfirmed}
			return OutcomeConfirmed
		}
		return OutcomeSuperseded
	}

	l.index[msg.Id] = len(l.entries)
	l.entries = append(l.entries, Entry{ChatMessage: msg, State: StateConfirmed})
	return OutcomeAppended
}

// Entries returns a snapshot of the log in display order.
func (l *MessageLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
