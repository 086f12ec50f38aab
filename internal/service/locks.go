package service

import "sync"

// ticketLocks serializes action handlers per ticket id. The critical
// section (status read, transition validation, gateway call, write) runs
// under the ticket's mutex; cross-ticket operations share no lock.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *ticketLocks) lock(ticketID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[ticketID]
	if !ok {
		entry = &sync.Mutex{}
		l.locks[ticketID] = entry
	}
	l.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}
