package conversation

import "sync"

// phoneLocks serializes work per phone number so that two inbound messages for
// the same number never interleave their read-modify-write of a conversation,
// while unrelated numbers proceed concurrently.
type phoneLocks struct {
	mu    sync.Mutex
	locks map[string]*phoneLock
}

type phoneLock struct {
	mu   sync.Mutex
	refs int
}

func newPhoneLocks() *phoneLocks {
	return &phoneLocks{locks: make(map[string]*phoneLock)}
}

// acquire blocks until the caller holds the lock for phoneNumber. The returned
// function releases it and must be called exactly once, including on error
// paths, so a failed transition can never wedge a user's conversation.
func (p *phoneLocks) acquire(phoneNumber string) func() {
	p.mu.Lock()
	l, ok := p.locks[phoneNumber]
	if !ok {
		l = &phoneLock{}
		p.locks[phoneNumber] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, phoneNumber)
		}
		p.mu.Unlock()
	}
}
