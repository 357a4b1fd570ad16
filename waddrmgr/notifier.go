// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"sync"

	"github.com/lightningnetwork/lnd/queue"
)

// Subscription delivers every entry generated after it was registered. Each
// item received from Updates is an Entry.
type Subscription struct {
	id      uint64
	updates *queue.ConcurrentQueue
	quit    chan struct{}

	cancelOnce sync.Once
	cancel     func()
}

// Updates returns a read-only channel where newly generated entries are
// delivered in derivation order.
func (s *Subscription) Updates() <-chan interface{} {
	return s.updates.ChanOut()
}

// Quit is a channel that is closed once the subscription no longer receives
// updates.
func (s *Subscription) Quit() <-chan struct{} {
	return s.quit
}

// Cancel unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(s.cancel)
}

// entryNotifier fans newly generated entries out to all current
// subscribers. Every subscriber owns an unbounded queue, so a slow reader
// never blocks the inventory.
type entryNotifier struct {
	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]*Subscription
}

// newEntryNotifier creates an empty notifier.
func newEntryNotifier() *entryNotifier {
	return &entryNotifier{
		clients: make(map[uint64]*Subscription),
	}
}

// subscribe registers a new subscriber. Entries generated before this call
// are not replayed.
func (n *entryNotifier) subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID

	sub := &Subscription{
		id:      id,
		updates: queue.NewConcurrentQueue(20),
		quit:    make(chan struct{}),
	}
	sub.cancel = func() {
		n.remove(id)
	}

	sub.updates.Start()
	n.clients[id] = sub

	log.Tracef("Registered entry subscriber %d", id)

	return sub
}

// remove unregisters the subscriber with the given id and shuts down its
// queue.
func (n *entryNotifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub, ok := n.clients[id]
	if !ok {
		return
	}

	delete(n.clients, id)
	close(sub.quit)
	sub.updates.Stop()

	log.Tracef("Removed entry subscriber %d", id)
}

// notify delivers the entries to every registered subscriber.
func (n *entryNotifier) notify(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.clients {
		for _, entry := range entries {
			select {
			case sub.updates.ChanIn() <- entry:
			case <-sub.quit:
			}
		}
	}
}

// stop cancels every subscription.
func (n *entryNotifier) stop() {
	n.mu.Lock()
	subs := make([]*Subscription, 0, len(n.clients))
	for _, sub := range n.clients {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
