package guestbook

import (
	"log"
	"sync"
)

// UpdateKind describes what changed in the state.
type UpdateKind int

const (
	UpdateSession UpdateKind = iota
	UpdateReloaded
	UpdateAppended
	UpdateSubmitting
	UpdateSubscriptionLost
)

// Update is a change notification delivered to broker subscribers.
type Update struct {
	Kind    UpdateKind
	Message *Message // set for UpdateAppended
	Err     error    // set for UpdateSubscriptionLost
}

// Subscriber receives state updates.
type Subscriber struct {
	ID int
	Ch chan Update
}

// Broker fans state updates out to views and other observers.
type Broker struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]*Subscriber
}

// NewBroker creates a new update broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int]*Subscriber)}
}

// Subscribe registers a new subscriber.
func (b *Broker) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		ID: b.nextID,
		Ch: make(chan Update, 32),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Don't close the channel here: publishers may have already snapshotted
	// subscribers and will send concurrently.
	delete(b.subscribers, id)
}

// Publish delivers an update to every subscriber without blocking.
func (b *Broker) Publish(u Update) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	dropped := 0
	for _, sub := range subs {
		select {
		case sub.Ch <- u:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		log.Printf("guestbook: dropped %d updates (slow subscribers)", dropped)
	}
}

// Count returns the number of subscribers.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
