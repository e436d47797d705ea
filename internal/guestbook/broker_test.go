package guestbook

import "testing"

func TestBrokerPublishDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()

	for i := 0; i < cap(sub.Ch)+5; i++ {
		b.Publish(Update{Kind: UpdateReloaded})
	}
	if len(sub.Ch) != cap(sub.Ch) {
		t.Fatalf("expected full buffer, got %d/%d", len(sub.Ch), cap(sub.Ch))
	}

	b.Unsubscribe(sub.ID)
	if b.Count() != 0 {
		t.Fatalf("expected no subscribers, got %d", b.Count())
	}
	b.Publish(Update{Kind: UpdateReloaded})
}

func TestBrokerSubscribersGetDistinctIDs(t *testing.T) {
	b := NewBroker()
	a, c := b.Subscribe(), b.Subscribe()
	if a.ID == c.ID {
		t.Fatalf("expected distinct ids, got %d and %d", a.ID, c.ID)
	}
	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}
}
