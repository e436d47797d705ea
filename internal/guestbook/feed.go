package guestbook

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DedupPolicy selects how event notifications and full reloads are reconciled.
type DedupPolicy int

const (
	// DedupKeyed keys streamed entries by log identity and drops events
	// already covered by the last reload.
	DedupKeyed DedupPolicy = iota

	// DedupNone appends every notification and replaces everything on reload.
	// A message both streamed and re-fetched can appear twice until the next reload.
	DedupNone
)

// ParseDedupPolicy maps the config value to a policy.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keyed":
		return DedupKeyed, nil
	case "none":
		return DedupNone, nil
	default:
		return DedupKeyed, fmt.Errorf("unknown dedup policy %q", s)
	}
}

func (p DedupPolicy) String() string {
	switch p {
	case DedupKeyed:
		return "keyed"
	case DedupNone:
		return "none"
	default:
		return fmt.Sprintf("DedupPolicy(%d)", int(p))
	}
}

type entry struct {
	msg     Message
	block   uint64
	eventID string // empty for entries loaded by a reload
}

// Feed is the insertion-ordered client-side message collection.
type Feed struct {
	mu     sync.RWMutex
	policy DedupPolicy

	entries []entry
	seen    map[string]uint64 // event ID -> block
	synced  uint64            // block height of the last reload
	loaded  bool
}

// NewFeed creates an empty feed.
func NewFeed(policy DedupPolicy) *Feed {
	return &Feed{
		policy: policy,
		seen:   make(map[string]uint64),
	}
}

// Policy returns the feed's reconciliation policy.
func (f *Feed) Policy() DedupPolicy {
	return f.policy
}

// Replace installs the result of a full reload read at the given block and
// reports whether it was applied.
//
// With DedupKeyed, streamed entries from blocks after the reload are kept,
// since the read could not have included them, and a reload read at a block
// older than the last applied one is ignored.
func (f *Feed) Replace(msgs []Message, block uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.policy == DedupKeyed && f.loaded && block < f.synced {
		return false
	}

	next := make([]entry, 0, len(msgs))
	for _, m := range msgs {
		next = append(next, entry{msg: m, block: block})
	}

	if f.policy == DedupKeyed {
		for _, e := range f.entries {
			if e.eventID != "" && e.block > block {
				next = append(next, e)
			}
		}
		for id, b := range f.seen {
			if b <= block {
				delete(f.seen, id)
			}
		}
	}
	if block > f.synced {
		f.synced = block
	}

	f.entries = next
	f.loaded = true
	return true
}

// Apply reconciles one event notification and reports whether the feed changed.
func (f *Feed) Apply(ev Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.policy == DedupNone {
		if ev.Removed {
			return false
		}
		f.entries = append(f.entries, entry{msg: ev.Message, block: ev.Block, eventID: ev.ID})
		return true
	}

	if ev.Removed {
		return f.withdraw(ev.ID)
	}
	if ev.ID != "" {
		if _, ok := f.seen[ev.ID]; ok {
			return false
		}
	}
	if f.loaded && ev.Block <= f.synced {
		// Already part of the last reload.
		return false
	}

	if ev.ID != "" {
		f.seen[ev.ID] = ev.Block
	}
	f.entries = append(f.entries, entry{msg: ev.Message, block: ev.Block, eventID: ev.ID})
	return true
}

func (f *Feed) withdraw(id string) bool {
	if id == "" {
		return false
	}
	delete(f.seen, id)
	for i, e := range f.entries {
		if e.eventID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Messages returns the entries in insertion order.
func (f *Feed) Messages() []Message {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Message, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.msg
	}
	return out
}

// Sorted returns the entries most recent first. The order is derived on
// every call; the stored order is never changed.
func (f *Feed) Sorted() []Message {
	out := f.Messages()
	SortRecentFirst(out)
	return out
}

// SortRecentFirst orders msgs in place by descending timestamp. Messages
// with equal timestamps keep their relative order.
func SortRecentFirst(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp > msgs[j].Timestamp
	})
}

// Len returns the number of entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// SyncedBlock returns the block height of the most recent reload.
func (f *Feed) SyncedBlock() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.synced
}
