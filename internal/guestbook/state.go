package guestbook

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Session is the connected wallet identity.
type Session struct {
	Account   common.Address
	Connected bool
	ChainID   string
}

// State is the application state shared by the controller and the view.
type State struct {
	mu         sync.Mutex
	session    Session
	draft      string
	submitting bool

	feed *Feed
}

// Snapshot is a consistent copy of State for rendering.
type Snapshot struct {
	Session    Session
	Draft      string
	Submitting bool
	Messages   []Message // most recent first
}

// NewState creates an empty state backed by a feed with the given policy.
func NewState(policy DedupPolicy) *State {
	return &State{feed: NewFeed(policy)}
}

// Feed returns the message feed.
func (s *State) Feed() *Feed {
	return s.feed
}

// Session returns the current session.
func (s *State) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *State) setSession(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// Draft returns the in-progress message text.
func (s *State) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the in-progress message text.
func (s *State) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Submitting reports whether a submission is outstanding.
func (s *State) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

func (s *State) beginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return false
	}
	s.submitting = true
	return true
}

func (s *State) endSubmit(clearDraft bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if clearDraft {
		s.draft = ""
	}
}

// Snapshot returns a copy of the state with messages in display order.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Session:    s.session,
		Draft:      s.draft,
		Submitting: s.submitting,
	}
	s.mu.Unlock()

	snap.Messages = s.feed.Sorted()
	return snap
}
