package archive

import "time"

// Contract summarizes the archive for one contract address.
type Contract struct {
	Address   string
	TotalMsgs int
	LastBlock uint64
}

// Message is an archived guestbook entry.
type Message struct {
	Contract   string
	Position   int // index in the contract's message array
	Sender     string
	Body       string
	Timestamp  int64 // milliseconds
	ContentKey string
	Block      uint64
	ArchivedAt time.Time
}

// Time returns the on-chain timestamp.
func (m *Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}
