package guestbook

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Message is a guestbook entry as observed on-chain.
type Message struct {
	Sender    common.Address
	Text      string
	Timestamp int64 // milliseconds since epoch
}

// NewMessage builds a Message from the values the contract stores.
// The contract records epoch seconds; the feed works in milliseconds.
func NewMessage(sender common.Address, text string, seconds *big.Int) Message {
	return Message{Sender: sender, Text: text, Timestamp: secondsToMillis(seconds)}
}

// secondsToMillis converts an on-chain uint256 timestamp, saturating at
// math.MaxInt64 so far-future values still sort first.
func secondsToMillis(seconds *big.Int) int64 {
	switch {
	case seconds == nil || seconds.Sign() <= 0:
		return 0
	case !seconds.IsInt64() || seconds.Int64() > math.MaxInt64/1000:
		return math.MaxInt64
	default:
		return seconds.Int64() * 1000
	}
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Key returns a content hash of (sender, timestamp, text).
// Identical posts in the same second by the same sender share a key.
func (m Message) Key() string {
	h := sha3.NewLegacyKeccak256()
	h.Write(m.Sender.Bytes())
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(m.Timestamp))
	h.Write(ts[:])
	h.Write([]byte(m.Text))
	return hex.EncodeToString(h.Sum(nil))
}

func (m Message) String() string {
	return fmt.Sprintf("%s@%d: %q", m.Sender.Hex(), m.Timestamp, m.Text)
}

// Event is a decoded NewMessage log.
type Event struct {
	Message Message
	Block   uint64
	ID      string // tx hash and log index
	Removed bool   // set when the log was dropped by a reorg
}

// EventID formats the identifier of a log within the chain.
func EventID(txHash common.Hash, logIndex uint) string {
	return fmt.Sprintf("%s:%d", txHash.Hex(), logIndex)
}
