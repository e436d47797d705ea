package guestbook

import (
	"log"

	"github.com/ethereum/go-ethereum/common"
)

// EmptyFeedText is shown when there is nothing to display.
const EmptyFeedText = "No messages yet"

// Row is one rendered feed line.
type Row struct {
	Message Message
	From    string // shortened sender address
	When    string
	Text    string
}

// Decorator filters and rewrites rows before display.
type Decorator interface {
	Visible(m Message) (bool, error)
	Format(m Message) (string, bool, error)
}

// ShortAddress renders an address as 0x1234...abcd.
func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// Rows renders messages (already in display order). A failing decorator is
// logged and the message is shown unmodified.
func Rows(msgs []Message, dec Decorator) []Row {
	rows := make([]Row, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if dec != nil {
			ok, err := dec.Visible(m)
			if err != nil {
				log.Printf("view: filter: %v", err)
				ok = true
			}
			if !ok {
				continue
			}
			if s, changed, err := dec.Format(m); err != nil {
				log.Printf("view: format: %v", err)
			} else if changed {
				text = s
			}
		}
		rows = append(rows, Row{
			Message: m,
			From:    ShortAddress(m.Sender),
			When:    m.Time().Local().Format("2006-01-02 • 15:04"),
			Text:    text,
		})
	}
	return rows
}
