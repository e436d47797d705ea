package scripting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/notepid/guestbook/internal/guestbook"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func noAccount() common.Address { return common.Address{} }

func TestFilterHidesAndFormats(t *testing.T) {
	f, err := NewFilter(`
		return {
			filter = function(msg) return not string.find(msg.text, "spam") end,
			format = function(msg) return gb.short(msg.sender) .. ": " .. string.upper(msg.text) end,
		}
	`, noAccount)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer f.Close()

	ok, err := f.Visible(guestbook.Message{Sender: alice, Text: "buy spam now"})
	if err != nil || ok {
		t.Fatalf("expected spam hidden, got %v %v", ok, err)
	}
	ok, err = f.Visible(guestbook.Message{Sender: alice, Text: "gm"})
	if err != nil || !ok {
		t.Fatalf("expected gm visible, got %v %v", ok, err)
	}

	text, changed, err := f.Format(guestbook.Message{Sender: alice, Text: "gm"})
	if err != nil || !changed {
		t.Fatalf("Format: %v %v", changed, err)
	}
	if text != "0x7099...79C8: GM" {
		t.Fatalf("unexpected formatted text %q", text)
	}
}

func TestFilterWithoutHooksShowsEverything(t *testing.T) {
	f, err := NewFilter(`return {}`, noAccount)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer f.Close()

	ok, err := f.Visible(guestbook.Message{Text: "x"})
	if err != nil || !ok {
		t.Fatalf("expected visible, got %v %v", ok, err)
	}
	if _, changed, err := f.Format(guestbook.Message{Text: "x"}); err != nil || changed {
		t.Fatalf("expected no change, got %v %v", changed, err)
	}
}

func TestFilterRuntimeErrorIsReported(t *testing.T) {
	f, err := NewFilter(`return { filter = function(msg) error("boom") end }`, noAccount)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer f.Close()

	ok, err := f.Visible(guestbook.Message{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected boom error, got %v", err)
	}
	if !ok {
		t.Fatalf("a failing filter should not hide the message")
	}
}

func TestFilterFormatMustReturnString(t *testing.T) {
	f, err := NewFilter(`return { format = function(msg) return 42 end }`, noAccount)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer f.Close()

	if _, _, err := f.Format(guestbook.Message{Text: "x"}); err == nil {
		t.Fatalf("expected error for non-string result")
	}
}

func TestFilterSanitizesFormattedText(t *testing.T) {
	f, err := NewFilter(`return { format = function(msg) return "\27[31mred" end }`, noAccount)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer f.Close()

	text, _, err := f.Format(guestbook.Message{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if text != "[31mred" {
		t.Fatalf("escape byte not stripped: %q", text)
	}
}

func TestIsMineUsesConnectedAccount(t *testing.T) {
	f, err := NewFilter(`return { filter = function(msg) return gb.is_mine(msg.sender) end }`,
		func() common.Address { return alice })
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer f.Close()

	if ok, _ := f.Visible(guestbook.Message{Sender: alice}); !ok {
		t.Fatalf("expected own message visible")
	}
	if ok, _ := f.Visible(guestbook.Message{Sender: bob}); ok {
		t.Fatalf("expected other message hidden")
	}
}

func TestLoadFilterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.lua")
	src := `display = { format = function(msg) return gb.time(msg.timestamp, "2006") end }`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFilter(path, noAccount)
	if err != nil {
		t.Fatalf("LoadFilter: %v", err)
	}
	defer f.Close()

	// Mid-2023 is 2023 in every time zone.
	text, changed, err := f.Format(guestbook.Message{Timestamp: 1_688_000_000_000})
	if err != nil || !changed || text != "2023" {
		t.Fatalf("unexpected result %q %v %v", text, changed, err)
	}
}

func TestLoadFilterRejectsScriptWithoutTable(t *testing.T) {
	if _, err := NewFilter(`local x = 1`, noAccount); err == nil {
		t.Fatalf("expected error when no hook table is returned")
	}
}

func TestRowsWithFilter(t *testing.T) {
	f, err := NewFilter(`return { filter = function(msg) return msg.text ~= "hidden" end }`, noAccount)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows := guestbook.Rows([]guestbook.Message{
		{Sender: alice, Text: "shown", Timestamp: 2000},
		{Sender: bob, Text: "hidden", Timestamp: 1000},
	}, f)
	if len(rows) != 1 || rows[0].Text != "shown" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
