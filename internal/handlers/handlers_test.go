package handlers

import (
	"testing"

	"keyshop/types"
)

func TestParseBuyData(t *testing.T) {
	cases := []struct {
		in        string
		productID int64
		tierID    int64
		ok        bool
	}{
		{"3:7", 3, 7, true},
		{"42:1001", 42, 1001, true},
		{"3", 0, 0, false},
		{"3:7:9", 0, 0, false},
		{"abc:7", 0, 0, false},
		{"3:abc", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, c := range cases {
		productID, tierID, ok := parseBuyData(c.in)
		if ok != c.ok || productID != c.productID || tierID != c.tierID {
			t.Errorf("parseBuyData(%q) = (%d, %d, %v), want (%d, %d, %v)",
				c.in, productID, tierID, ok, c.productID, c.tierID, c.ok)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, ok := parseID("admin:product:15", "admin:product:"); !ok || id != 15 {
		t.Errorf("parseID = (%d, %v), want (15, true)", id, ok)
	}
	if _, ok := parseID("admin:product:x", "admin:product:"); ok {
		t.Error("expected parse failure for non-numeric id")
	}
}

func TestDisplayName(t *testing.T) {
	if got := displayName(&types.Account{Username: "alice", FirstName: "Alice"}); got != "@alice" {
		t.Errorf("displayName = %q, want @alice", got)
	}
	if got := displayName(&types.Account{FirstName: "Bob"}); got != "Bob" {
		t.Errorf("displayName = %q, want Bob", got)
	}
	if got := displayName(&types.Account{TelegramID: 777}); got != "777" {
		t.Errorf("displayName = %q, want 777", got)
	}
}
