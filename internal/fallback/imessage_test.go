package fallback

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func TestNormalizeRecipient(t *testing.T) {
	cases := []struct{ in, want string }{
		{"+1 (607) 555-1234", "6075551234"},
		{"+16075551234", "6075551234"},
		{"16075551234", "6075551234"},
		{"6075551234", "6075551234"},
		{"friend@icloud.com", "friend@icloud.com"},
		{"+44 20 7946 0958", "+442079460958"},
	}
	for _, tc := range cases {
		if got := NormalizeRecipient(tc.in); got != tc.want {
			t.Errorf("NormalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// fakeChatDB builds the slice of the Messages schema that Latest queries.
func fakeChatDB(t *testing.T) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE message (ROWID INTEGER PRIMARY KEY, text TEXT, is_from_me INTEGER, date INTEGER)`,
		`CREATE TABLE chat (ROWID INTEGER PRIMARY KEY)`,
		`CREATE TABLE handle (ROWID INTEGER PRIMARY KEY, id TEXT)`,
		`CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER)`,
		`CREATE TABLE chat_handle_join (chat_id INTEGER, handle_id INTEGER)`,
		`INSERT INTO chat (ROWID) VALUES (1)`,
		`INSERT INTO handle (ROWID, id) VALUES (1, '+16075551234')`,
		`INSERT INTO chat_handle_join VALUES (1, 1)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return path, db
}

func addMessage(t *testing.T, db *sql.DB, rowid int64, text string, fromMe int) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO message VALUES (?, ?, ?, ?)`, rowid, text, fromMe, rowid); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO chat_message_join VALUES (1, ?)`, rowid); err != nil {
		t.Fatal(err)
	}
}

func TestLatest_SkipsOwnMessages(t *testing.T) {
	path, db := fakeChatDB(t)
	addMessage(t, db, 10, "3", 0)
	addMessage(t, db, 11, "PollEV Help!", 1)

	ch := NewIMessage(path, nil)
	msg, ok := ch.Latest(context.Background(), "+1 (607) 555-1234")
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Text != "3" || msg.ID != 10 {
		t.Errorf("got %+v, want text=3 id=10", msg)
	}
}

func TestLatest_NewestInboundWins(t *testing.T) {
	path, db := fakeChatDB(t)
	addMessage(t, db, 10, "1", 0)
	addMessage(t, db, 12, "4", 0)

	ch := NewIMessage(path, nil)
	msg, ok := ch.Latest(context.Background(), "6075551234")
	if !ok || msg.ID != 12 || msg.Text != "4" {
		t.Errorf("got ok=%v msg=%+v, want id=12 text=4", ok, msg)
	}
}

func TestLatest_OnlyOutbound(t *testing.T) {
	path, db := fakeChatDB(t)
	addMessage(t, db, 10, "PollEV Help!", 1)

	ch := NewIMessage(path, nil)
	if _, ok := ch.Latest(context.Background(), "6075551234"); ok {
		t.Error("should not return our own outbound message")
	}
}

func TestLatest_NoDatabase(t *testing.T) {
	ch := NewIMessage(filepath.Join(t.TempDir(), "missing.db"), nil)
	if _, ok := ch.Latest(context.Background(), "6075551234"); ok {
		t.Error("missing database should yield no message")
	}
}
