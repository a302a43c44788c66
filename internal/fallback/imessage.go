package fallback

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// IMessage sends via the macOS Messages app (osascript) and reads replies
// straight out of the Messages SQLite store. Reading chat.db requires Full
// Disk Access for the process.
type IMessage struct {
	dbPath string
	logger *zap.Logger
}

// NewIMessage creates an iMessage channel. dbPath defaults to the user's
// Messages database when empty.
func NewIMessage(dbPath string, logger *zap.Logger) *IMessage {
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		dbPath = home + "/Library/Messages/chat.db"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IMessage{dbPath: dbPath, logger: logger}
}

// Send delivers an iMessage through the Messages app.
func (m *IMessage) Send(ctx context.Context, recipient, text string) bool {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)

	script := fmt.Sprintf(`
	tell application "Messages"
		set targetService to 1st account whose service type = iMessage
		set targetBuddy to participant "%s" of targetService
		send "%s" to targetBuddy
	end tell
	`, recipient, escaped)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, "osascript", "-e", script).Run(); err != nil {
		m.logger.Warn("iMessage send failed",
			zap.String("recipient", recipient), zap.Error(err))
		return false
	}
	return true
}

// latestQuery finds recent messages in a conversation with the recipient,
// newest first. is_from_me lets us skip our own outbound prompt.
const latestQuery = `
SELECT m.text, m.ROWID, m.is_from_me
FROM message m
JOIN chat_message_join cmj ON m.ROWID = cmj.message_id
JOIN chat c ON cmj.chat_id = c.ROWID
JOIN chat_handle_join chj ON c.ROWID = chj.chat_id
JOIN handle h ON chj.handle_id = h.ROWID
WHERE h.id LIKE ?
ORDER BY m.date DESC
LIMIT 10`

// Latest returns the newest inbound message from the recipient.
func (m *IMessage) Latest(ctx context.Context, recipient string) (Message, bool) {
	if _, err := os.Stat(m.dbPath); err != nil {
		m.logger.Warn("Messages database not found", zap.String("path", m.dbPath))
		return Message{}, false
	}

	db, err := sql.Open("sqlite3", "file:"+m.dbPath+"?mode=ro")
	if err != nil {
		m.logger.Warn("open Messages database", zap.Error(err))
		return Message{}, false
	}
	defer db.Close()

	// The handle table stores addresses in varying formats, so try the
	// normalized number first and the raw recipient second.
	patterns := []string{
		"%" + NormalizeRecipient(recipient) + "%",
		"%" + recipient + "%",
	}
	for _, pattern := range patterns {
		msg, found, matched, err := m.queryLatest(ctx, db, pattern)
		if err != nil {
			m.logger.Warn("query Messages database", zap.Error(err))
			return Message{}, false
		}
		if found {
			return msg, true
		}
		if matched {
			// Conversation exists but every recent row is ours: report
			// "no inbound" without trying the next pattern.
			return Message{}, false
		}
	}
	return Message{}, false
}

func (m *IMessage) queryLatest(ctx context.Context, db *sql.DB, pattern string) (msg Message, found, matched bool, err error) {
	rows, err := db.QueryContext(ctx, latestQuery, pattern)
	if err != nil {
		return Message{}, false, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var text sql.NullString
		var rowid int64
		var isFromMe int
		if err := rows.Scan(&text, &rowid, &isFromMe); err != nil {
			return Message{}, false, matched, err
		}
		matched = true
		if isFromMe == 0 && text.Valid && text.String != "" {
			return Message{Text: text.String, ID: rowid}, true, true, nil
		}
	}
	return Message{}, false, matched, rows.Err()
}

// NormalizeRecipient strips formatting punctuation and a leading US country
// code so a configured "+1 (607) 555-1234" matches the bare handle stored in
// chat.db.
func NormalizeRecipient(recipient string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	normalized := r.Replace(recipient)
	if strings.HasPrefix(normalized, "+1") {
		return normalized[2:]
	}
	if strings.HasPrefix(normalized, "1") && len(normalized) == 11 {
		return normalized[1:]
	}
	return normalized
}
