package database

import (
	"database/sql"
	"time"
)

// Message represents one message received in the Signal group.
// Rows are append-only: they are created when a group message with
// non-empty text arrives and removed only by the retention sweep.
type Message struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"createdAt"`

	Timestamp    int64          `db:"timestamp"` // milliseconds since epoch, from the envelope
	SourceNumber sql.NullString `db:"sourceNumber"`
	SourceName   string         `db:"sourceName"`
	Message      string         `db:"message"`
	GroupID      string         `db:"groupId"`
}
