// Package ledger provides an append-only audit history of accepted
// protocol commands.
package ledger

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Entry represents a single recorded command
type Entry struct {
	ID        int64
	Timestamp time.Time
	Session   string
	LED       int
	Command   string
	Args      []string
}

// Ledger provides append-only command logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new command record to the ledger
func (l *Ledger) Append(session string, led int, command string, args []string) error {
	now := time.Now().UTC().Unix()

	_, err := l.db.Exec(`
		INSERT INTO command_ledger (timestamp, session, led, command, args)
		VALUES (?, ?, ?, ?, ?)
	`, now, session, led, command, strings.Join(args, " "))

	return err
}

// Recent returns the most recent entries, newest first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, session, led, command, args
		FROM command_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var args string

		if err := rows.Scan(&e.ID, &ts, &e.Session, &e.LED, &e.Command, &args); err != nil {
			return nil, err
		}

		e.Timestamp = time.Unix(ts, 0).UTC()
		if args != "" {
			e.Args = strings.Fields(args)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// BySession returns all entries recorded for one session, oldest first
func (l *Ledger) BySession(session string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, session, led, command, args
		FROM command_ledger
		WHERE session = ?
		ORDER BY id ASC
	`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var args string

		if err := rows.Scan(&e.ID, &ts, &e.Session, &e.LED, &e.Command, &args); err != nil {
			return nil, err
		}

		e.Timestamp = time.Unix(ts, 0).UTC()
		if args != "" {
			e.Args = strings.Fields(args)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Prune removes entries older than the retention window
func (l *Ledger) Prune(olderThan time.Time) (int64, error) {
	res, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, olderThan.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunCleanup periodically removes entries older than the retention
// window. It blocks until ctx is cancelled.
func (l *Ledger) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := l.Prune(time.Now().Add(-retention))
			if err != nil {
				log.Error().Err(err).Msg("Failed to clean up old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
