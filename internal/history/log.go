package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/handyrules/internal/engine"
)

// Entry is one evaluated rule of one request.
type Entry struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"request_id"`
	RuleID    string    `json:"rule_id"`
	Kind      string    `json:"rule_type"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Matched   bool      `json:"matched"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromTrace converts the evaluated entries of a trace into log entries.
// Shell rules skipped because shell rules are off are not evaluated and
// are left out.
func FromTrace(requestID string, trace engine.Trace) []Entry {
	entries := make([]Entry, 0, len(trace.Entries))
	for _, te := range trace.Entries {
		if te.Status == engine.StatusSkipped {
			continue
		}
		entries = append(entries, Entry{
			RequestID: requestID,
			RuleID:    te.RuleID,
			Kind:      string(te.Kind),
			Input:     te.Input,
			Output:    te.Output,
			Matched:   te.Matched,
			Status:    string(te.Status),
			Error:     te.Error,
		})
	}
	return entries
}

// Append inserts entries in order and evicts the oldest rows beyond the
// log's capacity. A zero CreatedAt is set to the current time.
func (l *Log) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transformations
		(request_id, rule_id, kind, input, output, matched, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	defer stmt.Close()

	now := l.now()
	for _, e := range entries {
		at := e.CreatedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.ExecContext(ctx,
			e.RequestID,
			e.RuleID,
			e.Kind,
			e.Input,
			e.Output,
			e.Matched,
			e.Status,
			e.Error,
			at.UnixNano(),
		); err != nil {
			return fmt.Errorf("append log: %w", err)
		}
	}

	if l.maxEntries > 0 {
		// Keep the newest maxEntries rows.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM transformations
			WHERE id NOT IN (
				SELECT id FROM transformations ORDER BY id DESC LIMIT ?
			)
		`, l.maxEntries); err != nil {
			return fmt.Errorf("prune log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest entries, oldest first. n <= 0
// returns the whole log.
//
// Returns an empty slice (not nil) when the log is empty.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = -1
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, request_id, rule_id, kind, input, output, matched, status, error, created_at
		FROM (
			SELECT * FROM transformations ORDER BY id DESC LIMIT ?
		)
		ORDER BY id ASC
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}

// Count returns the number of rows in the log.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transformations").Scan(&n); err != nil {
		return 0, fmt.Errorf("count log: %w", err)
	}
	return n, nil
}

// Clear deletes every row and returns how many were removed.
func (l *Log) Clear(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM transformations")
	if err != nil {
		return 0, fmt.Errorf("clear log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear log: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e         Entry
		createdAt int64
	)
	if err := rows.Scan(
		&e.ID,
		&e.RequestID,
		&e.RuleID,
		&e.Kind,
		&e.Input,
		&e.Output,
		&e.Matched,
		&e.Status,
		&e.Error,
		&createdAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan log entry: %w", err)
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	return e, nil
}
