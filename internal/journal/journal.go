// Package journal persists terminal order events and completed episodes to
// SQLite for post-trade audit. The journal sits behind core.TradeRecorder;
// write failures are logged and swallowed because bookkeeping must never
// stall trading.
package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"cross_arb/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ms    INTEGER NOT NULL,
	venue    TEXT    NOT NULL,
	symbol   TEXT    NOT NULL,
	order_id TEXT    NOT NULL,
	event    TEXT    NOT NULL,
	cum_qty  TEXT    NOT NULL,
	inc_qty  TEXT    NOT NULL,
	position TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS episodes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	kind      TEXT    NOT NULL,
	opened_ms INTEGER NOT NULL,
	closed_ms INTEGER NOT NULL,
	qty       TEXT    NOT NULL
);
`

// FillJournal is the SQLite-backed trade recorder. A single mutex guards the
// writer; rows are written on the caller's goroutine.
type FillJournal struct {
	mu     sync.Mutex
	db     *sql.DB
	logger core.ILogger
}

// Open opens (or creates) the journal database at path and ensures the
// schema exists.
func Open(path string, logger core.ILogger) (*FillJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	// WAL keeps the writer from blocking any concurrent reader an operator
	// points at the file.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &FillJournal{
		db:     db,
		logger: logger.WithField("component", "journal"),
	}, nil
}

// RecordFill appends one terminal order event.
func (j *FillJournal) RecordFill(rec core.FillRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO fills (ts_ms, venue, symbol, order_id, event, cum_qty, inc_qty, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Time.UnixMilli(),
		string(rec.Venue),
		rec.Symbol,
		rec.OrderID,
		string(rec.Event),
		rec.CumQty.String(),
		rec.IncQty.String(),
		rec.Position.String(),
	)
	if err != nil {
		j.logger.Error("Failed to record fill", "order_id", rec.OrderID, "error", err)
	}
}

// RecordEpisode appends one completed open/close round trip.
func (j *FillJournal) RecordEpisode(rec core.EpisodeRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO episodes (kind, opened_ms, closed_ms, qty) VALUES (?, ?, ?, ?)`,
		rec.Kind,
		rec.StartedAt.UnixMilli(),
		rec.EndedAt.UnixMilli(),
		rec.Quantity.String(),
	)
	if err != nil {
		j.logger.Error("Failed to record episode", "kind", rec.Kind, "error", err)
	}
}

// Fills returns the journaled fills in insertion order. Intended for tests
// and offline inspection, not the hot path.
func (j *FillJournal) Fills() ([]core.FillRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT ts_ms, venue, symbol, order_id, event, cum_qty, inc_qty, position FROM fills ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var out []core.FillRecord
	for rows.Next() {
		var (
			tsMs                  int64
			venue, symbol         string
			orderID, event        string
			cumQty, incQty, posDB string
		)
		if err := rows.Scan(&tsMs, &venue, &symbol, &orderID, &event, &cumQty, &incQty, &posDB); err != nil {
			return nil, fmt.Errorf("failed to scan fill row: %w", err)
		}

		rec := core.FillRecord{
			Time:    time.UnixMilli(tsMs),
			Venue:   core.Venue(venue),
			Symbol:  symbol,
			OrderID: orderID,
			Event:   core.OrderEventType(event),
		}
		if rec.CumQty, err = parseDecimal(cumQty); err != nil {
			return nil, err
		}
		if rec.IncQty, err = parseDecimal(incQty); err != nil {
			return nil, err
		}
		if rec.Position, err = parseDecimal(posDB); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Episodes returns the journaled episodes in insertion order.
func (j *FillJournal) Episodes() ([]core.EpisodeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(`SELECT kind, opened_ms, closed_ms, qty FROM episodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var out []core.EpisodeRecord
	for rows.Next() {
		var (
			kind               string
			openedMs, closedMs int64
			qty                string
		)
		if err := rows.Scan(&kind, &openedMs, &closedMs, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan episode row: %w", err)
		}

		rec := core.EpisodeRecord{
			Kind:      kind,
			StartedAt: time.UnixMilli(openedMs),
			EndedAt:   time.UnixMilli(closedMs),
		}
		if rec.Quantity, err = parseDecimal(qty); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close flushes and closes the database.
func (j *FillJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stored decimal %q: %w", s, err)
	}
	return d, nil
}
