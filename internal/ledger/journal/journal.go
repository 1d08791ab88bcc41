// Package journal appends committed ledger events to Postgres.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/util"
)

// Entry is one journaled event.
type Entry struct {
	ID        uuid.UUID
	Seq       int64
	Source    common.Address
	RequestID *ledger.RequestID
	Name      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Encode turns evt into an entry. The request id is taken from the event
// payload when it carries one.
func Encode(source common.Address, evt ledger.Event, now time.Time) (Entry, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "failed to encode %s event", evt.EventName())
	}

	var ref struct {
		RequestID *ledger.RequestID `json:"requestId"`
	}
	if err := json.Unmarshal(payload, &ref); err != nil {
		return Entry{}, errors.Wrapf(err, "failed to read request id of %s event", evt.EventName())
	}

	return Entry{
		ID:        uuid.New(),
		Source:    source,
		RequestID: ref.RequestID,
		Name:      evt.EventName(),
		Payload:   payload,
		CreatedAt: now.UTC(),
	}, nil
}

// Journal is a ledger.EventSink writing to the ledger_events table. Each
// Publish call is written in one database transaction, in order.
type Journal struct {
	db     *sql.DB
	source common.Address
	clock  time2.Clock
}

var _ ledger.EventSink = (*Journal)(nil)

// New creates a journal for events emitted by source, a store or module.
func New(db *sql.DB, source common.Address, clock time2.Clock) *Journal {
	if clock == nil {
		clock = time2.DefaultClock
	}
	return &Journal{db: db, source: source, clock: clock}
}

func (j *Journal) Publish(ctx context.Context, events []ledger.Event) error {
	if len(events) == 0 {
		return nil
	}

	now := j.clock.Now()
	entries := make([]Entry, 0, len(events))
	for _, evt := range events {
		e, err := Encode(j.source, evt, now)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin journal transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("ledger_events", "id", "source", "request_id", "name", "payload", "created_at"))
	if err != nil {
		return errors.Wrap(err, "failed to prepare journal copy")
	}

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID.String(), e.Source.Hex(), requestIDValue(e.RequestID), e.Name, string(e.Payload), e.CreatedAt); err != nil {
			_ = stmt.Close()
			return errors.Wrapf(err, "failed to copy %s event", e.Name)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return errors.Wrap(err, "failed to flush journal copy")
	}
	if err := stmt.Close(); err != nil {
		return errors.Wrap(err, "failed to close journal copy")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit journal transaction")
	}

	util.LogFromContext(ctx).Debug().Str("component", "journal").Int("event_count", len(entries)).Msg("Journaled events")
	return nil
}

// Entries returns the journal of one request in commit order.
func (j *Journal) Entries(ctx context.Context, id ledger.RequestID) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, source, request_id, name, payload, created_at
		FROM ledger_events
		WHERE request_id = $1
		ORDER BY seq`, id.Hex())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query journal of request %s", id.Hex())
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			rawID     string
			source    string
			requestID sql.NullString
			payload   []byte
		)
		if err := rows.Scan(&rawID, &e.Seq, &source, &requestID, &e.Name, &payload, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan journal entry")
		}
		if e.ID, err = uuid.Parse(rawID); err != nil {
			return nil, errors.Wrapf(err, "invalid journal entry id %q", rawID)
		}
		e.Source = common.HexToAddress(source)
		if requestID.Valid {
			var rid ledger.RequestID
			if err := rid.UnmarshalText([]byte(requestID.String)); err != nil {
				return nil, errors.Wrapf(err, "invalid request id in journal entry %s", rawID)
			}
			e.RequestID = &rid
		}
		e.Payload = payload
		entries = append(entries, e)
	}

	return entries, errors.Wrap(rows.Err(), "failed to read journal")
}

func requestIDValue(id *ledger.RequestID) any {
	if id == nil {
		return nil
	}
	return id.Hex()
}
