package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"event-board/internal/domain"
	"event-board/internal/repository"
)

const createEventsTables = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NULL,
	location TEXT NULL,
	image_url TEXT NULL,
	image_key TEXT NOT NULL DEFAULT '',
	featured INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_featured ON events(featured);
CREATE TABLE IF NOT EXISTS event_dates (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	date_time DATETIME NOT NULL,
	FOREIGN KEY(event_id) REFERENCES events(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_event_dates_event_id ON event_dates(event_id);
`

const selectEventColumns = `e.id, e.title, e.description, e.location, e.image_url, e.image_key, e.featured, e.created_at, e.updated_at`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createEventsTables); err != nil {
		return fmt.Errorf("create events tables: %w", err)
	}
	return nil
}

func (r *EventRepository) Create(ctx context.Context, event *domain.Event) error {
	now := time.Now().UTC()
	event.ID = uuid.NewString()
	event.CreatedAt = now
	event.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `
INSERT INTO events (id, title, description, location, image_url, image_key, featured, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		event.Description,
		event.Location,
		event.ImageURL,
		event.ImageKey,
		event.Featured,
		event.CreatedAt,
		event.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := insertDates(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *EventRepository) Update(ctx context.Context, event *domain.Event, replaceDates bool) error {
	event.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	res, err := tx.ExecContext(ctx, `
UPDATE events
SET title=?, description=?, location=?, image_url=?, image_key=?, featured=?, updated_at=?
WHERE id=?`,
		event.Title,
		event.Description,
		event.Location,
		event.ImageURL,
		event.ImageKey,
		event.Featured,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if err := expectAffected(res, "event"); err != nil {
		return err
	}

	if replaceDates {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_dates WHERE event_id=?`, event.ID); err != nil {
			return fmt.Errorf("delete event dates: %w", err)
		}
		if err := insertDates(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_dates WHERE event_id=?`, id); err != nil {
		return fmt.Errorf("delete event dates: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if err := expectAffected(res, "event"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+selectEventColumns+`
FROM events e
WHERE e.id = ?`, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	dates, err := r.listDates(ctx, []string{event.ID})
	if err != nil {
		return nil, err
	}
	event.Dates = dates[event.ID]
	return event, nil
}

func (r *EventRepository) List(ctx context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.Featured != nil {
		where = append(where, "e.featured = ?")
		args = append(args, *filter.Featured)
	}

	query := `
SELECT ` + selectEventColumns + `
FROM events e
LEFT JOIN (
	SELECT event_id, MIN(date_time) AS first_date
	FROM event_dates
	GROUP BY event_id
) fd ON fd.event_id = e.id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}

	switch filter.Sort {
	case repository.SortByCreated:
		query += "\nORDER BY e.created_at DESC, e.id ASC"
	default:
		query += "\nORDER BY fd.first_date IS NULL, fd.first_date ASC, e.created_at ASC, e.id ASC"
	}

	query += "\nLIMIT ? OFFSET ?"
	args = append(args, filter.Take, filter.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var (
		events []domain.Event
		ids    []string
	)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *event)
		ids = append(ids, event.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if len(events) == 0 {
		return events, nil
	}

	dates, err := r.listDates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Dates = dates[events[i].ID]
	}
	return events, nil
}

func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (r *EventRepository) listDates(ctx context.Context, eventIDs []string) (map[string][]domain.EventDate, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, event_id, date_time
FROM event_dates
WHERE event_id IN (`+placeholders+`)
ORDER BY date_time ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query event dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string][]domain.EventDate, len(eventIDs))
	for rows.Next() {
		var d domain.EventDate
		if err := rows.Scan(&d.ID, &d.EventID, &d.DateTime); err != nil {
			return nil, fmt.Errorf("scan event date: %w", err)
		}
		d.DateTime = d.DateTime.UTC()
		dates[d.EventID] = append(dates[d.EventID], d)
	}
	return dates, rows.Err()
}

func insertDates(ctx context.Context, tx *sql.Tx, event *domain.Event) error {
	for i := range event.Dates {
		d := &event.Dates[i]
		d.ID = uuid.NewString()
		d.EventID = event.ID
		d.DateTime = d.DateTime.UTC()
		if _, err := tx.ExecContext(ctx, `
INSERT INTO event_dates (id, event_id, date_time)
VALUES (?, ?, ?)`,
			d.ID,
			d.EventID,
			d.DateTime,
		); err != nil {
			return fmt.Errorf("insert event date: %w", err)
		}
	}
	return nil
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return nil
}

func scanEvent(row interface {
	Scan(dest ...any) error
}) (*domain.Event, error) {
	var event domain.Event
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.ImageURL,
		&event.ImageKey,
		&event.Featured,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
