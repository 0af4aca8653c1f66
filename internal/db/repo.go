package db

import (
	"context"
	"database/sql"
	"time"

	"netwatch/internal/models"
)

const defaultLimit = 100

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) InsertAlertEvent(ctx context.Context, e models.AlertJournalEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO alert_events (alert_id,interface,type,event,value,threshold,message,ts) VALUES (?,?,?,?,?,?,?,?)`,
		e.AlertID, e.Interface, string(e.Type), e.Event, e.Value, e.Threshold, e.Message, e.TS.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentAlertEvents returns the newest journal entries first.
func (r *Repository) RecentAlertEvents(ctx context.Context, limit int) ([]models.AlertJournalEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,alert_id,interface,type,event,value,threshold,message,ts
		FROM alert_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.AlertJournalEntry, 0, limit)
	for rows.Next() {
		var e models.AlertJournalEntry
		var typ string
		if err := rows.Scan(&e.ID, &e.AlertID, &e.Interface, &typ, &e.Event, &e.Value, &e.Threshold, &e.Message, &e.TS); err != nil {
			return nil, err
		}
		e.Type = models.AlertType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) InsertNotificationEvent(ctx context.Context, alertID, channel, status string, attempts int, lastErr string, sent *time.Time) error {
	var sentTS any
	if sent != nil {
		sentTS = sent.UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_events (alert_id,channel,status,attempts,last_error,sent_ts_nullable) VALUES (?,?,?,?,?,?)`, alertID, channel, status, attempts, lastErr, sentTS)
	return err
}

func (r *Repository) RecentNotificationEvents(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,alert_id,channel,status,attempts,last_error,sent_ts_nullable
		FROM notification_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.NotificationEvent, 0, limit)
	for rows.Next() {
		var n models.NotificationEvent
		var lastErr sql.NullString
		var sent sql.NullTime
		if err := rows.Scan(&n.ID, &n.AlertID, &n.Channel, &n.Status, &n.Attempts, &lastErr, &sent); err != nil {
			return nil, err
		}
		n.LastError = lastErr.String
		if sent.Valid {
			t := sent.Time
			n.SentTS = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteOlderThan trims alert transitions recorded before cutoff.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alert_events WHERE ts < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
