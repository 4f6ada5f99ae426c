package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/handybook/handybook/libs/db"
	otelx "github.com/handybook/handybook/libs/otel"
	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/outbox"
)

// querier is satisfied by both *pgxpool.Pool (via db.Pool) and pgx.Tx, so the
// read queries are shared between the pooled and transactional paths.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const appointmentColumns = `
	id::text, reschedule_token::text,
	customer_first_name, customer_last_name, customer_email, customer_phone,
	street_address, apt_suite, city, state, zip_code, description,
	requested_date, to_char(requested_time, 'HH24:MI'), status, created_at`

type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// WithTx runs fn inside one transaction, rolling back on error.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, s.pool, id, false)
}

func (s *PostgresStore) GetAppointmentByToken(ctx context.Context, token string) (model.Appointment, error) {
	return getAppointmentByToken(ctx, s.pool, token, false)
}

func (s *PostgresStore) ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var date time.Time
	hasDate := f.Date != nil
	if hasDate {
		date = *f.Date
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR status = $1)
			AND (NOT $2 OR requested_date = $3)
			AND ($4 = '' OR id::text = $4)
		ORDER BY requested_date DESC, requested_time DESC
		LIMIT $5
	`, string(f.Status), hasDate, date, f.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) AcceptedTimes(ctx context.Context, date time.Time, excludeID string) ([]model.TimeOfDay, error) {
	return acceptedTimes(ctx, s.pool, date, excludeID)
}

func (s *PostgresStore) IsBlackout(ctx context.Context, date time.Time) (bool, error) {
	return isBlackout(ctx, s.pool, date)
}

func (s *PostgresStore) ListBlackoutDates(ctx context.Context) ([]model.BlackoutDate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, reason
		FROM blackout_dates
		ORDER BY date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlackoutDate
	for rows.Next() {
		var b model.BlackoutDate
		if err := rows.Scan(&b.Date, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateBlackoutDate(ctx context.Context, b model.BlackoutDate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blackout_dates (date, reason)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET reason = EXCLUDED.reason
	`, b.Date, b.Reason)
	return err
}

func (s *PostgresStore) DeleteBlackoutDate(ctx context.Context, date time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM blackout_dates
		WHERE date = $1
	`, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// pgTx implements Tx on top of a live pgx transaction.
type pgTx struct {
	q pgx.Tx
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) CreateAppointment(ctx context.Context, appt *model.Appointment) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO appointments
			(id, reschedule_token,
			customer_first_name, customer_last_name, customer_email, customer_phone,
			street_address, apt_suite, city, state, zip_code, description,
			requested_date, requested_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::time, $15)
		RETURNING created_at
	`, appt.ID, appt.RescheduleToken,
		appt.CustomerFirstName, appt.CustomerLastName, appt.CustomerEmail, appt.CustomerPhone,
		appt.StreetAddress, appt.AptSuite, appt.City, appt.State, appt.ZipCode, appt.Description,
		appt.RequestedDate, appt.RequestedTime.String(), string(appt.Status),
	).Scan(&appt.CreatedAt)
}

func (t *pgTx) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, t.q, id, false)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, t.q, id, true)
}

func (t *pgTx) GetAppointmentByTokenForUpdate(ctx context.Context, token string) (model.Appointment, error) {
	return getAppointmentByToken(ctx, t.q, token, true)
}

func (t *pgTx) LockSlot(ctx context.Context, date time.Time, at model.TimeOfDay) ([]model.Appointment, error) {
	rows, err := t.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE requested_date = $1 AND requested_time = $2::time
		ORDER BY id
		FOR UPDATE
	`, date, at.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (t *pgTx) SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	row := t.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id::text = $1
		RETURNING `+appointmentColumns, id, string(status))
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return appt, nil
}

func (t *pgTx) MoveAppointment(ctx context.Context, id string, date time.Time, at model.TimeOfDay, status model.Status) (model.Appointment, error) {
	row := t.q.QueryRow(ctx, `
		UPDATE appointments
		SET requested_date = $2,
			requested_time = $3::time,
			status = $4
		WHERE id::text = $1
		RETURNING `+appointmentColumns, id, date, at.String(), string(status))
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return appt, nil
}

func (t *pgTx) DeclineOtherPending(ctx context.Context, date time.Time, at model.TimeOfDay, excludeID string) ([]model.Appointment, error) {
	rows, err := t.q.Query(ctx, `
		UPDATE appointments
		SET status = 'declined'
		WHERE requested_date = $1
			AND requested_time = $2::time
			AND status = 'pending'
			AND id::text <> $3
		RETURNING `+appointmentColumns, date, at.String(), excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (t *pgTx) AcceptedTimes(ctx context.Context, date time.Time, excludeID string) ([]model.TimeOfDay, error) {
	return acceptedTimes(ctx, t.q, date, excludeID)
}

func (t *pgTx) IsBlackout(ctx context.Context, date time.Time) (bool, error) {
	return isBlackout(ctx, t.q, date)
}

func (t *pgTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := t.q.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

func getAppointment(ctx context.Context, q querier, id string, forUpdate bool) (model.Appointment, error) {
	sql := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id::text = $1`
	if forUpdate {
		sql += `
		FOR UPDATE`
	}
	appt, err := scanAppointment(q.QueryRow(ctx, sql, id))
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return appt, nil
}

func getAppointmentByToken(ctx context.Context, q querier, token string, forUpdate bool) (model.Appointment, error) {
	sql := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE reschedule_token::text = $1`
	if forUpdate {
		sql += `
		FOR UPDATE`
	}
	appt, err := scanAppointment(q.QueryRow(ctx, sql, token))
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return appt, nil
}

func acceptedTimes(ctx context.Context, q querier, date time.Time, excludeID string) ([]model.TimeOfDay, error) {
	rows, err := q.Query(ctx, `
		SELECT to_char(requested_time, 'HH24:MI')
		FROM appointments
		WHERE requested_date = $1
			AND status = 'accepted'
			AND ($2 = '' OR id::text <> $2)
		ORDER BY requested_time
	`, date, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []model.TimeOfDay
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := model.ParseTimeOfDay(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt requested_time %q: %w", raw, err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func isBlackout(ctx context.Context, q querier, date time.Time) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blackout_dates WHERE date = $1)
	`, date).Scan(&exists)
	return exists, err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var rawTime string
	err := row.Scan(
		&appt.ID,
		&appt.RescheduleToken,
		&appt.CustomerFirstName,
		&appt.CustomerLastName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&appt.StreetAddress,
		&appt.AptSuite,
		&appt.City,
		&appt.State,
		&appt.ZipCode,
		&appt.Description,
		&appt.RequestedDate,
		&rawTime,
		&appt.Status,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.RequestedTime, err = model.ParseTimeOfDay(rawTime)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("corrupt requested_time %q: %w", rawTime, err)
	}
	return appt, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

// classify maps driver errors onto the storage sentinels.
func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

// IsTransient reports whether a transaction failed in a way that makes the
// whole operation safe to retry: serialization failures, deadlocks, and lock
// timeouts. Accept and reschedule re-derive all state from scratch, so
// nothing stale survives a retry.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}
