// Package storage persists the notification delivery log and the consumer
// inbox used for event deduplication.
package storage

import (
	"context"

	"github.com/handybook/handybook/libs/db"
)

// Notification records one delivery attempt for a booking event.
type Notification struct {
	AppointmentID string
	EventType     string
	Channel       string
	Recipient     string
	Subject       string
	Status        string
	Detail        string
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, event_type, channel, recipient, subject, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.AppointmentID, n.EventType, n.Channel, n.Recipient, n.Subject, n.Status, n.Detail)
	return err
}
