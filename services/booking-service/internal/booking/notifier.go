package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/handybook/handybook/services/booking-service/internal/model"
	"github.com/handybook/handybook/services/booking-service/internal/outbox"
	"github.com/handybook/handybook/services/booking-service/internal/storage"
)

// Notifier reports a completed state transition for customer notification.
// Implementations must not make delivery a precondition of the transition:
// the production notifier only records an event in the same transaction, and
// delivery happens downstream, after commit.
type Notifier interface {
	Notify(ctx context.Context, tx storage.Tx, appt model.Appointment, kind model.EventKind) error
}

// Kafka topics, one per event kind.
const (
	TopicCreated     = "booking.appointment.created.v1"
	TopicAccepted    = "booking.appointment.accepted.v1"
	TopicDeclined    = "booking.appointment.declined.v1"
	TopicRescheduled = "booking.appointment.rescheduled.v1"
)

func topicForKind(kind model.EventKind) (string, error) {
	switch kind {
	case model.EventCreated:
		return TopicCreated, nil
	case model.EventAccepted:
		return TopicAccepted, nil
	case model.EventDeclined:
		return TopicDeclined, nil
	case model.EventRescheduled:
		return TopicRescheduled, nil
	}
	return "", fmt.Errorf("unknown event kind %q", kind)
}

// OutboxNotifier writes one outbox event per transition. At-least-once
// delivery after commit; a delivery failure can never roll back the
// already-committed transition.
type OutboxNotifier struct{}

var _ Notifier = OutboxNotifier{}

func (OutboxNotifier) Notify(ctx context.Context, tx storage.Tx, appt model.Appointment, kind model.EventKind) error {
	topic, err := topicForKind(kind)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id":      appt.ID,
		"reschedule_token":    appt.RescheduleToken,
		"customer_first_name": appt.CustomerFirstName,
		"customer_last_name":  appt.CustomerLastName,
		"customer_email":      appt.CustomerEmail,
		"customer_phone":      appt.CustomerPhone,
		"requested_date":      appt.RequestedDate.Format(model.DateLayout),
		"requested_time":      appt.RequestedTime.String(),
		"time_label":          appt.RequestedTime.Label(),
		"status":              string(appt.Status),
	})
	if err != nil {
		return err
	}
	return tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     topic,
		Payload:       payload,
	})
}
