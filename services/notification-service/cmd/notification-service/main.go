package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/handybook/handybook/libs/config"
	"github.com/handybook/handybook/libs/db"
	"github.com/handybook/handybook/libs/httpx"
	"github.com/handybook/handybook/libs/kafkax"
	otelx "github.com/handybook/handybook/libs/otel"
	"github.com/handybook/handybook/libs/runtime"
	"github.com/handybook/handybook/services/notification-service/internal/consumer"
	"github.com/handybook/handybook/services/notification-service/internal/email"
	"github.com/handybook/handybook/services/notification-service/internal/sms"
	"github.com/handybook/handybook/services/notification-service/internal/storage"
	"github.com/handybook/handybook/services/notification-service/migrations"
)

// Booking lifecycle topics this service subscribes to.
const (
	topicCreated     = "booking.appointment.created.v1"
	topicAccepted    = "booking.appointment.accepted.v1"
	topicDeclined    = "booking.appointment.declined.v1"
	topicRescheduled = "booking.appointment.rescheduled.v1"
)

type appointmentEvent struct {
	AppointmentID   string `json:"appointment_id"`
	RescheduleToken string `json:"reschedule_token"`
	FirstName       string `json:"customer_first_name"`
	LastName        string `json:"customer_last_name"`
	Email           string `json:"customer_email"`
	Phone           string `json:"customer_phone"`
	Date            string `json:"requested_date"`
	Time            string `json:"requested_time"`
	TimeLabel       string `json:"time_label"`
	Status          string `json:"status"`
}

type delivery struct {
	logger        *slog.Logger
	notifications *storage.Repository
	emailSender   email.Sender
	smsSender     sms.Sender
	templates     email.Templates
	smsOnAccept   bool
}

func (d *delivery) handle(ctx context.Context, msg kafka.Message) error {
	var evt appointmentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		d.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if evt.AppointmentID == "" || evt.Email == "" {
		d.logger.Error("missing required event fields", "topic", msg.Topic)
		return nil
	}

	data := email.EventData{
		FirstName:       evt.FirstName,
		Date:            evt.Date,
		TimeLabel:       evt.TimeLabel,
		RescheduleToken: evt.RescheduleToken,
	}

	var subject, body string
	switch msg.Topic {
	case topicCreated:
		subject, body = d.templates.Received(data)
	case topicAccepted:
		subject, body = d.templates.Accepted(data)
	case topicDeclined:
		subject, body = d.templates.Declined(data)
	case topicRescheduled:
		subject, body = d.templates.Rescheduled(data)
	default:
		d.logger.Error("unexpected topic", "topic", msg.Topic)
		return nil
	}

	record := storage.Notification{
		AppointmentID: evt.AppointmentID,
		EventType:     msg.Topic,
		Channel:       "email",
		Recipient:     evt.Email,
		Subject:       subject,
		Status:        storage.StatusSent,
	}
	if err := d.emailSender.Send(evt.Email, subject, body); err != nil {
		d.logger.Error("email send failed", "err", err, "appointment_id", evt.AppointmentID)
		record.Status = storage.StatusFailed
		record.Detail = err.Error()
	}
	if err := d.notifications.Insert(ctx, record); err != nil {
		d.logger.Error("failed to persist notification", "err", err)
		return err
	}

	if d.smsOnAccept && msg.Topic == topicAccepted && strings.TrimSpace(evt.Phone) != "" {
		text := "Your appointment on " + evt.Date + " at " + evt.TimeLabel + " is confirmed."
		smsRecord := storage.Notification{
			AppointmentID: evt.AppointmentID,
			EventType:     msg.Topic,
			Channel:       "sms",
			Recipient:     evt.Phone,
			Status:        storage.StatusSent,
		}
		if err := d.smsSender.Send(ctx, evt.Phone, text); err != nil {
			d.logger.Error("sms send failed", "err", err, "appointment_id", evt.AppointmentID)
			smsRecord.Status = storage.StatusFailed
			smsRecord.Detail = err.Error()
		}
		if err := d.notifications.Insert(ctx, smsRecord); err != nil {
			d.logger.Error("failed to persist sms notification", "err", err)
			return err
		}
	}

	d.logger.Info("booking event processed",
		"appointment_id", evt.AppointmentID,
		"topic", msg.Topic,
		"status", record.Status,
	)
	return nil
}

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := migrations.Up(ctx, pool); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@handybook.local"),
	)

	var smsSender sms.Sender = sms.NewNoopSender()
	smsOnAccept := false
	if url := config.String("SMS_WEBHOOK_URL", ""); url != "" {
		smsSender = sms.NewWebhookSender(url, config.String("SMS_WEBHOOK_TOKEN", ""))
		smsOnAccept = true
	}

	d := &delivery{
		logger:        logger,
		notifications: storage.NewRepository(pool),
		emailSender:   emailSender,
		smsSender:     smsSender,
		templates: email.Templates{
			FrontendURL: config.String("FRONTEND_URL", "http://localhost:3000"),
			CompanyName: config.String("COMPANY_NAME", "Handy Book"),
		},
		smsOnAccept: smsOnAccept,
	}

	eventConsumer := consumer.New(logger, storage.NewInbox(pool), consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  []string{topicCreated, topicAccepted, topicDeclined, topicRescheduled},
	}, d.handle)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
