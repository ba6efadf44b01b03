package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/logging"
)

// Consumer appends every appointment event to an audit log file, one
// line per event.  It reconnects with exponential backoff until ctx is
// cancelled.
type Consumer struct {
	URL     string
	LogPath string
	Log     *logging.Logger
}

// Run blocks until ctx is cancelled.  Malformed messages are rejected
// without requeue so a poison message cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log.WithComponent("appointment-consumer")
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.WithError(err).Warnf("dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := ch.QueueDeclare(AppointmentQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, AppointmentQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for d := range msgs {
		if err := c.handle(d.Body); err != nil {
			c.Log.WithComponent("appointment-consumer").WithError(err).Error("handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(body []byte) error {
	var ev AppointmentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.AppointmentID == 0 {
		return errors.New("event missing type or appointment id")
	}
	path := c.LogPath
	if path == "" {
		path = filepath.Join("logs", "appointments.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as one human-readable log line.
func FormatLine(ev AppointmentEvent) string {
	line := fmt.Sprintf("[%s] %s | appointment_id=%d | doctor_id=%d | patient_user_id=%d | date=%s | start_minute=%d | serial=%d | status=%s",
		ev.OccurredAt, ev.Type, ev.AppointmentID, ev.DoctorID, ev.PatientUserID, ev.Date, ev.StartMinute, ev.SerialNumber, ev.Status)
	if ev.Rating != nil {
		line += fmt.Sprintf(" | rating=%d", *ev.Rating)
	}
	return line + "\n"
}
