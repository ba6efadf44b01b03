// Package logging provides the service's structured JSON logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with scheduler-specific helpers.
type Logger struct {
	*logrus.Logger
}

// New creates a JSON logger writing to stdout at the named level.
// Unknown level names fall back to info.
func New(level string) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(level string, out io.Writer) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	return &Logger{Logger: log}
}

// Discard returns a logger that drops everything.  Tests use it.
func Discard() *Logger {
	return NewWithOutput("panic", io.Discard)
}

// WithComponent tags entries with the emitting component.
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithAppointment tags entries with the ledger key of an appointment.
func (l *Logger) WithAppointment(id, doctorID uint64, date string, startMinute int) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"appointment_id": id,
		"doctor_id":      doctorID,
		"date":           date,
		"start_minute":   startMinute,
	})
}
