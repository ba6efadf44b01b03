package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("chatty").GetLevel())
}

func TestJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.WithComponent("booking").WithField("doctor_id", 7).Info("booked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "booked", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "booking", entry["component"])
	assert.Contains(t, entry, "timestamp")
}

func TestWithAppointment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.WithAppointment(11, 7, "2025-03-03", 540).Warn("retry")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 11, entry["appointment_id"])
	assert.Equal(t, "2025-03-03", entry["date"])
}
