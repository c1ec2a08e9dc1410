package producer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"becoming/pkg/platform/events"
)

func TestNewValidation(t *testing.T) {
	_, err := New(nil, "becoming.events")
	require.ErrorContains(t, err, "broker")

	_, err = New([]string{"localhost:9092"}, "")
	require.ErrorContains(t, err, "topic")
}

func TestToRecord(t *testing.T) {
	event := events.Event{
		ID:        uuid.MustParse("6f0c0b1e-4d1a-4c55-9a51-2f1f0f4e8a11"),
		Name:      "TipSent",
		Topics:    []string{"0xaa", "0xbb"},
		Payload:   json.RawMessage(`{"amount":50}`),
		RequestID: "req-9",
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	record, err := toRecord("becoming.events", event)
	require.NoError(t, err)

	assert.Equal(t, "becoming.events", record.Topic)
	assert.Equal(t, []byte("0xaa"), record.Key, "keyed by first topic")
	require.Len(t, record.Headers, 2)
	assert.Equal(t, HeaderEventType, record.Headers[0].Key)
	assert.Equal(t, "TipSent", string(record.Headers[0].Value))
	assert.Equal(t, HeaderRequestID, record.Headers[1].Key)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.JSONEq(t, `{"amount":50}`, string(decoded.Payload))
}

func TestToRecordWithoutTopicsOrRequestID(t *testing.T) {
	record, err := toRecord("t", events.Event{ID: uuid.New(), Name: "Minted"})
	require.NoError(t, err)
	assert.Nil(t, record.Key)
	assert.Len(t, record.Headers, 1)
}
