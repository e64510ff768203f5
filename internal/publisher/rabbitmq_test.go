package publisher

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweet_fetcher/internal/domain"
)

func TestNewPublishing(t *testing.T) {
	lat, lon := 40.7128, -74.006
	record := &domain.Record{
		PostID:    "1501",
		AuthorID:  "42",
		CreatedAt: time.Date(2022, 3, 12, 10, 0, 0, 0, time.UTC),
		Latitude:  &lat,
		Longitude: &lon,
		Text:      "felt that one",
	}
	now := time.Date(2022, 3, 12, 11, 0, 0, 0, time.FixedZone("CET", 3600))

	msg, err := newPublishing(record, now)
	require.NoError(t, err)

	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "1501", msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, true, body["has_coordinates"])
	assert.Equal(t, "2022-03-12T10:00:00Z", body["timestamp"])

	rec, ok := body["record"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1501", rec["post_id"])
	assert.Equal(t, 40.7128, rec["latitude"])
	assert.Nil(t, rec["place_id"])
}

func TestNewPublishing_WithoutCoordinates(t *testing.T) {
	msg, err := newPublishing(&domain.Record{PostID: "7"}, time.Now())
	require.NoError(t, err)

	var received RecordMessage
	require.NoError(t, json.Unmarshal(msg.Body, &received))
	assert.False(t, received.HasCoordinates)
	assert.Nil(t, received.Record.Latitude)
}
