package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), Event{Type: Login, UserID: "u1", IP: "10.0.0.1", OccurredAt: at})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, []byte("u1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "auth.login", string(msg.Headers[0].Value))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "auth.login", got["type"])
	assert.Equal(t, "u1", got["user_id"])
	assert.Equal(t, "10.0.0.1", got["ip"])
	assert.Equal(t, "2026-05-01T10:00:00Z", got["occurred_at"])
}

func TestKafkaPublisher_FillsTimestamp(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)

	require.NoError(t, p.Publish(context.Background(), Event{Type: Logout, UserID: "u1"}))

	var got Event
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &got))
	assert.False(t, got.OccurredAt.IsZero())
	assert.Empty(t, got.IP)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(w)

	err := p.Publish(context.Background(), Event{Type: Refresh, UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.refresh")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: RefreshReuse}))
	assert.NoError(t, p.Close())
}

func TestNewKafkaPublisher_WriterConfig(t *testing.T) {
	p := NewKafkaPublisher([]string{"k1:9092", "k2:9092"}, "auth-events", nil)

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "auth-events", w.Topic)
	assert.True(t, w.Async)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
