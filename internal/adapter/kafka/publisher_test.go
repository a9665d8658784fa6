package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

type fakeWriter struct {
	fails  int
	calls  int
	msgs   []kafkago.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("leader not available")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var published = time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)

func testPublisher(w *fakeWriter, retries uint) *Publisher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newPublisher(w, retries, func() time.Time { return published }, logger)
}

func TestSerializeToMessage(t *testing.T) {
	s := domain.Summary{RunID: "run-1", Partition: "2020-01", Reports: 4, Blacklisted: 1}

	msg, err := serializeToMessage(s, published)
	require.NoError(t, err)

	assert.Equal(t, []byte("2020-01"), msg.Key)
	assert.Contains(t, string(msg.Value), `"partition":"2020-01"`)
	assert.Contains(t, string(msg.Value), `"blacklisted":1`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "message_id", msg.Headers[0].Key)
	_, err = uuid.ParseBytes(msg.Headers[0].Value)
	assert.NoError(t, err)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, "published_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[2].Value)
}

func TestPublish_RetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{fails: 2}
	p := testPublisher(w, 3)

	require.NoError(t, p.Publish(context.Background(), domain.Summary{Partition: "2020-01"}))
	assert.Equal(t, 3, w.calls)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("2020-01"), w.msgs[0].Key)
}

func TestPublish_GivesUp(t *testing.T) {
	w := &fakeWriter{fails: 10}
	p := testPublisher(w, 1)

	err := p.Publish(context.Background(), domain.Summary{Partition: "2020-01"})
	require.ErrorContains(t, err, "leader not available")
	assert.Equal(t, 2, w.calls)
	assert.Empty(t, w.msgs)
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, testPublisher(w, 0).Close())
	assert.True(t, w.closed)
}
