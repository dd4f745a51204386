package failures

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	fail   int
	msgs   []kafka.Message
	calls  int
	closed bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.fail {
		return errors.New("broker down")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessage(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	msg, err := Message(Report{
		RunID:       "run-1",
		Site:        "https://example.com/news.xml",
		Location:    "https://example.com/a",
		Publication: "Example Post",
		Stage:       "page",
		Error:       "fetch failed",
		Timestamp:   ts,
	})
	require.NoError(t, err)

	require.Equal(t, "https://example.com/a", string(msg.Key))
	require.Equal(t, "run-1", header(msg, "run_id"))
	require.Equal(t, "page", header(msg, "stage"))
	require.Equal(t, "fetch failed", header(msg, "error"))
	require.Equal(t, "2024-03-01T09:00:00Z", header(msg, "timestamp"))

	var decoded Report
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, "Example Post", decoded.Publication)
	require.Equal(t, ts, decoded.Timestamp)
}

func TestKafkaSinkRetries(t *testing.T) {
	w := &stubWriter{fail: 2}
	sink := newKafkaSink(w, 5, time.Millisecond, nil)

	require.NoError(t, sink.Report(context.Background(), Report{Location: "https://example.com/a"}))
	require.Equal(t, 3, w.calls)
	require.Len(t, w.msgs, 1)

	require.NoError(t, sink.Close())
	require.True(t, w.closed)
}

func TestKafkaSinkGivesUp(t *testing.T) {
	w := &stubWriter{fail: 10}
	sink := newKafkaSink(w, 3, time.Millisecond, nil)

	err := sink.Report(context.Background(), Report{Location: "https://example.com/a"})
	require.ErrorContains(t, err, "after 3 attempts")
	require.Equal(t, 3, w.calls)
}

func TestKafkaSinkStopsOnCancel(t *testing.T) {
	w := &stubWriter{fail: 10}
	sink := newKafkaSink(w, 5, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Report(ctx, Report{Location: "https://example.com/a"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, w.calls)
}

func TestNopSink(t *testing.T) {
	var sink Sink = NopSink{}
	require.NoError(t, sink.Report(context.Background(), Report{}))
	require.NoError(t, sink.Close())
}
