package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
)

func TestNewWriterValidation(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)

	_, err = New(&fakeInserter{}, Config{OrderEventsTable: " "})
	assert.Error(t, err)
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 5 * time.Second}.withDefaults()
	assert.Equal(t, defaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.MaximumBackoff)
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo":"bar"}`, nj.JSONVal)

	nj, err = EncodeJSON(nil)
	require.NoError(t, err)
	assert.False(t, nj.Valid)

	nj, err = EncodeJSON([]byte{})
	require.NoError(t, err)
	assert.False(t, nj.Valid)

	raw := json.RawMessage(`{"foo":"baz"}`)
	nj, err = EncodeJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, string(raw), nj.JSONVal)
}

func TestWriterUsesEventIDAsInsertID(t *testing.T) {
	w, fake := newTestWriter(t, Config{})

	require.NoError(t, w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"}))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "order_events", fake.calls[0].table)
	assert.Equal(t, []string{"evt-1"}, fake.calls[0].insertIDs)
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	w, fake := newTestWriter(t, Config{})
	fake.responses = []error{&googleapi.Error{Code: http.StatusServiceUnavailable}, nil}

	require.NoError(t, w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"}))
	assert.Len(t, fake.calls, 2)
	assert.Empty(t, w.buffer)
}

func TestWriterDoesNotRetryPermanentError(t *testing.T) {
	w, fake := newTestWriter(t, Config{})
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	err := w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"})
	require.Error(t, err)
	assert.Len(t, fake.calls, 1)
	assert.Len(t, w.buffer, 1)
}

func TestWriterRetriesOnlyFailedRows(t *testing.T) {
	w, fake := newTestWriter(t, Config{BatchSize: 3})
	fake.responses = []error{
		cbigquery.PutMultiError{{
			InsertID: "b",
			RowIndex: 1,
			Errors:   cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}},
		}},
		nil,
	}

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: id}))
	}
	require.Len(t, fake.calls, 2)
	assert.Equal(t, []string{"a", "b", "c"}, fake.calls[0].insertIDs)
	assert.Equal(t, []string{"b"}, fake.calls[1].insertIDs)
	assert.Empty(t, w.buffer)
}

func TestWriterKeepsOnlyRejectedRowsBuffered(t *testing.T) {
	w, fake := newTestWriter(t, Config{BatchSize: 2})
	fake.responses = []error{
		cbigquery.PutMultiError{{
			RowIndex: 0,
			Errors:   cbigquery.MultiError{errors.New("no such field: bogus")},
		}},
	}

	ctx := context.Background()
	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "a"}))
	require.Error(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "b"}))
	require.Len(t, w.buffer, 1)
	assert.Equal(t, "a", w.buffer[0].EventID)
}

func TestWriterBatchingAndFlush(t *testing.T) {
	w, fake := newTestWriter(t, Config{BatchSize: 2})
	ctx := context.Background()

	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "1"}))
	assert.Empty(t, fake.calls)

	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "2"}))
	require.Len(t, fake.calls, 1)
	assert.Len(t, fake.calls[0].insertIDs, 2)

	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "3"}))
	require.NoError(t, w.Flush(ctx))
	assert.Len(t, fake.calls, 2)
	assert.Empty(t, w.buffer)

	require.NoError(t, w.Flush(ctx))
	assert.Len(t, fake.calls, 2)
}

func TestWriterFlushesAgedBuffer(t *testing.T) {
	w, fake := newTestWriter(t, Config{BatchSize: 10, MaxBufferAge: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "1"}))
	assert.Empty(t, fake.calls)

	now = now.Add(2 * time.Minute)
	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "2"}))
	require.Len(t, fake.calls, 1)
	assert.Len(t, fake.calls[0].insertIDs, 2)
}

func TestIsRetryableBigQueryError(t *testing.T) {
	assert.True(t, isRetryableBigQueryError(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, isRetryableBigQueryError(status.Error(codes.Unavailable, "down")))
	assert.False(t, isRetryableBigQueryError(status.Error(codes.InvalidArgument, "bad")))
	assert.False(t, isRetryableBigQueryError(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isRetryableBigQueryError(cbigquery.PutMultiError{}))
	assert.False(t, isRetryableBigQueryError(errors.New("plain")))
	assert.False(t, isRetryableBigQueryError(nil))
}

type insertCall struct {
	table     string
	insertIDs []string
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if saver, ok := row.(*cbigquery.StructSaver); ok {
			ids = append(ids, saver.InsertID)
		}
	}
	idx := len(f.calls)
	f.calls = append(f.calls, insertCall{table: table, insertIDs: ids})
	if idx < len(f.responses) {
		return f.responses[idx]
	}
	return nil
}

func newTestWriter(t *testing.T, cfg Config) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	cfg.OrderEventsTable = "order_events"
	cfg.RetryPolicy = RetryPolicy{InitialBackoff: time.Millisecond, MaximumBackoff: time.Millisecond}
	w, err := New(fake, cfg)
	require.NoError(t, err)
	return w, fake
}

func TestRunFlusherDrainsAgedBuffer(t *testing.T) {
	w, fake := newTestWriter(t, Config{BatchSize: 10, MaxBufferAge: 5 * time.Millisecond})
	require.NoError(t, w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "1"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunFlusher(ctx, nil)
		close(done)
	}()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(fake.calls) == 1 && len(w.buffer) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
