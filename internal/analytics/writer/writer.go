package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type Config struct {
	OrderEventsTable string
	BatchSize        int
	// MaxBufferAge flushes a partial batch once its oldest row is this old.
	// Zero disables age based flushing.
	MaxBufferAge time.Duration
	RetryPolicy  RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = max(defaultMaximumBackoff, p.InitialBackoff)
	}
	return p
}

// Inserter streams rows into a BigQuery table.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers order event rows and streams them in batches.
// Rows carry their event id as the insert id so BigQuery drops replays of
// the same Pub/Sub message.
type BigQueryWriter struct {
	client    Inserter
	table     string
	batchSize int
	maxAge    time.Duration
	retry     RetryPolicy
	now       func() time.Time

	mu       sync.Mutex
	buffer   []types.OrderEventRow
	oldestAt time.Time
}

func New(client Inserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, defaultBatchSize),
		maxAge:    cfg.MaxBufferAge,
		retry:     cfg.RetryPolicy.withDefaults(),
		now:       time.Now,
	}, nil
}

// InsertOrderEvent buffers row and flushes when the batch is full or the
// oldest buffered row has aged out.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buffer) == 0 {
		w.oldestAt = w.now()
	}
	w.buffer = append(w.buffer, row)

	if len(w.buffer) >= w.batchSize || w.agedOut() {
		return w.flushLocked(ctx)
	}
	return nil
}

func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// RunFlusher flushes aged partial batches until ctx is canceled so quiet
// periods do not strand rows in memory. It is a no-op without MaxBufferAge.
func (w *BigQueryWriter) RunFlusher(ctx context.Context, onErr func(error)) {
	if w.maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(w.maxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		w.mu.Lock()
		var err error
		if len(w.buffer) > 0 && w.agedOut() {
			err = w.flushLocked(ctx)
		}
		w.mu.Unlock()
		if err != nil && onErr != nil && ctx.Err() == nil {
			onErr(err)
		}
	}
}

func (w *BigQueryWriter) agedOut() bool {
	return w.maxAge > 0 && w.now().Sub(w.oldestAt) >= w.maxAge
}

// flushLocked keeps rows that could not be written in the buffer so the
// next flush retries them.
func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	remaining, err := w.insert(ctx, w.buffer)
	w.buffer = remaining
	if len(w.buffer) == 0 {
		w.buffer = nil
	}
	return err
}

func (w *BigQueryWriter) insert(ctx context.Context, pending []types.OrderEventRow) ([]types.OrderEventRow, error) {
	backoff := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return pending, err
		}

		err := w.client.InsertRows(ctx, w.table, savers(pending))
		if err == nil {
			return nil, nil
		}

		failed := failedRows(pending, err)
		if attempt >= w.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return failed, fmt.Errorf("insert %d of %d rows into %s: %w", len(failed), len(pending), w.table, err)
		}
		pending = failed

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return pending, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

func savers(rows []types.OrderEventRow) []any {
	out := make([]any, len(rows))
	for i := range rows {
		out[i] = &cbigquery.StructSaver{Struct: &rows[i], InsertID: rows[i].EventID}
	}
	return out
}

// failedRows narrows pending to the rows a PutMultiError reports. Any other
// error fails the whole batch.
func failedRows(pending []types.OrderEventRow, err error) []types.OrderEventRow {
	var pme cbigquery.PutMultiError
	if !errors.As(err, &pme) || len(pme) == 0 {
		return pending
	}
	out := make([]types.OrderEventRow, 0, len(pme))
	for _, rowErr := range pme {
		if rowErr.RowIndex >= 0 && rowErr.RowIndex < len(pending) {
			out = append(out, pending[rowErr.RowIndex])
		}
	}
	if len(out) == 0 {
		return pending
	}
	return out
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for _, rowErr := range pme {
			if !allRetryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(multi)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allRetryable(errs cbigquery.MultiError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, inner := range errs {
		if !isRetryableBigQueryError(inner) {
			return false
		}
	}
	return true
}

// EncodeJSON converts payload into a value for a BigQuery JSON column.
// Raw JSON is passed through unchanged.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
