package analytics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// Writer inserts order event rows into BigQuery, retrying transient
// streaming-insert failures.
type Writer struct {
	client tableInserter
	table  string
	retry  RetryPolicy
}

// NewWriter builds a writer for the order_events table.
func NewWriter(client tableInserter, table string, retry RetryPolicy) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("order events table is required")
	}

	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &Writer{client: client, table: table, retry: retry}, nil
}

// InsertOrderEvent writes one row, retrying per the policy.
func (w *Writer) InsertOrderEvent(ctx context.Context, row OrderEventRow) error {
	backoff := w.retry.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		lastErr = w.client.InsertRows(ctx, w.table, []any{row})
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == w.retry.MaxAttempts {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.retry.MaximumBackoff {
			backoff = w.retry.MaximumBackoff
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}
