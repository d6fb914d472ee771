package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medprep-backend/internal/config"
	"github.com/medprep-backend/internal/domain"
)

type fakeRecorder struct {
	calls int
	errs  []error
}

func (f *fakeRecorder) RecordWatch(_ context.Context, _ domain.WatchEvent) (bool, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return false, f.errs[f.calls-1]
	}
	return true, nil
}

func newTestConsumer(recorder WatchRecorder) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:   &config.KafkaConfig{RetryAttempts: 3},
		recorder: recorder,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func TestProcessWithRetry_Success(t *testing.T) {
	rec := &fakeRecorder{}
	c := newTestConsumer(rec)

	err := c.processWithRetry(domain.WatchEvent{UserID: "u1", VideoID: "v1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
}

func TestProcessWithRetry_TransientFailureRetries(t *testing.T) {
	rec := &fakeRecorder{errs: []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
	}}
	c := newTestConsumer(rec)

	err := c.processWithRetry(domain.WatchEvent{UserID: "u1", VideoID: "v1"})
	assert.NoError(t, err)
	assert.Equal(t, 3, rec.calls)
}

func TestProcessWithRetry_ExhaustedAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	rec := &fakeRecorder{errs: []error{boom, boom, boom}}
	c := newTestConsumer(rec)

	err := c.processWithRetry(domain.WatchEvent{UserID: "u1", VideoID: "v1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, rec.calls)
}

// Events for users the database does not know can never succeed, so the
// consumer must drop them after the first attempt instead of retrying.
func TestProcessWithRetry_UnknownUserIsPermanent(t *testing.T) {
	rec := &fakeRecorder{errs: []error{
		fmt.Errorf("watch record for unknown user u1: %w", domain.ErrUserNotFound),
		domain.ErrUserNotFound,
		domain.ErrUserNotFound,
	}}
	c := newTestConsumer(rec)

	err := c.processWithRetry(domain.WatchEvent{UserID: "u1", VideoID: "v1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
}

func TestProcessWithRetry_InvalidEventIsPermanent(t *testing.T) {
	rec := &fakeRecorder{errs: []error{
		domain.ErrInvalidRequest,
		domain.ErrInvalidRequest,
	}}
	c := newTestConsumer(rec)

	err := c.processWithRetry(domain.WatchEvent{UserID: "u1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
}
