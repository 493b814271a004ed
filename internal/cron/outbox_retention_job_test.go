package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// purgeStub pretends remaining rows are older than any cutoff.
type purgeStub struct {
	remaining int64
	cutoffs   []time.Time
	failOn    int
}

func (p *purgeStub) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	if p.failOn > 0 && len(p.cutoffs) == p.failOn {
		return 0, errors.New("statement timeout")
	}
	n := min(p.remaining, int64(limit))
	p.remaining -= n
	return n, nil
}

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func retentionJob(t *testing.T, repo *purgeStub, retention time.Duration, batch int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         inlineTx{},
		Repository: repo,
		Retention:  retention,
		BatchSize:  batch,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionDeletesInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &purgeStub{remaining: 25}
	job := retentionJob(t, repo, 0, 10)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, repo.remaining)
	require.Len(t, repo.cutoffs, 3)
	for _, c := range repo.cutoffs {
		assert.Equal(t, now.Add(-defaultOutboxRetention), c)
	}
}

func TestOutboxRetentionHonoursWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &purgeStub{}
	job := retentionJob(t, repo, 48*time.Hour, 0)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []time.Time{now.Add(-48 * time.Hour)}, repo.cutoffs)
	assert.Equal(t, retentionBatchSize, job.batch)
}

func TestOutboxRetentionStopsOnError(t *testing.T) {
	repo := &purgeStub{remaining: 100, failOn: 2}
	job := retentionJob(t, repo, 0, 10)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 10 rows")
	assert.Len(t, repo.cutoffs, 2)
}

func TestOutboxRetentionRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := &purgeStub{remaining: 100}

	assert.ErrorIs(t, retentionJob(t, repo, 0, 10).Run(ctx), context.Canceled)
	assert.Empty(t, repo.cutoffs)
}

func TestNewOutboxRetentionJobValidates(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{})
	assert.Error(t, err)
}
