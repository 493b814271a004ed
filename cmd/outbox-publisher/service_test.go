package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

func orderEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopeJSON(t, id.String()),
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestProcessBatchSettlesEachRow(t *testing.T) {
	first, second := orderEvent(t, 0), orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("deadline exceeded")},
		fakePublishResult{},
	}}
	svc := newTestService(t, repo, pub, &fakeRegistry{topic: "sf-order-events"}, &fakeDLQRepo{}, nil)

	summary, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batchSummary{claimed: 2, published: 1, retrying: 1}, summary)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
}

func TestProcessBatchPublishesBeforeAwaiting(t *testing.T) {
	events := []models.OutboxEvent{orderEvent(t, 0), orderEvent(t, 0), orderEvent(t, 0)}
	pub := &orderedPublisher{}
	svc := newTestService(t, &fakeRepo{events: events}, pub, &fakeRegistry{topic: "sf-order-events"}, &fakeDLQRepo{}, nil)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"publish", "publish", "publish", "get", "get", "get"}, pub.calls)
	require.Len(t, pub.messages, 3)
	assert.Equal(t, events[0].ID.String(), pub.messages[0].Attributes["event_id"])
	assert.Equal(t, string(enums.AggregateOrder), pub.messages[0].Attributes["aggregate_type"])
}

func TestProcessBatchRecordsMetrics(t *testing.T) {
	event := orderEvent(t, 0)
	event.EventType = enums.EventEmailRequested
	event.AggregateType = enums.AggregateUser
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}

	var topics []string
	svc := newTestService(t, repo, pub, &fakeRegistry{topic: "sf-notification-events"}, &fakeDLQRepo{}, nil)
	svc.publisherOf = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}
	reg := prometheus.NewRegistry()
	svc.metrics = metrics.NewOutboxMetrics(reg)

	summary, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.published)
	assert.Equal(t, []string{"sf-notification-events"}, topics)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "storefront_outbox_published_total" {
			found = true
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestProcessBatchEmpty(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	summary, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.claimed)
}

func TestProcessBatchDeadLettersUnresolvableRow(t *testing.T) {
	event := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	reg := &fakeRegistry{err: errors.New("unknown event type")}
	svc := newTestService(t, repo, &fakePublisher{}, reg, dlq, nil)

	summary, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.deadLettered)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.JSONEq(t, string(event.Payload), string(entry.Payload))
	assert.Equal(t, enums.OutboxDLQErrorReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersMissingPublisher(t *testing.T) {
	event := orderEvent(t, 0)
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, &fakeRepo{events: []models.OutboxEvent{event}}, nil, &fakeRegistry{topic: "missing"}, dlq, nil)
	svc.publisherOf = func(string) publisher { return nil }

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQErrorReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestProcessBatchDeadLettersAtMaxAttempts(t *testing.T) {
	event := orderEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, pub, &fakeRegistry{topic: "sf-order-events"}, dlq, &config.OutboxConfig{
		BatchSize:   1,
		MaxAttempts: 2,
	})

	summary, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batchSummary{claimed: 1, deadLettered: 1}, summary)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQErrorReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Contains(t, *dlq.entries[0].ErrorMessage, "max publish attempts")
	assert.Empty(t, repo.failed)
}

func TestProcessBatchPropagatesClaimError(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("relation outbox_events does not exist")}
	svc := newTestService(t, repo, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	_, err := svc.processBatch(context.Background())
	require.Error(t, err)
}

func TestNewServiceDefaults(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, &config.OutboxConfig{})
	assert.Equal(t, defaultBatchSize, svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	assert.Equal(t, defaultPoll, svc.poll)
}

func TestRunStopsWhenDatabaseDown(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	svc.db = &fakeDB{pingErr: errors.New("connection refused")}
	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database ping failed")
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, time.Second, 10*time.Second))
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, 10*time.Second))
	assert.Zero(t, withJitter(0))

	got := withJitter(time.Second)
	assert.GreaterOrEqual(t, got, time.Second)
	assert.Less(t, got, time.Second+jitterWindow)
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		outboxCfg = *override
	}
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	require.NoError(t, err)
	return svc
}

func envelopeJSON(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(tb, err)
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, f.fetchErr
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID, _ time.Time) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
}

func (f *fakePublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

// orderedPublisher records the interleaving of Publish and Get calls.
type orderedPublisher struct {
	calls    []string
	messages []*gcppubsub.Message
}

func (o *orderedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	o.calls = append(o.calls, "publish")
	o.messages = append(o.messages, msg)
	return orderedResult{o}
}

type orderedResult struct {
	o *orderedPublisher
}

func (r orderedResult) Get(context.Context) (string, error) {
	r.o.calls = append(r.o.calls, "get")
	return "server-id", nil
}

type fakeRegistry struct {
	topic string
	err   error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: f.topic, AggregateType: event.AggregateType},
		Envelope:   outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()},
	}, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
