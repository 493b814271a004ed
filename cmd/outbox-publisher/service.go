package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// publisherFactory returns nil when no publisher exists for the topic.
type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
}

func (p ServiceParams) validate() error {
	var problems []error
	for name, missing := range map[string]bool{
		"config":          p.Config == nil,
		"logger":          p.Logger == nil,
		"database client": p.DB == nil,
		"pubsub client":   p.PubSub == nil,
		"outbox repo":     p.Repository == nil,
		"event registry":  p.Registry == nil,
		"dlq repo":        p.DLQRepository == nil,
	} {
		if missing {
			problems = append(problems, fmt.Errorf("%s is required", name))
		}
	}
	return errors.Join(problems...)
}

// Service relays committed outbox rows to Pub/Sub. Rows are claimed with
// SKIP LOCKED inside one transaction per batch, so replicas never overlap.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	registry    registryResolver
	dlq         dlqRepository
	publisherOf publisherFactory
	metrics     *metrics.OutboxMetrics

	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	tuning := params.Config.Outbox
	svc := &Service{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		repo:        params.Repository,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		publisherOf: params.PublisherFactory,
		metrics:     params.Metrics,
		batchSize:   cmp.Or(max(tuning.BatchSize, 0), defaultBatchSize),
		maxAttempts: cmp.Or(max(tuning.MaxAttempts, 0), defaultMaxAttempts),
		poll:        cmp.Or(time.Duration(max(tuning.PollIntervalMS, 0))*time.Millisecond, defaultPoll),
		now:         func() time.Time { return time.Now().UTC() },
	}
	if svc.publisherOf == nil {
		svc.publisherOf = svc.gcpPublisher
	}
	return svc, nil
}

// Run relays until ctx ends. A non-empty batch is followed straight away
// by the next claim; idle polls wait s.poll and failures double the wait
// up to maxIdleBackoff.
func (s *Service) Run(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{{"database", s.db.Ping}, {"pubsub", s.pubsub.Ping}}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := s.poll
	for ctx.Err() == nil {
		summary, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = nextBackoff(wait, s.poll, maxIdleBackoff)
		} else {
			wait = s.poll
			if summary.claimed > 0 {
				s.logBatch(ctx, summary)
				continue
			}
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher context canceled")
	return ctx.Err()
}

func (s *Service) logBatch(ctx context.Context, summary batchSummary) {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"claimed":      summary.claimed,
		"published":    summary.published,
		"retrying":     summary.retrying,
		"deadLettered": summary.deadLettered,
	}), "outbox batch relayed")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	return min(cmp.Or(current, base)*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
