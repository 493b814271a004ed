package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const heartbeatInterval = time.Minute

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

// ServiceParams wires the mailer worker. Dependencies are pinged in the
// order given before any consumer starts.
type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies map[string]pinger
	Order        []string
	Consumers    map[string]runner
}

type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	order     []string
	consumers map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for _, name := range params.Order {
		if params.Dependencies[name] == nil {
			return nil, fmt.Errorf("%s client is required", name)
		}
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("%s consumer is required", name)
		}
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		order:     params.Order,
		consumers: params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, name := range s.order {
		if err := pingDependency(ctx, s.logg, name, s.deps[name].Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or any consumer exits. One consumer
// failing stops the others.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for name, c := range s.consumers {
		group.Go(func() error {
			err := c.Run(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(groupCtx, fmt.Sprintf("%s consumer stopped unexpectedly", name), err)
				return fmt.Errorf("%s consumer: %w", name, err)
			}
			if err == nil && groupCtx.Err() == nil {
				return fmt.Errorf("%s consumer exited", name)
			}
			return err
		})
	}
	group.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case <-ticker.C:
				s.logg.Debug(groupCtx, "worker heartbeat")
			}
		}
	})

	err := group.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	return err
}
