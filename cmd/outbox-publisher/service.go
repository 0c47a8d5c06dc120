package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/logger"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 5 * time.Second
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
)

type outboxRepository interface {
	FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Service drains outbox_events into the message broker. Rows are
// published oldest first and only marked published after the broker
// accepts them, so consumers may see an event more than once but
// never miss one.
type Service struct {
	logg         *logger.Logger
	repo         outboxRepository
	broker       publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

// ServiceParams wires the publisher loop.
type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Repository outboxRepository
	Broker     publisher
}

// NewService builds the outbox publisher.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Broker == nil {
		return nil, errors.New("broker publisher is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.Outbox.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:         params.Logger,
		repo:         params.Repository,
		broker:       params.Broker,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

// Run polls until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.drainOnce(ctx); err != nil {
			s.logg.Error(ctx, "outbox drain cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drainOnce publishes one batch. Per-event failures are recorded on
// the row and do not stop the rest of the batch.
func (s *Service) drainOnce(ctx context.Context) error {
	events, err := s.repo.FetchUnpublished(s.batchSize, s.maxAttempts)
	if err != nil {
		return err
	}

	for i := range events {
		event := events[i]
		if err := s.publishOne(ctx, event); err != nil {
			eventCtx := s.logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID.String(),
				"event_type": string(event.EventType),
				"attempts":   event.AttemptCount + 1,
			})
			s.logg.Error(eventCtx, "publish outbox event failed", err)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				s.logg.Error(eventCtx, "mark outbox event failed", markErr)
			}
			continue
		}
		if err := s.repo.MarkPublished(event.ID); err != nil {
			s.logg.Error(ctx, "mark outbox event published", err)
		}
	}
	return nil
}

func (s *Service) publishOne(ctx context.Context, event models.OutboxEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return s.broker.Publish(publishCtx, routingKey(event), event.Payload)
}

// routingKey shapes topic-style keys like "order.order_created" so
// consumers can bind per aggregate or per event.
func routingKey(event models.OutboxEvent) string {
	return string(event.AggregateType) + "." + string(event.EventType)
}
