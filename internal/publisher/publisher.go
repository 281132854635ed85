package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/tickgrid/tickgrid/internal/model"
)

const (
	tickStreamName    = "TICKS"
	tickSubjectPrefix = "tick."
	tickSubjects      = "tick.*"
	streamMaxAge      = 24 * time.Hour
	streamMaxMsgs     = -1
)

// TickPublisher publishes fired interval boundaries to JetStream so that
// consumers off-box can observe every schedule's cadence.
type TickPublisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewTickPublisher creates a publisher and ensures the tick stream exists
func NewTickPublisher(js nats.JetStreamContext, logger *zap.Logger) (*TickPublisher, error) {
	p := &TickPublisher{
		js:     js,
		logger: logger.Named("tick-publisher"),
	}

	if err := p.setupStream(); err != nil {
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}

	return p, nil
}

func (p *TickPublisher) setupStream() error {
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:     tickStreamName,
		Subjects: []string{tickSubjects},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  streamMaxMsgs,
	})
	if err != nil {
		if err == nats.ErrStreamNameAlreadyInUse {
			p.logger.Info("Stream already exists", zap.String("stream", tickStreamName))
			return nil
		}
		return err
	}

	p.logger.Info("Stream created successfully", zap.String("stream", tickStreamName))
	return nil
}

// Subject returns the subject tick events for a schedule are published on.
func Subject(schedule string) string {
	return tickSubjectPrefix + schedule
}

// Publish publishes one tick event on tick.<schedule>
func (p *TickPublisher) Publish(ctx context.Context, event *model.TickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal tick event: %w", err)
	}

	if _, err := p.js.Publish(Subject(event.Schedule), data, nats.Context(ctx)); err != nil {
		p.logger.Error("Failed to publish tick event",
			zap.String("schedule", event.Schedule),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Tick event published",
		zap.String("schedule", event.Schedule),
		zap.Int64("boundary_ms", event.BoundaryMS),
		zap.Int64("drift_ms", event.DriftMS))
	return nil
}

// Subscribe delivers tick events for one schedule, or for all schedules
// when schedule is empty, until ctx is done.
func (p *TickPublisher) Subscribe(ctx context.Context, schedule string, handler func(*model.TickEvent)) error {
	subject := tickSubjects
	if schedule != "" {
		subject = Subject(schedule)
	}

	sub, err := p.js.Subscribe(subject, func(msg *nats.Msg) {
		var event model.TickEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			p.logger.Error("Failed to unmarshal tick event", zap.Error(err))
			return
		}

		handler(&event)
		msg.Ack()
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return nil
}
