package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/tickgrid/tickgrid/internal/model"
)

const (
	alertStreamName    = "ALERTS"
	alertSubjects      = "alert.*"
	alertSubjectPrefix = "alert."
	tickSubjects       = "tick.*"
)

// DriftMonitor watches published tick events and raises alerts when a
// schedule's observed drift exceeds a rule threshold or a job reports a
// failure. It never touches schedule state; it is a pure reader of the
// tick stream.
type DriftMonitor struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	rules    sync.Map
	observed sync.Map
	sub      *nats.Subscription
}

// NewDriftMonitor creates a new drift monitor
func NewDriftMonitor(logger *zap.Logger, js nats.JetStreamContext) *DriftMonitor {
	return &DriftMonitor{
		logger: logger.Named("drift-monitor"),
		js:     js,
	}
}

// Start starts the drift monitor
func (m *DriftMonitor) Start(ctx context.Context) error {
	// Create stream for alerts
	_, err := m.js.StreamInfo(alertStreamName)
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		_, err = m.js.AddStream(&nats.StreamConfig{
			Name:     alertStreamName,
			Subjects: []string{alertSubjects},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	// Subscribe to tick events
	sub, err := m.js.Subscribe(tickSubjects, m.handleTick)
	if err != nil {
		return fmt.Errorf("failed to subscribe to tick events: %w", err)
	}
	m.sub = sub

	m.logger.Info("Drift monitor started")
	return nil
}

// Stop stops the drift monitor
func (m *DriftMonitor) Stop() {
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
}

// AddRule adds a new alert rule
func (m *DriftMonitor) AddRule(rule *model.AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	m.rules.Store(rule.ID, rule)
	return nil
}

// UpdateRule updates an existing alert rule
func (m *DriftMonitor) UpdateRule(rule *model.AlertRule) error {
	if _, ok := m.rules.Load(rule.ID); !ok {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	rule.UpdatedAt = time.Now()
	m.rules.Store(rule.ID, rule)
	return nil
}

// DeleteRule deletes an alert rule
func (m *DriftMonitor) DeleteRule(id string) error {
	if _, ok := m.rules.Load(id); !ok {
		return fmt.Errorf("rule not found: %s", id)
	}
	m.rules.Delete(id)
	return nil
}

// GetRule returns a rule by ID
func (m *DriftMonitor) GetRule(id string) (*model.AlertRule, error) {
	value, ok := m.rules.Load(id)
	if !ok {
		return nil, fmt.Errorf("rule not found: %s", id)
	}
	return value.(*model.AlertRule), nil
}

// Observed returns the latest tick event seen per schedule.
func (m *DriftMonitor) Observed() map[string]*model.TickEvent {
	events := make(map[string]*model.TickEvent)
	m.observed.Range(func(key, value interface{}) bool {
		events[key.(string)] = value.(*model.TickEvent)
		return true
	})
	return events
}

// handleTick evaluates alert rules against one published tick event
func (m *DriftMonitor) handleTick(msg *nats.Msg) {
	var event model.TickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		m.logger.Error("Failed to unmarshal tick event", zap.Error(err))
		return
	}

	m.observed.Store(event.Schedule, &event)

	m.rules.Range(func(key, value interface{}) bool {
		rule := value.(*model.AlertRule)
		if rule.Silenced {
			return true
		}
		if rule.Schedule != "" && rule.Schedule != event.Schedule {
			return true
		}

		switch rule.Type {
		case model.AlertTypeDrift:
			drift := event.DriftMS
			if drift < 0 {
				drift = -drift
			}
			if drift > rule.ThresholdMS {
				m.createAlert(rule, map[string]interface{}{
					"schedule":    event.Schedule,
					"boundary_ms": event.BoundaryMS,
					"drift_ms":    event.DriftMS,
				})
			}
		case model.AlertTypeJobFailure:
			if event.Error != "" {
				m.createAlert(rule, map[string]interface{}{
					"schedule": event.Schedule,
					"error":    event.Error,
				})
			}
		}
		return true
	})
}

// createAlert creates and publishes a new alert
func (m *DriftMonitor) createAlert(rule *model.AlertRule, data map[string]interface{}) error {
	alert := &model.Alert{
		ID:        uuid.New().String(),
		RuleID:    rule.ID,
		Type:      rule.Type,
		Severity:  rule.Severity,
		Message:   fmt.Sprintf("Alert triggered for rule: %s", rule.Name),
		Data:      data,
		CreatedAt: time.Now(),
	}

	alertData, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, err = m.js.Publish(alertSubjectPrefix+string(alert.Type), alertData)
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	m.logger.Info("Alert created",
		zap.String("id", alert.ID),
		zap.String("rule_id", alert.RuleID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)))

	return nil
}
