// Package events publishes analysis job lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/config"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
	kafkago "github.com/segmentio/kafka-go"
)

// Event types carried in the event_type header.
const (
	TypeJobStarted      = "analysis_job.started"
	TypeJobTransitioned = "analysis_job.transitioned"
)

// JobEvent is the payload of a lifecycle event.
type JobEvent struct {
	Type       string          `json:"type"`
	JobID      uuid.UUID       `json:"job_id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	SiteID     uuid.UUID       `json:"site_id"`
	Status     models.JobState `json:"status"`
	Progress   int             `json:"progress"`
	ErrorCode  *string         `json:"error_code,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewJobEvent snapshots job into an event of the given type.
func NewJobEvent(eventType string, job *models.AnalysisJob, at time.Time) JobEvent {
	return JobEvent{
		Type:       eventType,
		JobID:      job.ID,
		TenantID:   job.TenantID,
		SiteID:     job.SiteID,
		Status:     job.Status,
		Progress:   job.Progress,
		ErrorCode:  job.ErrorCode,
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers job events. Publishing is best effort; callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev JobEvent) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by job ID, so events
// for one job stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates a producer for the configured job events topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.JobEventsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	if logger == nil {
		logger = slog.Default()
	}
	w.ErrorLogger = kafkago.LoggerFunc(func(msg string, args ...any) {
		logger.Error("kafka writer", "error", fmt.Sprintf(msg, args...))
	})
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev JobEvent) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for job %s: %w", ev.Type, ev.JobID, err)
	}
	p.logger.Debug("published job event", "type", ev.Type, "job_id", ev.JobID, "status", ev.Status)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(ev JobEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize job event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.JobID.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "occurred_at", Value: []byte(ev.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}

// NopPublisher discards events. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, JobEvent) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}

// New returns a Kafka publisher when brokers are configured and a
// NopPublisher otherwise.
func New(cfg config.KafkaConfig, logger *slog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg, logger)
}
