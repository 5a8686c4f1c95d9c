// Package notifier publishes operator-relevant events, such as integrity
// violations and retention cycle results, to the ops Kafka topic. This is
// the operational channel of the audit subsystem, distinct from the audit
// trail itself: delivery failures are logged and dropped, never retried into
// the hot path.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"trustcore/internal/audit/retention"
	"trustcore/internal/platform/kafka/producer"
)

const (
	eventIntegrityViolation = "integrity_violation"
	eventRetentionResult    = "retention_result"
)

// opsEvent is the wire shape published to the ops topic.
type opsEvent struct {
	Type       string                `json:"type"`
	OccurredAt time.Time             `json:"occurred_at"`
	SequenceID int64                 `json:"sequence_id,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Retention  *retention.TaskResult `json:"retention,omitempty"`
}

// Kafka publishes ops events through the platform producer.
type Kafka struct {
	producer *producer.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafka constructs a Kafka-backed notifier.
func NewKafka(prod *producer.Producer, topic string, logger *slog.Logger) *Kafka {
	return &Kafka{producer: prod, topic: topic, logger: logger}
}

func (k *Kafka) publish(ctx context.Context, key string, event opsEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		k.logger.ErrorContext(ctx, "marshal ops event failed", "error", err, "type", event.Type)
		return
	}
	err = k.producer.Produce(ctx, &producer.Message{
		Topic: k.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: map[string]string{
			"event_type": event.Type,
		},
	})
	if err != nil {
		k.logger.ErrorContext(ctx, "publish ops event failed", "error", err, "type", event.Type)
	}
}

// IntegrityViolation reports an entry that failed hash verification.
func (k *Kafka) IntegrityViolation(ctx context.Context, seq int64, reason string) {
	k.publish(ctx, strconv.FormatInt(seq, 10), opsEvent{
		Type:       eventIntegrityViolation,
		OccurredAt: time.Now(),
		SequenceID: seq,
		Reason:     reason,
	})
}

// RetentionResult reports the outcome of a retention cycle.
func (k *Kafka) RetentionResult(ctx context.Context, result retention.TaskResult) {
	k.publish(ctx, eventRetentionResult, opsEvent{
		Type:       eventRetentionResult,
		OccurredAt: time.Now(),
		Retention:  &result,
	})
}
