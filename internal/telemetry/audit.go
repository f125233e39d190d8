package telemetry

import (
	"context"
	"time"

	"relay-service/internal/logger"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	Participant   string       `json:"participant,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Operation string `json:"operation"`
	Detail    string `json:"detail,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes an audit event. Failures are logged, never propagated;
// audit must not fail the request that produced it.
func (e *AuditEmitter) Emit(ctx context.Context, operation, detail, requestID, participant string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "relay_audit",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Participant:   participant,
		Payload: AuditPayload{
			Operation: operation,
			Detail:    detail,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		logger.Error().Err(err).Str("operation", operation).Msg("audit publish failed")
	}
}
