package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// ReportEventPublisher announces finished reports on the integrity exchange.
type ReportEventPublisher struct {
	publisher  RabbitMQPublisher
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

func NewReportEventPublisher(publisher RabbitMQPublisher, exchange, routingKey string, logger zerolog.Logger) *ReportEventPublisher {
	return &ReportEventPublisher{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}
}

func (p *ReportEventPublisher) PublishReportCompleted(ctx context.Context, event models.IntegrityReportCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal report completed event: %w", err)
	}

	if err := p.publisher.Publish(ctx, p.exchange, p.routingKey, body); err != nil {
		return fmt.Errorf("failed to publish report completed event: %w", err)
	}

	p.logger.Debug().
		Str("report_id", event.ReportID).
		Str("routing_key", p.routingKey).
		Msg("Report completed event published")
	return nil
}
