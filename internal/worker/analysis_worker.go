package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker/queue"
)

// AnalysisWorker turns run requests from the queue into analysis runs. Runs
// never overlap: messages are handled one at a time in delivery order.
type AnalysisWorker interface {
	Start(ctx context.Context) error
	Stop() error
	GetStats() WorkerStats
}

type WorkerStats struct {
	TotalRuns       int       `json:"total_runs"`
	FailedRuns      int       `json:"failed_runs"`
	DroppedMessages int       `json:"dropped_messages"`
	StaleRequests   int       `json:"stale_requests"`
	LastRunID       string    `json:"last_run_id,omitempty"`
	LastRunAt       time.Time `json:"last_run_at,omitempty"`
	QueueLength     int       `json:"queue_length"`
}

type analysisWorker struct {
	queueConsumer queue.RabbitMQConsumer
	runner        service.AnalysisRunner
	logger        zerolog.Logger
	stats         WorkerStats
	statsMutex    sync.RWMutex
	startTime     time.Time
	done          chan struct{}
	stopOnce      sync.Once
}

func NewAnalysisWorker(queueConsumer queue.RabbitMQConsumer, runner service.AnalysisRunner, logger zerolog.Logger) AnalysisWorker {
	return &analysisWorker{
		queueConsumer: queueConsumer,
		runner:        runner,
		logger:        logger.With().Str("component", "analysis_worker").Logger(),
		startTime:     time.Now(),
		done:          make(chan struct{}),
	}
}

func (w *analysisWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting analysis worker...")

	msgs, err := w.queueConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Analysis worker started successfully")
	return nil
}

// Stop closes the consumer and waits for the run in progress, if any.
func (w *analysisWorker) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.logger.Info().Msg("Stopping analysis worker...")

		if closeErr := w.queueConsumer.Close(); closeErr != nil {
			w.logger.Error().Err(closeErr).Msg("Failed to close queue consumer")
			err = closeErr
		}

		<-w.done

		stats := w.GetStats()
		w.logger.Info().
			Int("total_runs", stats.TotalRuns).
			Int("failed_runs", stats.FailedRuns).
			Dur("uptime", time.Since(w.startTime)).
			Msg("Analysis worker stopped")
	})
	return err
}

func (w *analysisWorker) processMessages(ctx context.Context, msgs <-chan queue.RabbitMQMessage) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *analysisWorker) handle(ctx context.Context, msg queue.RabbitMQMessage) {
	err := w.processMessage(ctx, msg)
	if err == nil {
		if settleErr := msg.Complete(); settleErr != nil {
			w.logger.Error().Err(settleErr).Str("message_id", msg.MessageID).Msg("Failed to ack message")
		}
		return
	}

	if isPermanentError(err) {
		w.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("Dropping unprocessable message")
		w.statsMutex.Lock()
		w.stats.DroppedMessages++
		w.statsMutex.Unlock()

		if settleErr := msg.Discard(); settleErr != nil {
			w.logger.Error().Err(settleErr).Str("message_id", msg.MessageID).Msg("Failed to ack message")
		}
		return
	}

	requeued, settleErr := msg.Retry()
	if settleErr != nil {
		w.logger.Error().Err(settleErr).Str("message_id", msg.MessageID).Msg("Failed to nack message")
	}
	w.logger.Error().
		Err(err).
		Str("message_id", msg.MessageID).
		Bool("requeued", requeued).
		Msg("Analysis run failed")
}

func (w *analysisWorker) processMessage(ctx context.Context, msg queue.RabbitMQMessage) error {
	event, err := queue.DecodeRunRequest(msg.Body)
	if err != nil {
		return permanent(err)
	}

	if w.isStale(event) {
		w.logger.Info().
			Str("requested_by", event.RequestedBy).
			Int64("requested_at", event.Timestamp).
			Msg("Run request predates the last completed run, skipping")
		w.statsMutex.Lock()
		w.stats.StaleRequests++
		w.statsMutex.Unlock()
		return nil
	}

	w.logger.Info().
		Str("exam_id", event.ExamID).
		Str("requested_by", event.RequestedBy).
		Str("reason", event.Reason).
		Msg("Processing analysis run request")

	startedAt := time.Now()
	report, err := w.runner.Run(ctx)

	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()
	if err != nil {
		w.stats.FailedRuns++
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("analysis run cancelled: %w", err)
		}
		return fmt.Errorf("analysis run failed: %w", err)
	}

	w.stats.TotalRuns++
	w.stats.LastRunID = report.ID
	w.stats.LastRunAt = startedAt
	return nil
}

// isStale reports whether a completed run started after the request was
// made, so its report already covers the request.
func (w *analysisWorker) isStale(event models.RunRequestedEvent) bool {
	if event.Timestamp <= 0 {
		return false
	}

	w.statsMutex.RLock()
	defer w.statsMutex.RUnlock()

	if w.stats.LastRunAt.IsZero() {
		return false
	}
	// Timestamps have second precision, so compare against the end of that second.
	return time.Unix(event.Timestamp+1, 0).Before(w.stats.LastRunAt)
}

func (w *analysisWorker) GetStats() WorkerStats {
	w.statsMutex.RLock()
	stats := w.stats
	w.statsMutex.RUnlock()

	queueLength, err := w.queueConsumer.GetQueueLength()
	if err != nil {
		w.logger.Debug().Err(err).Msg("Failed to get queue length")
	} else {
		stats.QueueLength = queueLength
	}

	return stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
