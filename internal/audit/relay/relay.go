// Package relay pushes committed audit records to Kafka. Records commit in
// the same transaction as their mutation; the relay publishes after the fact
// so a broker outage can never block or roll back engine operations.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"governa/internal/audit"
	"governa/internal/platform/kafka/producer"
	"governa/internal/platform/metrics"
)

// Relay polls the audit store for unpublished records and publishes them.
type Relay struct {
	source       audit.RelaySource
	producer     *producer.Producer
	topic        string
	batchSize    int
	pollInterval time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Relay.
type Option func(*Relay)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(r *Relay) {
		r.topic = topic
	}
}

// WithBatchSize sets the maximum number of records to fetch per poll.
func WithBatchSize(size int) Option {
	return func(r *Relay) {
		r.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Relay) {
		r.pollInterval = interval
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// New creates a new audit relay.
func New(source audit.RelaySource, prod *producer.Producer, opts ...Option) *Relay {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Relay{
		source:       source,
		producer:     prod,
		topic:        "governa.audit.events",
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start begins the polling loop in a background goroutine.
func (r *Relay) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop cancels the polling loop and waits for the current batch to finish.
func (r *Relay) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Relay) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.publishBatch()
		}
	}
}

// publishBatch drains one batch. A failed record stops the batch so ordering
// is preserved; the next poll retries from the same record.
func (r *Relay) publishBatch() {
	records, err := r.source.NextUnpublished(r.ctx, r.batchSize)
	if err != nil {
		if r.ctx.Err() == nil && r.logger != nil {
			r.logger.Error("failed to fetch unpublished audit records", "error", err)
		}
		return
	}

	for _, record := range records {
		if err := r.publish(record); err != nil {
			if r.metrics != nil {
				r.metrics.AuditRelayFailures.Inc()
			}
			if r.logger != nil {
				r.logger.Error("failed to publish audit record",
					"error", err,
					"record_id", record.ID,
					"action", record.Action,
				)
			}
			return
		}
		if err := r.source.MarkPublished(r.ctx, record.ID); err != nil {
			if r.logger != nil {
				r.logger.Error("failed to mark audit record published",
					"error", err,
					"record_id", record.ID,
				)
			}
			return
		}
		if r.metrics != nil {
			r.metrics.AuditRelayPublished.Inc()
		}
	}
}

func (r *Relay) publish(record *audit.Record) error {
	payload, err := json.Marshal(map[string]any{
		"id":        record.ID.String(),
		"seq":       record.Seq,
		"timestamp": record.Timestamp,
		"actor":     record.Actor,
		"action":    string(record.Action),
		"target":    record.Target,
		"details":   record.Details,
	})
	if err != nil {
		return err
	}

	return r.producer.Produce(r.ctx, &producer.Message{
		Topic: r.topic,
		// Key by target so all records for one entity land on one partition.
		Key:   []byte(record.Target),
		Value: payload,
	})
}
