package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"stancesense-cloud/internal/observability/metrics"
	"stancesense-cloud/internal/storage"
	telemetry "stancesense-cloud/internal/telemetry/domain"
)

// DocumentStore is the narrow persistence collaborator. Absence of a store
// must not block ingestion.
type DocumentStore interface {
	Save(ctx context.Context, collection, docID string, document any) error
}

// Processor scores a packet into a processed packet.
type Processor interface {
	Process(packet telemetry.SensorPacket) telemetry.ProcessedPacket
}

// AlertBuilder produces a caregiver alert for a critical event.
type AlertBuilder interface {
	Build(ctx context.Context, processed telemetry.ProcessedPacket, eventType, userID string) telemetry.Alert
}

// Broadcaster fans an envelope out to live observers.
type Broadcaster interface {
	Broadcast(envelopeType string, data any)
}

// Envelope types pushed by the background chain.
const (
	envelopeProcessedData = "processed_data"
	envelopeAlert         = "alert"
)

const storeTimeout = 5 * time.Second

// Pipeline accepts validated packets, acknowledges them immediately, and
// runs the scoring, alerting, and broadcast chain in the background.
type Pipeline struct {
	store       DocumentStore
	scorer      Processor
	alerts      AlertBuilder
	broadcaster Broadcaster
	runner      *Runner
	logger      *log.Logger
}

// New constructs a pipeline. The store may be nil; everything else is
// required.
func New(scorer Processor, alerts AlertBuilder, broadcaster Broadcaster, runner *Runner, store DocumentStore, logger *log.Logger) (*Pipeline, error) {
	if scorer == nil {
		return nil, errors.New("pipeline: nil scorer")
	}
	if alerts == nil {
		return nil, errors.New("pipeline: nil alert builder")
	}
	if broadcaster == nil {
		return nil, errors.New("pipeline: nil broadcaster")
	}
	if runner == nil {
		return nil, errors.New("pipeline: nil runner")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		store:       store,
		scorer:      scorer,
		alerts:      alerts,
		broadcaster: broadcaster,
		runner:      runner,
		logger:      logger,
	}, nil
}

// Ingest persists the raw packet best-effort, schedules the background chain,
// and returns before any scoring or alerting runs.
func (p *Pipeline) Ingest(ctx context.Context, packet telemetry.SensorPacket, userID string) (string, bool) {
	id := uuid.NewString()

	saved := false
	if p.store != nil && userID != "" {
		saveCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		err := p.store.Save(saveCtx, storage.UserCollection(userID, storage.CollectionSensorData), id, packet)
		cancel()
		if err != nil {
			p.logger.Printf("pipeline: raw save failed for %s: %v", id, err)
		} else {
			saved = true
		}
	}

	p.runner.Go(func(ctx context.Context) {
		p.process(ctx, id, packet, userID)
	})
	return id, saved
}

// process runs the strictly sequential per-packet chain. Every sub-step's
// failure is logged and the chain continues; the processed-data broadcast
// happens unconditionally before any alert broadcast.
func (p *Pipeline) process(ctx context.Context, id string, packet telemetry.SensorPacket, userID string) {
	start := time.Now()

	result := metrics.ResultSuccess

	processed := p.scorer.Process(packet)
	p.logger.Printf("pipeline: processed %s critical_event=%q", id, processed.CriticalEvent)

	if !p.save(ctx, storage.UserCollection(userID, storage.CollectionProcessedData), id, processed, "processed") {
		result = metrics.ResultError
	}

	p.broadcaster.Broadcast(envelopeProcessedData, processed)

	if processed.CriticalEvent != "" {
		alert := p.alerts.Build(ctx, processed, processed.CriticalEvent, userID)
		if !p.save(ctx, storage.UserCollection(userID, storage.CollectionAlerts), id, alert, "alert") {
			result = metrics.ResultError
		}
		p.broadcaster.Broadcast(envelopeAlert, alert)
	}

	metrics.ObservePipeline(result, time.Since(start))
}

// save reports false only when a configured store rejected the write. A
// skipped save (no store, unattributed packet) is not a chain failure.
func (p *Pipeline) save(ctx context.Context, collection, id string, document any, kind string) bool {
	if p.store == nil || collection == "" {
		return true
	}
	saveCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := p.store.Save(saveCtx, collection, id, document); err != nil {
		p.logger.Printf("pipeline: %s save failed for %s: %v", kind, id, err)
		return false
	}
	return true
}
