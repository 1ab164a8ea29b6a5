package usecase

import (
	"context"
	"encoding/json"
	"time"

	"GapSight/internal/domain/models"
	drepo "GapSight/internal/domain/repository"
	mid "GapSight/internal/middleware"
	pkgkafka "GapSight/pkg/kafka"
)

// KafkaSnapshotsHandler writes consumed snapshot events to storage.
type KafkaSnapshotsHandler struct {
	topic   string
	storage drepo.SnapshotStorage
	metrics drepo.Metrics
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotsHandler)(nil)

func NewKafkaSnapshotsHandler(topic string, storage drepo.SnapshotStorage, metrics drepo.Metrics) *KafkaSnapshotsHandler {
	return &KafkaSnapshotsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSnapshotsHandler) Topic() string { return h.topic }

// Handle rejects undecodable or invalid events without retrying them.
func (h *KafkaSnapshotsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.FollowerSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Reject("ERR_DECODE", err.Error())
	}
	if err := mid.ValidateSnapshot(&s); err != nil {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Reject("ERR_INVALID_SNAPSHOT", err.Error())
	}
	if !s.ObservedAt.IsZero() {
		h.metrics.RecordLatency("snapshot_e2e_seconds", time.Since(s.ObservedAt).Seconds())
	}

	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordSnapshotsRouted(BackendClickHouse, 1)
	return nil
}
