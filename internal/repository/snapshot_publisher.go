package repository

import (
	"context"

	"GapSight/internal/domain/models"
	domrepo "GapSight/internal/domain/repository"
	pkgkafka "GapSight/pkg/kafka"
)

// KafkaSnapshotPublisher publishes snapshots keyed by account, so one account's
// history stays on one partition.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, s *models.FollowerSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Account), s)
}

func (p *KafkaSnapshotPublisher) PublishBatch(ctx context.Context, snaps []*models.FollowerSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(snaps))
	for _, s := range snaps {
		if s == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(s.Account), Value: s})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close does not close the producer; it is shared with the log collector.
func (p *KafkaSnapshotPublisher) Close() error { return nil }
