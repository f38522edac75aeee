package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/config"
	"github.com/couchcryptid/incident-tracker-service/internal/observability"
	"github.com/couchcryptid/incident-tracker-service/internal/store"
	kafkago "github.com/segmentio/kafka-go"
)

// EventCollectionReplaced is the event_type header of replacement notices.
const EventCollectionReplaced = "collection_replaced"

// publishTimeout bounds each notification write.
const publishTimeout = 10 * time.Second

// CollectionReplaced is the message value published after each refresh.
type CollectionReplaced struct {
	Version            uint64     `json:"version"`
	RecordCount        int        `json:"record_count"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
	LoadedAt           time.Time  `json:"loaded_at"`
	Source             string     `json:"source,omitempty"`
	Discarded          int        `json:"discarded"`
	InvalidCoordinates int        `json:"invalid_coordinates"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier publishes collection replacement notices to a Kafka topic so
// downstream consumers know when to re-query.
type Notifier struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewNotifier creates a Kafka producer for the configured notification topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger, metrics: metrics}
}

// Publish writes one notice for snap.
func (n *Notifier) Publish(ctx context.Context, snap store.Snapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, msg)
}

// Listener adapts the notifier to store change notifications. Publish
// failures are logged and counted; they never fail the refresh.
func (n *Notifier) Listener(ctx context.Context) store.Listener {
	return func(snap store.Snapshot) {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := n.Publish(pubCtx, snap); err != nil {
			n.metrics.NotificationsPublished.WithLabelValues("error").Inc()
			n.logger.Error("publish collection notice failed", "error", err, "version", snap.Version)
			return
		}
		n.metrics.NotificationsPublished.WithLabelValues("success").Inc()
		n.logger.Debug("collection notice published", "version", snap.Version)
	}
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a snapshot summary into a Kafka message keyed by version.
func serializeToMessage(snap store.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(CollectionReplaced{
		Version:            snap.Version,
		RecordCount:        snap.Len(),
		LastUpdated:        snap.LastUpdated,
		LoadedAt:           snap.LoadedAt,
		Source:             snap.Source,
		Discarded:          snap.Report.Discarded,
		InvalidCoordinates: snap.Report.InvalidCoordinates,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize collection notice: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatUint(snap.Version, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventCollectionReplaced)},
			{Key: "loaded_at", Value: []byte(snap.LoadedAt.Format(time.RFC3339))},
		},
	}, nil
}
