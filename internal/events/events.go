// Package events publishes provider failures on a watermill bus so any
// presentation layer can subscribe to them instead of being told directly.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

// FailureTopic carries one FailureEvent per failed provider call.
const FailureTopic = "provider.failures"

type FailureEvent struct {
	QueryID    string             `json:"query_id"`
	Provider   models.ProviderID  `json:"provider"`
	Kind       models.FailureKind `json:"kind"`
	Message    string             `json:"message"`
	Location   string             `json:"location"`
	Date       string             `json:"date"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// NewBus returns an in-process pub/sub. Events published with no
// subscriber attached are dropped.
func NewBus(logger *zap.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		NewZapLoggerAdapter(logger),
	)
}

type Reporter struct {
	publisher message.Publisher
	logger    *zap.Logger
}

// NewReporter logs every failure and, when publisher is non-nil, publishes it.
func NewReporter(publisher message.Publisher, logger *zap.Logger) *Reporter {
	return &Reporter{publisher: publisher, logger: logger}
}

func (r *Reporter) Report(event FailureEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	r.logger.Warn("Provider failed",
		zap.String("provider", string(event.Provider)),
		zap.String("kind", string(event.Kind)),
		zap.String("location", event.Location),
		zap.String("date", event.Date),
		zap.String("query_id", event.QueryID),
		zap.String("error", event.Message))

	if r.publisher == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to marshal failure event", zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := r.publisher.Publish(FailureTopic, msg); err != nil {
		r.logger.Warn("Failed to publish failure event",
			zap.String("topic", FailureTopic),
			zap.Error(err))
	}
}

// RecentFailures keeps the newest failure events for display.
type RecentFailures struct {
	mu      sync.RWMutex
	entries []FailureEvent
	size    int
}

func NewRecentFailures(size int) *RecentFailures {
	if size <= 0 {
		size = 100
	}
	return &RecentFailures{size: size}
}

func (b *RecentFailures) Add(event FailureEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, event)
	if len(b.entries) > b.size {
		b.entries = b.entries[len(b.entries)-b.size:]
	}
}

// List returns the buffered events, newest first.
func (b *RecentFailures) List() []FailureEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]FailureEvent, 0, len(b.entries))
	for i := len(b.entries) - 1; i >= 0; i-- {
		out = append(out, b.entries[i])
	}
	return out
}

// Consume subscribes to FailureTopic and buffers events until ctx is done.
func (b *RecentFailures) Consume(ctx context.Context, subscriber message.Subscriber, logger *zap.Logger) error {
	messages, err := subscriber.Subscribe(ctx, FailureTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event FailureEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.Warn("Dropping malformed failure event",
					zap.String("message_uuid", msg.UUID),
					zap.Error(err))
			} else {
				b.Add(event)
			}
			msg.Ack()
		}
	}()

	return nil
}
