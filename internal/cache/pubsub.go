package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
)

// updateChannel is the single Redis Pub/Sub channel all aggregated
// records flow through. Delivery is at-most-once; the RecordStore holds
// the latest state for late joiners.
const updateChannel = "market-updates"

// Bus provides cross-process broadcast of aggregated records via Redis
// Pub/Sub.
type Bus struct {
	rdb    *goredis.Client
	logger *slog.Logger
}

var _ domain.RecordBus = (*Bus)(nil)

// NewBus creates a new Bus instance.
func NewBus(client *Client, logger *slog.Logger) *Bus {
	return &Bus{rdb: client.rdb, logger: logger}
}

// Publish sends an aggregated record to the update channel.
func (b *Bus) Publish(ctx context.Context, record domain.AggregatedRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		metrics.BusPublishFailures.Inc()
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := b.rdb.Publish(ctx, updateChannel, data).Err(); err != nil {
		metrics.BusPublishFailures.Inc()
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

// Subscription represents an active subscription to the update channel.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan domain.AggregatedRecord
	cancel context.CancelFunc
}

// Close unsubscribes and closes the subscription.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// Subscribe listens on the update channel and returns a Subscription
// whose Ch delivers decoded records. Records are dropped when the
// receiver falls behind. Call subscription.Close() when done.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	sub := b.rdb.Subscribe(ctx, updateChannel)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan domain.AggregatedRecord, 64)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var record domain.AggregatedRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					b.logger.Warn("failed to unmarshal bus message", "error", err)
					continue
				}
				select {
				case ch <- record:
				default:
					metrics.BusMessagesDropped.Inc()
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{
		sub:    sub,
		Ch:     ch,
		cancel: cancel,
	}
}
