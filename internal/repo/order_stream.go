package repo

import (
	"context"
	"encoding/json"

	"Kaupa/internal/model"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// OrderStream is the ingress for order lifecycle facts. The order
// collaborator publishes every status transition onto a Redis channel; this
// core only subscribes and relays, it never polls and never persists orders.
type OrderStream struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewOrderStream(client *redis.Client, channel string, logger *zap.Logger) *OrderStream {
	return &OrderStream{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Subscribe consumes order status events until ctx is cancelled, invoking
// handler for each decoded event. Malformed payloads are logged and skipped;
// a missing recipient is the relay's concern, not the stream's.
func (s *OrderStream) Subscribe(ctx context.Context, handler func(model.OrderStatusEvent)) {
	sub := s.client.Subscribe(ctx, s.channel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("order stream subscription closed", zap.String("channel", s.channel))
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				var ev model.OrderStatusEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					s.logger.Error("failed to decode order status event",
						zap.String("channel", s.channel),
						zap.Error(err),
					)
					continue
				}
				handler(ev)
			}
		}
	}()
}

// Publish serializes an order status event onto the channel. Exposed for the
// in-process order collaborator and for tooling.
func (s *OrderStream) Publish(ctx context.Context, ev model.OrderStatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, data).Err()
}
