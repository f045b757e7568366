package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/studyhive/coin-ledger/internal/infrastructure/redis"
)

// Consumer follows the ledger event stream and drops cached wallet
// summaries for users whose balance just changed, so reads served from
// Redis converge with what Postgres committed.
type Consumer struct {
	reader      *kafka.Reader
	redisClient redis.RedisClient
}

func NewConsumer(brokers []string, topic, groupID string, redisClient redis.RedisClient) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		redisClient: redisClient,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		var event struct {
			EventType     string `json:"event_type"`
			TransactionID string `json:"transaction_id"`
			UserID        string `json:"user_id"`
			Type          string `json:"type"`
			Amount        string `json:"amount"`
		}
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal ledger event", "error", err)
			continue
		}
		if event.UserID == "" {
			slog.Error("ledger event missing user_id", "key", string(msg.Key))
			continue
		}

		cacheKey := fmt.Sprintf("wallet:%s:summary", event.UserID)
		if err := c.redisClient.Del(ctx, cacheKey); err != nil {
			slog.Error("failed to invalidate wallet cache", "user_id", event.UserID, "error", err)
			continue
		}

		slog.Info("wallet cache invalidated", "user_id", event.UserID, "transaction_id", event.TransactionID, "type", event.Type)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
