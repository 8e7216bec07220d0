package repository

import (
	"context"

	"ModelArena/internal/domain/models"
	drepo "ModelArena/internal/domain/repository"
	pkgkafka "ModelArena/pkg/kafka"
)

type producer interface {
	Publish(ctx context.Context, messages ...pkgkafka.Message) error
	Close() error
}

// tradeEvent is the wire form of a trade on the stream.
type tradeEvent struct {
	ID         string  `json:"id"`
	Tick       int64   `json:"tick"`
	Wallet     string  `json:"wallet"`
	Model      string  `json:"model"`
	Type       string  `json:"type"`
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"ts"` // unix millis
}

// KafkaTradePublisher streams trades keyed by wallet, so one fighter's trades
// stay ordered on a partition.
type KafkaTradePublisher struct {
	producer producer
}

func NewKafkaTradePublisher(p *pkgkafka.Producer) *KafkaTradePublisher {
	return &KafkaTradePublisher{producer: p}
}

var _ drepo.TradePublisher = (*KafkaTradePublisher)(nil)

func (p *KafkaTradePublisher) PublishTrades(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(trades))
	for i, t := range trades {
		msgs[i] = pkgkafka.Message{
			Key: []byte(t.Wallet),
			Value: tradeEvent{
				ID:         t.ID,
				Tick:       t.Tick,
				Wallet:     t.Wallet,
				Model:      t.Model,
				Type:       string(t.Type),
				Price:      t.Price,
				Amount:     t.Amount,
				Confidence: t.Confidence,
				Timestamp:  t.Timestamp.UnixMilli(),
			},
		}
	}
	return p.producer.Publish(ctx, msgs...)
}

func (p *KafkaTradePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
