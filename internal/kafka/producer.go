package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/binodtmg/esewa-settlement-service/internal/domain"
)

// SettlementEvent is published for every terminal settlement decision so
// downstream services (notification, fulfilment, refund workflow) can react.
type SettlementEvent struct {
	TransactionUUID string             `json:"transaction_uuid"`
	OrderID         string             `json:"order_id"`
	Status          domain.OrderStatus `json:"status"`
	Outcome         domain.OutcomeCode `json:"outcome"`
	Reason          string             `json:"reason,omitempty"`
	TotalAmount     int64              `json:"total_amount"`
	SettledAt       time.Time          `json:"settled_at"`
}

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokersSTR, topic string) *Producer {
	brokers := strings.Split(brokersSTR, ",")

	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (p *Producer) Close() error {
	return p.w.Close()
}

func (p *Producer) PublishSettlement(ctx context.Context, ev SettlementEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.TransactionUUID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}
