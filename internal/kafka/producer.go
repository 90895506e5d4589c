package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
}

// NewProducer returns a writer without a bound topic; each message names its
// own topic so one producer serves the whole pipeline.
func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// PaymentEvent is the payload for all payment lifecycle topics.
type PaymentEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	TicketClassID int64           `json:"ticket_class_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// TicketIssuedEvent announces a freshly issued ticket to downstream
// consumers (notification, analytics).
type TicketIssuedEvent struct {
	TicketID   string          `json:"ticket_id"`
	TicketCode string          `json:"ticket_code"`
	OrderID    string          `json:"order_id"`
	EventID    int64           `json:"event_id"`
	UserID     string          `json:"user_id"`
	PricePaid  decimal.Decimal `json:"price_paid"`
	IssuedAt   time.Time       `json:"issued_at"`
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [%s]: %s\n", topic, string(msgBytes))

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishPaymentSettled streams the final state of a payment session.
func (p *Producer) PublishPaymentSettled(ctx context.Context, session *models.PaymentSession) error {
	topic := TopicPaymentFailed
	switch session.Status {
	case models.StatusSuccess:
		topic = TopicPaymentSuccess
	case models.StatusExpired:
		topic = TopicPaymentExpired
	}

	return p.publish(ctx, topic, session.OrderID, PaymentEvent{
		OrderID:       session.OrderID,
		UserID:        session.UserID,
		TicketClassID: session.TicketClassID,
		Amount:        session.Amount,
		Status:        string(session.Status),
		TransactionID: session.TransactionID,
		OccurredAt:    time.Now().UTC(),
	})
}

// PublishTicketIssued streams the ticket issuance event.
func (p *Producer) PublishTicketIssued(ctx context.Context, ticket *models.Ticket, orderID string, eventID int64) error {
	return p.publish(ctx, TopicTicketIssued, ticket.TicketID, TicketIssuedEvent{
		TicketID:   ticket.TicketID,
		TicketCode: ticket.TicketCode,
		OrderID:    orderID,
		EventID:    eventID,
		UserID:     ticket.UserID,
		PricePaid:  ticket.PricePaid,
		IssuedAt:   time.Now().UTC(),
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
