package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads automation events off a topic exchange. The routing key
// (or the AMQP type property, when set) names the event type and the body
// is the event payload.
type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	intake *Intake
	logger logger.Logger
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

func NewConsumer(amqpURL string, in *Intake, log logger.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, intake: in, logger: log}, nil
}

// Start declares the exchange and queue, binds routingKey and consumes
// until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context, exchange, queueName, routingKey string) error {
	if routingKey == "" {
		routingKey = "#"
	}
	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return err
	}
	if err := c.ch.Qos(10, 0, false); err != nil {
		return err
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("consuming automation events", map[string]interface{}{
		"exchange":   exchange,
		"queue":      q.Name,
		"routingKey": routingKey,
	})
	go c.consume(ctx, msgs)
	return nil
}

func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks processed and unprocessable deliveries and requeues those
// that failed for a transient reason.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	eventType := d.Type
	if eventType == "" {
		eventType = d.RoutingKey
	}
	ev := dispatcher.Event{Type: dispatcher.EventType(eventType)}
	if len(d.Body) > 0 {
		if !json.Valid(d.Body) {
			c.logger.Warn("dropping malformed event body", map[string]interface{}{
				"routingKey": d.RoutingKey,
				"messageId":  d.MessageId,
			})
			_ = d.Ack(false)
			return
		}
		ev.Payload = json.RawMessage(d.Body)
	}

	_, err := c.intake.Handle(ctx, ev, d.MessageId)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case retryable(err):
		c.logger.Warn("event handling failed; re-queuing", map[string]interface{}{
			"eventType": eventType,
			"messageId": d.MessageId,
			"error":     err.Error(),
		})
		_ = d.Nack(false, true)
	default:
		c.logger.Error("event rejected", map[string]interface{}{
			"eventType": eventType,
			"messageId": d.MessageId,
			"error":     err.Error(),
		})
		_ = d.Ack(false)
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
