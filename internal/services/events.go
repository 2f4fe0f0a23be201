package services

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// EventExchange is the exchange lifecycle events are published to.
const EventExchange = "fonts"

// Routing keys for lifecycle events.
const (
	EventFontUploaded     = "font.uploaded"
	EventFontReplaced     = "font.replaced"
	EventFontDeleted      = "font.deleted"
	EventFontGroupCreated = "font_group.created"
	EventFontGroupUpdated = "font_group.updated"
	EventFontGroupDeleted = "font_group.deleted"
)

// EventPublisher publishes a message body to an exchange.
// *rabbitmq.Client satisfies it.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// FontEvent is the payload of font.* events.
type FontEvent struct {
	FontID         string    `json:"fontId"`
	Name           string    `json:"name"`
	Filename       string    `json:"filename"`
	PreviousFontID string    `json:"previousFontId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// FontGroupEvent is the payload of font_group.* events.
type FontGroupEvent struct {
	GroupID    string    `json:"groupId"`
	Title      string    `json:"title"`
	FontIDs    []string  `json:"fontIds"`
	OccurredAt time.Time `json:"occurredAt"`
}

// publishEvent is best-effort: a failed publish is logged, never returned,
// because the store change it describes has already committed.
func publishEvent(pub EventPublisher, logger *zap.Logger, routingKey string, payload interface{}) {
	if pub == nil {
		logger.Debug("Event publisher not configured, skipping event", zap.String("event", routingKey))
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("Failed to marshal event", zap.String("event", routingKey), zap.Error(err))
		return
	}
	if err := pub.Publish(EventExchange, routingKey, body); err != nil {
		logger.Warn("Failed to publish event", zap.String("event", routingKey), zap.Error(err))
	}
}
