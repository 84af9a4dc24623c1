// Package line holds the LINE Messaging API surface: webhook payload types
// and the outbound client used for reply, push and media download.
package line

import (
	"time"

	"github.com/lhdbsbz/deskbot/internal/conversation"
)

// Webhook event and message types the bot reacts to.
const (
	EventTypeMessage = "message"

	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// CallbackRequest is the body LINE posts to the webhook.
type CallbackRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one webhook event. Only the fields deskbot reads are decoded.
type Event struct {
	Type            string              `json:"type"`
	Mode            string              `json:"mode,omitempty"`
	Timestamp       int64               `json:"timestamp"`
	Source          conversation.Source `json:"source"`
	ReplyToken      string              `json:"replyToken,omitempty"`
	WebhookEventID  string              `json:"webhookEventId"`
	DeliveryContext DeliveryContext     `json:"deliveryContext"`
	Message         *Message            `json:"message,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Time returns the event timestamp. A missing timestamp yields the zero time.
func (e Event) Time() time.Time {
	if e.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp)
}

// IsText reports whether e is a text message event.
func (e Event) IsText() bool {
	return e.Type == EventTypeMessage && e.Message != nil && e.Message.Type == MessageTypeText
}

// IsImage reports whether e is an image message event.
func (e Event) IsImage() bool {
	return e.Type == EventTypeMessage && e.Message != nil && e.Message.Type == MessageTypeImage
}
