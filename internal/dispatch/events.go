package dispatch

import "time"

// Event types emitted for every outbound attempt.
const (
	EventReply        = "reply"
	EventReplySkipped = "reply_skipped"
	EventReplyFailed  = "reply_failed"
	EventPush         = "push"
	EventPushSkipped  = "push_skipped"
	EventPushFailed   = "push_failed"
)

// Event records one outbound attempt. The gateway forwards these to
// operators connected to the tap.
type Event struct {
	Type         string    `json:"type"`
	EventID      string    `json:"eventId,omitempty"`
	Conversation string    `json:"conversation"`
	Timestamp    time.Time `json:"timestamp"`
	Text         string    `json:"text,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Observer receives dispatch events. It must not block.
type Observer func(Event)
