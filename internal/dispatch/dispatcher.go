// Package dispatch delivers bot output over LINE's two channels: the one-shot
// reply token of the inbound event and the persistent push target of the
// conversation.
//
// Nothing here returns an error to the caller. A failed send is logged,
// reported to the observer and dropped; it is never retried, because a retry
// that races a slow success would produce a duplicate message.
package dispatch

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lhdbsbz/deskbot/internal/conversation"
)

const (
	// MaxTextRunes is LINE's limit for a single text message.
	MaxTextRunes = 5000

	defaultSendTimeout = 10 * time.Second
)

// Outbound is the platform transport.
type Outbound interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

// Dispatcher implements the reply/push policy on top of an Outbound.
type Dispatcher struct {
	out         Outbound
	logger      *slog.Logger
	observer    Observer
	now         func() time.Time
	sendTimeout time.Duration
	typingDelay time.Duration
}

type Option func(*Dispatcher)

// WithObserver registers a callback for every dispatch event.
func WithObserver(o Observer) Option { return func(d *Dispatcher) { d.observer = o } }

// WithTypingDelay sets the pause before an acknowledged answer is pushed.
func WithTypingDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.typingDelay = delay }
}

// WithSendTimeout bounds every single outbound call.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithClock replaces the time source used for reply-window checks.
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func New(out Outbound, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		out:         out,
		logger:      logger,
		now:         time.Now,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reply sends text with the event's reply token. It reports whether the
// transport accepted the message.
func (d *Dispatcher) Reply(ctx context.Context, rc ReplyContext, text string) bool {
	text = truncate(text)
	if text == "" {
		d.emit(EventReplySkipped, rc.EventID, rc.Conversation, "", ErrEmptyMessage)
		return false
	}
	token, err := rc.Handle.claim(d.now())
	if err != nil {
		d.logger.Warn("reply skipped", "conversation", rc.Conversation.String(), "event_id", rc.EventID, "reason", err)
		d.emit(EventReplySkipped, rc.EventID, rc.Conversation, text, err)
		return false
	}
	return d.sendReply(ctx, rc, token, text)
}

// Send answers with the reply token while it can still be claimed and falls
// back to a push otherwise. A reply that reaches the transport and fails is
// not followed by a push.
func (d *Dispatcher) Send(ctx context.Context, rc ReplyContext, text string) bool {
	text = truncate(text)
	if text == "" {
		d.emit(EventReplySkipped, rc.EventID, rc.Conversation, "", ErrEmptyMessage)
		return false
	}
	token, err := rc.Handle.claim(d.now())
	if err != nil {
		d.logger.Debug("reply unavailable, pushing", "conversation", rc.Conversation.String(), "event_id", rc.EventID, "reason", err)
		return d.Push(ctx, rc.Conversation, text)
	}
	return d.sendReply(ctx, rc, token, text)
}

func (d *Dispatcher) sendReply(ctx context.Context, rc ReplyContext, token, text string) bool {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.out.Reply(sendCtx, token, text); err != nil {
		d.logger.Error("reply failed", "conversation", rc.Conversation.String(), "event_id", rc.EventID, "error", err)
		d.emit(EventReplyFailed, rc.EventID, rc.Conversation, text, err)
		return false
	}
	d.emit(EventReply, rc.EventID, rc.Conversation, text, nil)
	return true
}

// Push sends text to the conversation's persistent target. Conversations
// without a target are a logged no-op.
func (d *Dispatcher) Push(ctx context.Context, key conversation.Key, text string) bool {
	text = truncate(text)
	target := key.PushTarget()
	if target == "" || text == "" {
		err := ErrNoPushTarget
		if text == "" {
			err = ErrEmptyMessage
		}
		d.logger.Warn("push skipped", "conversation", key.String(), "reason", err)
		d.emit(EventPushSkipped, "", key, text, err)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.out.Push(sendCtx, target, text); err != nil {
		d.logger.Error("push failed", "conversation", key.String(), "error", err)
		d.emit(EventPushFailed, "", key, text, err)
		return false
	}
	d.emit(EventPush, "", key, text, nil)
	return true
}

// AckThenPush is used for answers that may outlive the reply window: the
// reply token is spent right away on ack, slow runs, and its result is pushed.
// The reply token is never used for the final answer.
func (d *Dispatcher) AckThenPush(ctx context.Context, rc ReplyContext, ack string, slow func(ctx context.Context) string) {
	d.Reply(ctx, rc, ack)
	answer := slow(ctx)
	if d.typingDelay > 0 {
		time.Sleep(d.typingDelay)
	}
	d.Push(ctx, rc.Conversation, answer)
}

func (d *Dispatcher) emit(eventType, eventID string, key conversation.Key, text string, err error) {
	if d.observer == nil {
		return
	}
	evt := Event{
		Type:         eventType,
		EventID:      eventID,
		Conversation: key.String(),
		Timestamp:    d.now(),
		Text:         text,
	}
	if err != nil {
		evt.Error = err.Error()
	}
	d.observer(evt)
}

func truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxTextRunes-1]) + "…"
}
