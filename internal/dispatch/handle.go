package dispatch

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/lhdbsbz/deskbot/internal/conversation"
)

// DefaultReplyWindow is how long a reply token is trusted after the event
// arrived. LINE rejects late tokens anyway; checking first saves a round trip.
const DefaultReplyWindow = 50 * time.Second

var (
	ErrNoReplyToken = errors.New("no reply token")
	ErrReplyUsed    = errors.New("reply token already used")
	ErrReplyExpired = errors.New("reply token expired")
	ErrNoPushTarget = errors.New("conversation has no push target")
	ErrEmptyMessage = errors.New("empty message")
)

// ReplyHandle is a one-shot reply token with an explicit validity window.
type ReplyHandle struct {
	token    string
	issuedAt time.Time
	window   time.Duration
	used     atomic.Bool
}

func NewReplyHandle(token string, issuedAt time.Time, window time.Duration) *ReplyHandle {
	if window <= 0 {
		window = DefaultReplyWindow
	}
	return &ReplyHandle{token: token, issuedAt: issuedAt, window: window}
}

// Valid reports whether the handle could still be used at now.
func (h *ReplyHandle) Valid(now time.Time) bool {
	return h.check(now) == nil
}

func (h *ReplyHandle) check(now time.Time) error {
	if h == nil || h.token == "" {
		return ErrNoReplyToken
	}
	if h.used.Load() {
		return ErrReplyUsed
	}
	if now.After(h.issuedAt.Add(h.window)) {
		return ErrReplyExpired
	}
	return nil
}

// claim marks the handle used and returns its token. Only the first caller
// within the window gets the token; everybody else gets an error.
func (h *ReplyHandle) claim(now time.Time) (string, error) {
	if err := h.check(now); err != nil {
		return "", err
	}
	if !h.used.CompareAndSwap(false, true) {
		return "", ErrReplyUsed
	}
	return h.token, nil
}

// ReplyContext ties one inbound event to both outbound channels.
type ReplyContext struct {
	EventID      string
	Handle       *ReplyHandle
	Conversation conversation.Key
}
