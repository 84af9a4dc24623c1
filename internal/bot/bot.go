// Package bot is the event orchestrator: it turns each inbound webhook event
// into at most one pipeline run and hands the output to the dispatcher.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lhdbsbz/deskbot/internal/conversation"
	"github.com/lhdbsbz/deskbot/internal/dispatch"
	"github.com/lhdbsbz/deskbot/internal/imagecache"
	"github.com/lhdbsbz/deskbot/internal/intent"
	"github.com/lhdbsbz/deskbot/internal/kb"
	"github.com/lhdbsbz/deskbot/internal/llm"
	"github.com/lhdbsbz/deskbot/internal/payment"
	"github.com/lhdbsbz/deskbot/internal/prompts"
)

// EventKind is what an inbound event carries.
type EventKind string

const (
	EventText  EventKind = "text"
	EventImage EventKind = "image"
	EventOther EventKind = "other"
)

// Event is one inbound webhook event, already decoded.
type Event struct {
	ID         string // webhookEventId; used for redelivery dedup
	Kind       EventKind
	Text       string // text events
	MediaID    string // image events
	Source     conversation.Source
	ReplyToken string
	ReceivedAt time.Time // start of the reply window
}

// Collaborators. Every call gets its own timeout; a timeout is a failure.

type KnowledgeBase interface {
	Lookup(ctx context.Context, code string) (kb.Entry, bool, error)
	Search(ctx context.Context, keyword string) ([]kb.Entry, error)
}

type MediaFetcher interface {
	FetchContent(ctx context.Context, mediaID string) ([]byte, error)
}

type TextExtractor interface {
	DetectText(ctx context.Context, image []byte) (string, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type PaymentChecker interface {
	LookupAttempt(ctx context.Context, id string) (payment.Status, error)
}

// Dedup reports whether an event id was already handled.
type Dedup interface {
	IsDuplicate(id string) bool
}

// Deps are the bot's collaborators. Dedup is optional; everything else is
// required.
type Deps struct {
	Classifier *intent.Classifier
	Images     imagecache.Store
	Dispatcher *dispatch.Dispatcher
	Replies    *prompts.Replies

	KnowledgeBase KnowledgeBase
	Media         MediaFetcher
	OCR           TextExtractor
	AI            Completer
	Payment       PaymentChecker
	Dedup         Dedup

	Logger *slog.Logger
}

// Timeouts bound each collaborator call.
type Timeouts struct {
	AI            time.Duration
	OCR           time.Duration
	Media         time.Duration
	Payment       time.Duration
	KnowledgeBase time.Duration
}

type Options struct {
	ReplyWindow    time.Duration
	MaxConcurrency int
	Timeouts       Timeouts
}

// Bot owns the pending-image store and runs every event in isolation.
type Bot struct {
	Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) (*Bot, error) {
	var missing []string
	if deps.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if deps.Images == nil {
		missing = append(missing, "images")
	}
	if deps.Dispatcher == nil {
		missing = append(missing, "dispatcher")
	}
	if deps.KnowledgeBase == nil {
		missing = append(missing, "knowledge base")
	}
	if deps.Media == nil {
		missing = append(missing, "media")
	}
	if deps.OCR == nil {
		missing = append(missing, "ocr")
	}
	if deps.AI == nil {
		missing = append(missing, "ai")
	}
	if deps.Payment == nil {
		missing = append(missing, "payment")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("bot: missing dependencies: %v", missing)
	}
	if deps.Replies == nil {
		deps.Replies = prompts.Get("")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.ReplyWindow <= 0 {
		opts.ReplyWindow = dispatch.DefaultReplyWindow
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 16
	}
	t := &opts.Timeouts
	for _, d := range []*time.Duration{&t.AI, &t.OCR, &t.Media, &t.Payment, &t.KnowledgeBase} {
		if *d <= 0 {
			*d = 30 * time.Second
		}
	}
	return &Bot{Deps: deps, opts: opts, now: time.Now}, nil
}

// HandleBatch processes every event of one webhook delivery concurrently and
// returns when all of them are done. A failing or panicking event never
// affects its siblings.
func (b *Bot) HandleBatch(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	batchID := uuid.NewString()
	logger := b.Logger.With("batch_id", batchID)
	logger.Debug("batch received", "events", len(events))

	var g errgroup.Group
	g.SetLimit(b.opts.MaxConcurrency)
	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			b.handleIsolated(ctx, logger, ev)
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Bot) handleIsolated(ctx context.Context, logger *slog.Logger, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked", "event_id", ev.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	b.HandleEvent(ctx, logger, ev)
}

// HandleEvent runs the state machine for a single event.
func (b *Bot) HandleEvent(ctx context.Context, logger *slog.Logger, ev Event) {
	if logger == nil {
		logger = b.Logger
	}
	if b.Dedup != nil && b.Dedup.IsDuplicate(ev.ID) {
		logger.Info("duplicate event dropped", "event_id", ev.ID)
		return
	}

	key := conversation.Resolve(ev.Source)
	logger = logger.With("event_id", ev.ID, "conversation", key.String())
	received := ev.ReceivedAt
	if received.IsZero() {
		received = b.now()
	}
	rc := dispatch.ReplyContext{
		EventID:      ev.ID,
		Handle:       dispatch.NewReplyHandle(ev.ReplyToken, received, b.opts.ReplyWindow),
		Conversation: key,
	}

	switch ev.Kind {
	case EventImage:
		b.handleImage(ctx, logger, rc, ev)
	case EventText:
		b.handleText(ctx, logger, rc, ev)
	default:
		logger.Debug("event ignored", "kind", ev.Kind)
	}
}

func (b *Bot) handleImage(ctx context.Context, logger *slog.Logger, rc dispatch.ReplyContext, ev Event) {
	key := rc.Conversation
	if key.IsUnknown() {
		logger.Info("image from unknown source not cached")
		return
	}
	if ev.MediaID == "" {
		logger.Warn("image event without media id")
		return
	}
	if err := b.Images.Put(ctx, key, ev.MediaID); err != nil {
		logger.Error("store pending image failed", "collaborator", "imagecache", "error", err)
		return
	}
	logger.Info("pending image stored", "media_id", ev.MediaID)

	if key.IsDirect() {
		return
	}
	b.Dispatcher.Send(ctx, rc, fmt.Sprintf(b.Replies.ImageStoredFmt, b.readCommand()))
}

func (b *Bot) readCommand() string {
	if trigger := b.Classifier.PrimaryTrigger(); trigger != "" {
		return trigger + " " + b.Replies.ReadCommand
	}
	return b.Replies.ReadCommand
}

func (b *Bot) handleText(ctx context.Context, logger *slog.Logger, rc dispatch.ReplyContext, ev Event) {
	key := rc.Conversation
	pending := false
	if !key.IsUnknown() {
		_, ok, err := b.Images.Peek(ctx, key)
		if err != nil {
			logger.Warn("peek pending image failed", "collaborator", "imagecache", "error", err)
		}
		pending = ok && err == nil
	}

	in := intent.Input{Text: ev.Text, Direct: key.IsDirect(), PendingImage: pending}
	it := b.Classifier.Classify(in)
	logger.Info("intent classified", "intent", it.Kind(), "pending_image", pending)

	switch it := it.(type) {
	case intent.Search:
		b.runSearch(ctx, logger, rc, it)
	case intent.CodeLookup:
		b.runCodeLookup(ctx, logger, rc, it)
	case intent.PaymentCheck:
		b.runPaymentCheck(ctx, logger, rc, it)
	case intent.OCRRequest:
		b.runOCR(ctx, logger, rc)
	case intent.AIChat:
		b.runAIChat(ctx, logger, rc, it)
	case intent.Ignore:
	}
}

func (b *Bot) runSearch(ctx context.Context, logger *slog.Logger, rc dispatch.ReplyContext, it intent.Search) {
	cctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.KnowledgeBase)
	defer cancel()
	hits, err := b.KnowledgeBase.Search(cctx, it.Query)
	if err != nil {
		logger.Error("knowledge base search failed", "collaborator", "knowledge_base", "error", err)
		b.Dispatcher.Send(ctx, rc, b.Replies.SearchApology)
		return
	}
	b.Dispatcher.Send(ctx, rc, formatSearch(b.Replies, hits))
}

func (b *Bot) runCodeLookup(ctx context.Context, logger *slog.Logger, rc dispatch.ReplyContext, it intent.CodeLookup) {
	cctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.KnowledgeBase)
	defer cancel()
	entry, ok, err := b.KnowledgeBase.Lookup(cctx, it.Code)
	switch {
	case err != nil:
		logger.Error("knowledge base lookup failed", "collaborator", "knowledge_base", "code", it.Code, "error", err)
		b.Dispatcher.Send(ctx, rc, b.Replies.CodeApology)
	case !ok:
		b.Dispatcher.Send(ctx, rc, fmt.Sprintf(b.Replies.CodeNotFoundFmt, it.Code))
	default:
		b.Dispatcher.Send(ctx, rc, formatAdvice(b.Replies, entry))
	}
}

func (b *Bot) runPaymentCheck(ctx context.Context, logger *slog.Logger, rc dispatch.ReplyContext, it intent.PaymentCheck) {
	if !it.HasAttemptID() {
		b.Dispatcher.Send(ctx, rc, b.Replies.PaymentAskReference)
		return
	}
	cctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.Payment)
	defer cancel()
	st, err := b.Payment.LookupAttempt(cctx, it.AttemptID)
	switch {
	case errors.Is(err, payment.ErrAttemptNotFound):
		b.Dispatcher.Send(ctx, rc, fmt.Sprintf(b.Replies.PaymentNotFoundFmt, it.AttemptID))
	case err != nil:
		logger.Error("payment lookup failed", "collaborator", "payment", "attempt_id", it.AttemptID, "error", err)
		b.Dispatcher.Send(ctx, rc, b.Replies.PaymentApology)
	case st.Succeeded():
		b.Dispatcher.Send(ctx, rc, fmt.Sprintf(b.Replies.PaymentSuccessFmt, it.AttemptID, st.State))
	default:
		b.Dispatcher.Send(ctx, rc, fmt.Sprintf(b.Replies.PaymentFailureFmt, it.AttemptID, st.State))
	}
}

func (b *Bot) runOCR(ctx context.Context, logger *slog.Logger, rc dispatch.ReplyContext) {
	key := rc.Conversation
	if key.IsUnknown() {
		return
	}
	img, ok, err := b.Images.Consume(ctx, key)
	if err != nil {
		logger.Warn("consume pending image failed", "collaborator", "imagecache", "error", err)
		return
	}
	if !ok {
		logger.Info("read request without pending image")
		return
	}

	text, err := b.extract(ctx, img.MediaID)
	if err != nil {
		logger.Error("text extraction failed", append([]any{"collaborator", "ocr", "media_id", img.MediaID}, failureAttrs(err)...)...)
		b.Dispatcher.Send(ctx, rc, b.Replies.OCRApology)
		return
	}
	if text == "" {
		b.Dispatcher.Send(ctx, rc, b.Replies.OCRNoText)
		return
	}
	b.Dispatcher.Send(ctx, rc, fmt.Sprintf(b.Replies.OCRResultFmt, text))
}

func (b *Bot) extract(ctx context.Context, mediaID string) (string, error) {
	fctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.Media)
	data, err := b.Media.FetchContent(fctx, mediaID)
	cancel()
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}

	octx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.OCR)
	defer cancel()
	text, err := b.OCR.DetectText(octx, data)
	if err != nil {
		return "", fmt.Errorf("detect text: %w", err)
	}
	return text, nil
}

// runAIChat acknowledges through the reply token and pushes the answer once
// the model returns. An empty prompt (the trigger alone) is answered right
// away with EmptyPrompt and never reaches the model, so there is nothing
// slow to acknowledge.
func (b *Bot) runAIChat(ctx context.Context, logger *slog.Logger, rc dispatch.ReplyContext, it intent.AIChat) {
	if it.Prompt == "" {
		b.Dispatcher.Send(ctx, rc, b.Replies.EmptyPrompt)
		return
	}
	b.Dispatcher.AckThenPush(ctx, rc, b.Replies.AIAck, func(ctx context.Context) string {
		cctx, cancel := context.WithTimeout(ctx, b.opts.Timeouts.AI)
		defer cancel()
		answer, err := b.AI.Complete(cctx, it.Prompt)
		if err != nil {
			logger.Error("ai completion failed", append([]any{"collaborator", "ai"}, failureAttrs(err)...)...)
			return b.Replies.AIApology
		}
		if answer == "" {
			logger.Warn("ai completion empty", "collaborator", "ai")
			return b.Replies.AIApology
		}
		return answer
	})
}

// failureAttrs describes a collaborator error for the log, with the provider
// status when the model API rejected the call.
func failureAttrs(err error) []any {
	attrs := []any{"error", err}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			"status", apiErr.StatusCode,
			"rate_limited", apiErr.IsRateLimit(),
			"auth_failed", apiErr.IsAuth(),
		)
	}
	return attrs
}
