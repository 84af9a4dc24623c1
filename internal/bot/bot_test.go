package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lhdbsbz/deskbot/internal/conversation"
	"github.com/lhdbsbz/deskbot/internal/dispatch"
	"github.com/lhdbsbz/deskbot/internal/imagecache"
	"github.com/lhdbsbz/deskbot/internal/intent"
	"github.com/lhdbsbz/deskbot/internal/kb"
	"github.com/lhdbsbz/deskbot/internal/llm"
	"github.com/lhdbsbz/deskbot/internal/message"
	"github.com/lhdbsbz/deskbot/internal/payment"
	"github.com/lhdbsbz/deskbot/internal/prompts"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type outCall struct {
	Kind string // reply | push
	To   string // reply token or push target
	Text string
}

type fakeOutbound struct {
	mu    sync.Mutex
	calls []outCall
}

func (f *fakeOutbound) Reply(_ context.Context, token, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, outCall{"reply", token, text})
	return nil
}

func (f *fakeOutbound) Push(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, outCall{"push", to, text})
	return nil
}

func (f *fakeOutbound) all() []outCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]outCall(nil), f.calls...)
}

type fakeMedia struct {
	calls atomic.Int32
	err   error
}

func (f *fakeMedia) FetchContent(_ context.Context, id string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("image:" + id), nil
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) DetectText(_ context.Context, image []byte) (string, error) {
	return f.text, f.err
}

type fakeAI struct {
	calls   atomic.Int32
	answer  string
	err     error
	prompts chan string
}

func (f *fakeAI) Complete(_ context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.prompts != nil {
		f.prompts <- prompt
	}
	return f.answer, f.err
}

type fakePayment struct {
	status payment.Status
	err    error
}

func (f *fakePayment) LookupAttempt(_ context.Context, id string) (payment.Status, error) {
	if f.err != nil {
		return payment.Status{}, f.err
	}
	st := f.status
	st.AttemptID = id
	return st, nil
}

type panickyKB struct{ KnowledgeBase }

func (panickyKB) Search(context.Context, string) ([]kb.Entry, error) { panic("kb exploded") }

type failingStore struct{ imagecache.Store }

func (failingStore) Peek(context.Context, conversation.Key) (imagecache.PendingImage, bool, error) {
	return imagecache.PendingImage{}, false, errors.New("redis down")
}

type harness struct {
	bot     *Bot
	out     *fakeOutbound
	images  *imagecache.MemoryStore
	media   *fakeMedia
	ocr     *fakeOCR
	ai      *fakeAI
	payment *fakePayment
	replies *prompts.Replies
	now     time.Time
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		out:     &fakeOutbound{},
		media:   &fakeMedia{},
		ocr:     &fakeOCR{text: "TOTAL 500"},
		ai:      &fakeAI{answer: "Here is the answer."},
		payment: &fakePayment{status: payment.Status{State: "paid"}},
		replies: prompts.Get("en"),
		now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	h.images = imagecache.NewMemoryStore(imagecache.DefaultTTL).WithClock(clock)

	store, err := kb.New([]kb.Entry{
		{Code: "102", Title: "Printer offline", Description: "The printer is not reachable.\nMore detail.", Steps: []string{"Check cable", "Restart"}, Keywords: []string{"printer"}},
		{Code: "201", Title: "Printer jam", Description: "Paper is stuck.", Keywords: []string{"printer"}},
		{Code: "202", Title: "Printer toner", Description: "Toner low.", Keywords: []string{"printer"}},
		{Code: "203", Title: "Printer driver", Description: "Driver missing.", Keywords: []string{"printer"}},
	})
	require.NoError(t, err)

	deps := Deps{
		Classifier:    intent.NewClassifier(intent.DefaultTriggers),
		Images:        h.images,
		Dispatcher:    dispatch.New(h.out, nil, dispatch.WithClock(clock)),
		Replies:       h.replies,
		KnowledgeBase: store,
		Media:         h.media,
		OCR:           h.ocr,
		AI:            h.ai,
		Payment:       h.payment,
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	b, err := New(deps, Options{Timeouts: Timeouts{AI: time.Second, OCR: time.Second, Media: time.Second, Payment: time.Second, KnowledgeBase: time.Second}})
	require.NoError(t, err)
	b.now = clock
	h.bot = b
	return h
}

var seq atomic.Int64

func (h *harness) event(kind EventKind, src conversation.Source, text string) Event {
	n := seq.Add(1)
	ev := Event{
		ID:         fmt.Sprintf("ev-%d", n),
		Kind:       kind,
		Source:     src,
		ReplyToken: fmt.Sprintf("rt-%d", n),
		ReceivedAt: h.now,
	}
	if kind == EventImage {
		ev.MediaID = text
	} else {
		ev.Text = text
	}
	return ev
}

func (h *harness) send(evs ...Event) {
	h.bot.HandleBatch(context.Background(), evs)
}

var (
	userSrc  = conversation.Source{Type: "user", UserID: "U1"}
	groupSrc = conversation.Source{Type: "group", GroupID: "G1", UserID: "U1"}
)

func TestDirectHelloAcksThenPushes(t *testing.T) {
	h := newHarness(t)
	ev := h.event(EventText, userSrc, "hello")
	h.send(ev)

	assert.Equal(t, []outCall{
		{"reply", ev.ReplyToken, h.replies.AIAck},
		{"push", "U1", "Here is the answer."},
	}, h.out.all())
}

func TestAIFailureSendsApology(t *testing.T) {
	h := newHarness(t)
	h.ai.err = errors.New("model overloaded")
	h.send(h.event(EventText, userSrc, "hello"))

	calls := h.out.all()
	require.Len(t, calls, 2)
	assert.Equal(t, outCall{"push", "U1", h.replies.AIApology}, calls[1])
}

func TestEmptyPromptSkipsAI(t *testing.T) {
	h := newHarness(t)
	ev := h.event(EventText, groupSrc, "  @bot  ")
	h.send(ev)

	assert.Equal(t, []outCall{{"reply", ev.ReplyToken, h.replies.EmptyPrompt}}, h.out.all())
	assert.Zero(t, h.ai.calls.Load())
}

func TestGroupImageThenReadTwice(t *testing.T) {
	h := newHarness(t)

	img := h.event(EventImage, groupSrc, "m-1")
	h.send(img)
	require.Equal(t, []outCall{{"reply", img.ReplyToken, fmt.Sprintf(h.replies.ImageStoredFmt, "@bot read it")}}, h.out.all())

	h.now = h.now.Add(30 * time.Second)
	first := h.event(EventText, groupSrc, "@bot read it")
	h.send(first)
	second := h.event(EventText, groupSrc, "@bot read it")
	h.send(second)

	calls := h.out.all()
	require.Len(t, calls, 2)
	assert.Equal(t, outCall{"reply", first.ReplyToken, fmt.Sprintf(h.replies.OCRResultFmt, "TOTAL 500")}, calls[1])
	assert.EqualValues(t, 1, h.media.calls.Load())
	assert.Zero(t, h.ai.calls.Load())
}

func TestDirectImageIsSilentAndReadable(t *testing.T) {
	h := newHarness(t)
	h.send(h.event(EventImage, userSrc, "m-7"))
	assert.Empty(t, h.out.all())

	ev := h.event(EventText, userSrc, "what does it say")
	h.send(ev)
	assert.Equal(t, []outCall{{"reply", ev.ReplyToken, fmt.Sprintf(h.replies.OCRResultFmt, "TOTAL 500")}}, h.out.all())
}

func TestExpiredImageFallsBackToAI(t *testing.T) {
	h := newHarness(t)
	h.send(h.event(EventImage, userSrc, "m-1"))
	h.now = h.now.Add(imagecache.DefaultTTL + time.Second)

	h.send(h.event(EventText, userSrc, "hello"))
	assert.Zero(t, h.media.calls.Load())
	assert.EqualValues(t, 1, h.ai.calls.Load())
	assert.Zero(t, h.images.Len())
}

func TestOCRFailures(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		h := newHarness(t)
		h.media.err = errors.New("404")
		h.send(h.event(EventImage, userSrc, "m-1"))
		ev := h.event(EventText, userSrc, "read it")
		h.send(ev)
		assert.Equal(t, []outCall{{"reply", ev.ReplyToken, h.replies.OCRApology}}, h.out.all())
	})
	t.Run("no text", func(t *testing.T) {
		h := newHarness(t)
		h.ocr.text = ""
		h.send(h.event(EventImage, userSrc, "m-1"))
		ev := h.event(EventText, userSrc, "read it")
		h.send(ev)
		assert.Equal(t, []outCall{{"reply", ev.ReplyToken, h.replies.OCRNoText}}, h.out.all())
	})
}

func TestPaymentCheck(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		status payment.Status
		err    error
		want   func(r *prompts.Replies) string
	}{
		{"no reference", "check payment status please", payment.Status{}, nil, func(r *prompts.Replies) string { return r.PaymentAskReference }},
		{"paid", "check payment status 574981", payment.Status{State: "paid"}, nil, func(r *prompts.Replies) string {
			return fmt.Sprintf(r.PaymentSuccessFmt, "574981", "paid")
		}},
		{"failed", "check payment 574981", payment.Status{State: "failed"}, nil, func(r *prompts.Replies) string {
			return fmt.Sprintf(r.PaymentFailureFmt, "574981", "failed")
		}},
		{"not found", "payment status 11111", payment.Status{}, fmt.Errorf("lookup: %w", payment.ErrAttemptNotFound), func(r *prompts.Replies) string {
			return fmt.Sprintf(r.PaymentNotFoundFmt, "11111")
		}},
		{"gateway error", "check payment status 22222", payment.Status{}, errors.New("502"), func(r *prompts.Replies) string { return r.PaymentApology }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.payment.status = tt.status
			h.payment.err = tt.err
			ev := h.event(EventText, userSrc, tt.text)
			h.send(ev)
			assert.Equal(t, []outCall{{"reply", ev.ReplyToken, tt.want(h.replies)}}, h.out.all())
		})
	}
}

func TestSearchAndCodeLookup(t *testing.T) {
	h := newHarness(t)

	search := h.event(EventText, userSrc, "search printer")
	h.send(search)
	code := h.event(EventText, userSrc, "code 102")
	h.send(code)
	miss := h.event(EventText, userSrc, "error 999")
	h.send(miss)
	nothing := h.event(EventText, userSrc, "find unicorn")
	h.send(nothing)

	calls := h.out.all()
	require.Len(t, calls, 4)

	lines := strings.Split(calls[0].Text, "\n")
	assert.Equal(t, "Found 4 result(s):", lines[0])
	assert.Contains(t, calls[0].Text, "[102] Printer offline\n  The printer is not reachable.")
	assert.NotContains(t, calls[0].Text, "203")
	assert.Contains(t, calls[0].Text, fmt.Sprintf(h.replies.SearchMoreFmt, 1))

	assert.Equal(t, "🔧 [102] Printer offline\nThe printer is not reachable.\nMore detail.\n\nSuggested steps:\n1. Check cable\n2. Restart", calls[1].Text)
	assert.Equal(t, fmt.Sprintf(h.replies.CodeNotFoundFmt, "999"), calls[2].Text)
	assert.Equal(t, h.replies.SearchNotFound, calls[3].Text)
}

func TestGroupChatterProducesNothing(t *testing.T) {
	h := newHarness(t)
	h.send(
		h.event(EventText, groupSrc, "lunch anyone?"),
		h.event(EventText, groupSrc, "search printer"),
		h.event(EventText, groupSrc, "code 102"),
		h.event(EventText, groupSrc, "check payment status 12345"),
	)
	assert.Empty(t, h.out.all())
	assert.Zero(t, h.ai.calls.Load())
}

func TestPanicIsIsolated(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.KnowledgeBase = panickyKB{d.KnowledgeBase} })
	boom := h.event(EventText, userSrc, "search printer")
	ok := h.event(EventText, conversation.Source{Type: "user", UserID: "U2"}, "code 102")
	h.send(boom, ok)

	calls := h.out.all()
	require.Len(t, calls, 1)
	assert.Equal(t, ok.ReplyToken, calls[0].To)
}

func TestPeekErrorTreatedAsAbsent(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Images = failingStore{d.Images} })
	h.send(h.event(EventText, userSrc, "read it"))
	assert.Zero(t, h.media.calls.Load())
	assert.EqualValues(t, 1, h.ai.calls.Load())
}

func TestDirectReadWithoutImageGoesToAI(t *testing.T) {
	h := newHarness(t)
	ev := h.event(EventText, userSrc, "read it")
	h.send(ev)

	assert.Zero(t, h.media.calls.Load())
	assert.EqualValues(t, 1, h.ai.calls.Load())
	calls := h.out.all()
	require.Len(t, calls, 2)
	assert.Equal(t, outCall{"reply", ev.ReplyToken, h.replies.AIAck}, calls[0])
	assert.Equal(t, "push", calls[1].Kind)
}

func TestGroupReadWithoutImageIsSilent(t *testing.T) {
	h := newHarness(t)
	h.send(h.event(EventText, groupSrc, "@bot read it"))
	assert.Empty(t, h.out.all())
	assert.Zero(t, h.ai.calls.Load())
}

func TestUnknownSourceSkipsCache(t *testing.T) {
	h := newHarness(t)
	unknown := conversation.Source{Type: "channel"}
	h.send(h.event(EventImage, unknown, "m-1"))
	assert.Zero(t, h.images.Len())

	ev := h.event(EventText, unknown, "@bot hi")
	h.send(ev)
	assert.Equal(t, []outCall{{"reply", ev.ReplyToken, h.replies.AIAck}}, h.out.all())
}

func TestDuplicateEventsDropped(t *testing.T) {
	dedup := message.NewDedup(time.Minute)
	h := newHarness(t, func(d *Deps) { d.Dedup = dedup })
	ev := h.event(EventText, userSrc, "code 102")
	h.send(ev, ev)
	h.send(ev)
	assert.Len(t, h.out.all(), 1)
}

func TestBatchIsConcurrent(t *testing.T) {
	h := newHarness(t)
	h.ai.prompts = make(chan string)

	done := make(chan struct{})
	go func() {
		h.send(
			h.event(EventText, conversation.Source{Type: "user", UserID: "A"}, "one"),
			h.event(EventText, conversation.Source{Type: "user", UserID: "B"}, "two"),
		)
		close(done)
	}()

	// Both completions must be in flight at the same time.
	got := []string{<-h.ai.prompts, <-h.ai.prompts}
	assert.ElementsMatch(t, []string{"one", "two"}, got)
	<-done
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier")
}

// Collaborators that never answer; only the per-call timeout ends them.

type hangingKB struct{}

func (hangingKB) Lookup(ctx context.Context, _ string) (kb.Entry, bool, error) {
	<-ctx.Done()
	return kb.Entry{}, false, ctx.Err()
}

func (hangingKB) Search(ctx context.Context, _ string) ([]kb.Entry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type hangingMedia struct{}

func (hangingMedia) FetchContent(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type hangingPayment struct{}

func (hangingPayment) LookupAttempt(ctx context.Context, _ string) (payment.Status, error) {
	<-ctx.Done()
	return payment.Status{}, ctx.Err()
}

type hangingAI struct{}

func (hangingAI) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCollaboratorTimeoutIsFailure(t *testing.T) {
	const short = 20 * time.Millisecond
	hang := func(d *Deps) {
		d.KnowledgeBase = hangingKB{}
		d.Media = hangingMedia{}
		d.Payment = hangingPayment{}
		d.AI = hangingAI{}
	}

	tests := []struct {
		name  string
		setup func(h *harness)
		text  string
		want  func(h *harness) string
	}{
		{name: "search", text: "search printer", want: func(h *harness) string { return h.replies.SearchApology }},
		{name: "code", text: "code 102", want: func(h *harness) string { return h.replies.CodeApology }},
		{name: "payment", text: "check payment status 574981", want: func(h *harness) string { return h.replies.PaymentApology }},
		{
			name:  "ocr",
			setup: func(h *harness) { h.send(h.event(EventImage, userSrc, "m-1")) },
			text:  "read it",
			want:  func(h *harness) string { return h.replies.OCRApology },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, hang)
			h.bot.opts.Timeouts = Timeouts{AI: short, OCR: short, Media: short, Payment: short, KnowledgeBase: short}
			if tc.setup != nil {
				tc.setup(h)
			}
			ev := h.event(EventText, userSrc, tc.text)
			start := time.Now()
			h.send(ev)

			assert.Less(t, time.Since(start), 5*time.Second)
			assert.Equal(t, []outCall{{"reply", ev.ReplyToken, tc.want(h)}}, h.out.all())
		})
	}

	t.Run("ai", func(t *testing.T) {
		h := newHarness(t, hang)
		h.bot.opts.Timeouts.AI = short
		ev := h.event(EventText, userSrc, "hello")
		h.send(ev)
		assert.Equal(t, []outCall{
			{"reply", ev.ReplyToken, h.replies.AIAck},
			{"push", userSrc.UserID, h.replies.AIApology},
		}, h.out.all())
	})
}

type erroringKB struct{}

func (erroringKB) Lookup(context.Context, string) (kb.Entry, bool, error) {
	return kb.Entry{}, false, errors.New("index unavailable")
}

func (erroringKB) Search(context.Context, string) ([]kb.Entry, error) {
	return nil, errors.New("index unavailable")
}

func TestKnowledgeBaseErrorApologies(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.KnowledgeBase = erroringKB{} })
	search := h.event(EventText, userSrc, "search printer")
	h.send(search)
	code := h.event(EventText, conversation.Source{Type: "user", UserID: "U2"}, "code 102")
	h.send(code)

	assert.Equal(t, []outCall{
		{"reply", search.ReplyToken, h.replies.SearchApology},
		{"reply", code.ReplyToken, h.replies.CodeApology},
	}, h.out.all())
}

func TestFailureAttrs(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, []any{"error", plain}, failureAttrs(plain))

	limited := fmt.Errorf("chat: %w", &llm.APIError{Provider: "openai", StatusCode: 429})
	attrs := failureAttrs(limited)
	assert.Equal(t, []any{"error", limited, "status", 429, "rate_limited", true, "auth_failed", false}, attrs)
}
