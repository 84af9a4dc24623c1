package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lhdbsbz/deskbot/internal/bot"
	"github.com/lhdbsbz/deskbot/internal/line"
)

// ginWebhook acknowledges a LINE delivery at once and processes it in the
// background. LINE retries slow webhooks, so nothing here waits on the bot.
func (s *Server) ginWebhook(c *gin.Context) {
	var body line.CallbackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	now := time.Now()
	for _, e := range body.Events {
		if e.DeliveryContext.IsRedelivery {
			s.Logger.Info("redelivered webhook event", "event_id", e.WebhookEventID, "age", eventAge(e, now))
		}
	}
	events := toBotEvents(body.Events, now)
	if len(events) > 0 {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.Handler.HandleBatch(s.baseCtx, events)
		}()
	}
	c.JSON(http.StatusOK, gin.H{})
}

// toBotEvents converts webhook events. Non-message events become EventOther so
// the bot can log and drop them in one place.
func toBotEvents(in []line.Event, receivedAt time.Time) []bot.Event {
	out := make([]bot.Event, 0, len(in))
	for _, e := range in {
		ev := bot.Event{
			ID:         e.WebhookEventID,
			Kind:       bot.EventOther,
			Source:     e.Source,
			ReplyToken: e.ReplyToken,
			ReceivedAt: receivedAt,
		}
		switch {
		case e.IsText():
			ev.Kind = bot.EventText
			ev.Text = e.Message.Text
		case e.IsImage():
			ev.Kind = bot.EventImage
			ev.MediaID = e.Message.ID
		}
		out = append(out, ev)
	}
	return out
}

// eventAge is how long ago LINE created the event, zero when unknown.
func eventAge(e line.Event, now time.Time) time.Duration {
	at := e.Time()
	if at.IsZero() || at.After(now) {
		return 0
	}
	return now.Sub(at)
}
